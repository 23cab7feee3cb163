package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JPZU/InsightIQ/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.InitSchema())
	return client
}

func sampleRule() *models.AlarmRule {
	return &models.AlarmRule{
		TableName:   "inventory",
		Field:       "stock",
		Condition:   models.ConditionLessThan,
		Threshold:   5,
		Description: "Low stock",
		UserID:      1,
		IsActive:    true,
	}
}

func TestAlarmRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	id, err := client.InsertAlarm(ctx, sampleRule())
	require.NoError(t, err)
	assert.Positive(t, id)

	rules, err := client.ListAlarms(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	got := rules[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "inventory", got.TableName)
	assert.Equal(t, "stock", got.Field)
	assert.Equal(t, models.ConditionLessThan, got.Condition)
	assert.Equal(t, 5.0, got.Threshold)
	assert.True(t, got.IsActive)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestListActiveAlarmsFiltersByTableAndFlag(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.InsertAlarm(ctx, sampleRule())
	require.NoError(t, err)

	inactive := sampleRule()
	inactive.IsActive = false
	_, err = client.InsertAlarm(ctx, inactive)
	require.NoError(t, err)

	other := sampleRule()
	other.TableName = "sales"
	_, err = client.InsertAlarm(ctx, other)
	require.NoError(t, err)

	active, err := client.ListActiveAlarms(ctx, "inventory")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].IsActive)
	assert.Equal(t, "inventory", active[0].TableName)
}

func TestUpdateAlarm(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	id, err := client.InsertAlarm(ctx, sampleRule())
	require.NoError(t, err)

	err = client.UpdateAlarm(ctx, id, map[string]any{
		"threshold": 10.0,
		"is_active": 0,
	})
	require.NoError(t, err)

	rules, err := client.ListAlarms(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 10.0, rules[0].Threshold)
	assert.False(t, rules[0].IsActive)
}

func TestUpdateAlarmRejectsUnknownColumn(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	id, err := client.InsertAlarm(ctx, sampleRule())
	require.NoError(t, err)

	err = client.UpdateAlarm(ctx, id, map[string]any{"user_id": 99})
	assert.ErrorContains(t, err, "unknown alarm column")
}

func TestUpdateAlarmMissingRow(t *testing.T) {
	client := newTestClient(t)

	err := client.UpdateAlarm(context.Background(), 404, map[string]any{"threshold": 1.0})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDeleteAlarm(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	id, err := client.InsertAlarm(ctx, sampleRule())
	require.NoError(t, err)

	require.NoError(t, client.DeleteAlarm(ctx, id))
	assert.ErrorIs(t, client.DeleteAlarm(ctx, id), sql.ErrNoRows)

	rules, err := client.ListAlarms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestChatLifecycle(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	chat, err := client.CreateChat(ctx, 1, "inventory questions")
	require.NoError(t, err)
	assert.Positive(t, chat.ID)

	got, err := client.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "inventory questions", got.Name)

	require.NoError(t, client.DeleteChat(ctx, chat.ID))
	assert.ErrorIs(t, client.DeleteChat(ctx, chat.ID), sql.ErrNoRows)
}

// insertTurn writes a turn with an explicit timestamp so ordering tests
// do not depend on wall-clock resolution.
func insertTurn(t *testing.T, client *Client, table string, chatID int64, content string, createdAt int64) {
	t.Helper()
	_, err := client.DB().Exec(
		"INSERT INTO "+table+" (chat_id, content, created_at) VALUES (?, ?, ?)",
		chatID, content, createdAt,
	)
	require.NoError(t, err)
}

func TestRecentTurnsMergesChronologically(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	chat, err := client.CreateChat(ctx, 1, "history")
	require.NoError(t, err)

	insertTurn(t, client, "questions", chat.ID, "q1", 100)
	insertTurn(t, client, "responses", chat.ID, "r1", 110)
	insertTurn(t, client, "questions", chat.ID, "q2", 120)
	insertTurn(t, client, "responses", chat.ID, "r2", 130)

	turns, err := client.RecentTurns(ctx, chat.ID, 5)
	require.NoError(t, err)
	require.Len(t, turns, 4)

	texts := make([]string, len(turns))
	for i, turn := range turns {
		texts[i] = turn.Text
	}
	assert.Equal(t, []string{"q1", "r1", "q2", "r2"}, texts)
	assert.Equal(t, models.RoleQuestion, turns[0].Role)
	assert.Equal(t, models.RoleResponse, turns[1].Role)
}

func TestRecentTurnsHonorsPerSideLimit(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	chat, err := client.CreateChat(ctx, 1, "history")
	require.NoError(t, err)

	for i := int64(0); i < 5; i++ {
		insertTurn(t, client, "questions", chat.ID, "q", 100+i)
	}

	turns, err := client.RecentTurns(ctx, chat.ID, 2)
	require.NoError(t, err)
	assert.Len(t, turns, 2, "only the most recent turns per side survive")
}

func TestRecentTurnsUnknownChat(t *testing.T) {
	client := newTestClient(t)

	turns, err := client.RecentTurns(context.Background(), 404, 5)
	require.NoError(t, err)
	assert.Nil(t, turns)
}

func TestDeleteChatCascades(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	chat, err := client.CreateChat(ctx, 1, "doomed")
	require.NoError(t, err)
	require.NoError(t, client.InsertQuestion(ctx, chat.ID, "q"))
	require.NoError(t, client.InsertResponse(ctx, chat.ID, "r"))

	require.NoError(t, client.DeleteChat(ctx, chat.ID))

	var questions int
	require.NoError(t, client.DB().QueryRow(
		"SELECT COUNT(1) FROM questions WHERE chat_id = ?", chat.ID).Scan(&questions))
	assert.Zero(t, questions)
}

func TestDatasetRegistryUpsert(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.RegisterDataset(ctx, "inventory", "inventory.csv"))
	require.NoError(t, client.RegisterDataset(ctx, "inventory", "inventory_v2.csv"))
	require.NoError(t, client.RegisterDataset(ctx, "sales", "sales.csv"))

	datasets, err := client.ListDatasets(ctx)
	require.NoError(t, err)
	require.Len(t, datasets, 2)
	assert.Equal(t, "inventory", datasets[0].TableName)
	assert.Equal(t, "inventory_v2.csv", datasets[0].SourceRef)
}

func TestListChats(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	first, err := client.CreateChat(ctx, 1, "first")
	require.NoError(t, err)
	_, err = client.CreateChat(ctx, 2, "other user")
	require.NoError(t, err)
	second, err := client.CreateChat(ctx, 1, "second")
	require.NoError(t, err)

	chats, err := client.ListChats(ctx, 1)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, second.ID, chats[0].ID, "most recently updated first")
	assert.Equal(t, first.ID, chats[1].ID)

	none, err := client.ListChats(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRenameChat(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	chat, err := client.CreateChat(ctx, 1, "old name")
	require.NoError(t, err)

	require.NoError(t, client.RenameChat(ctx, chat.ID, "new name"))

	got, err := client.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "new name", got.Name)

	assert.ErrorIs(t, client.RenameChat(ctx, 999, "nope"), sql.ErrNoRows)
}

func TestClearChatMessagesKeepsChat(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	chat, err := client.CreateChat(ctx, 1, "busy chat")
	require.NoError(t, err)
	require.NoError(t, client.InsertQuestion(ctx, chat.ID, "q"))
	require.NoError(t, client.InsertResponse(ctx, chat.ID, "r"))

	require.NoError(t, client.ClearChatMessages(ctx, chat.ID))

	turns, err := client.RecentTurns(ctx, chat.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, turns)

	_, err = client.GetChat(ctx, chat.ID)
	assert.NoError(t, err, "clearing messages keeps the chat")

	assert.ErrorIs(t, client.ClearChatMessages(ctx, 999), sql.ErrNoRows)
}
