package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JPZU/InsightIQ/internal/query"
	"github.com/JPZU/InsightIQ/internal/storage/models"
)

type fakeAsker struct {
	answer *query.Answer
	called bool
}

func (f *fakeAsker) Ask(_ context.Context, _ query.AskRequest) *query.Answer {
	f.called = true
	return f.answer
}

type fakeChatGetter struct {
	chats map[int64]*models.Chat
}

func (f *fakeChatGetter) GetChat(_ context.Context, chatID int64) (*models.Chat, error) {
	chat, ok := f.chats[chatID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return chat, nil
}

func newQueryApp(asker *fakeAsker, chats *fakeChatGetter) *fiber.App {
	app := fiber.New()
	app.Post("/query", NewQueryHandler(asker, chats).HandleQuery)
	return app
}

func postQuery(t *testing.T, app *fiber.App, body string) (int, string) {
	t.Helper()

	req := httptest.NewRequest("POST", "/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestHandleQueryUnknownChatIsRejected(t *testing.T) {
	asker := &fakeAsker{answer: &query.Answer{ID: "q1", Content: "hi"}}
	app := newQueryApp(asker, &fakeChatGetter{})

	code, body := postQuery(t, app, `{"question": "how many?", "chat_id": 99}`)

	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Contains(t, body, "Chat not found")
	assert.False(t, asker.called, "missing chat must be rejected before processing")
}

func TestHandleQueryKnownChat(t *testing.T) {
	asker := &fakeAsker{answer: &query.Answer{ID: "q1", Content: "42 products"}}
	chats := &fakeChatGetter{chats: map[int64]*models.Chat{7: {ID: 7, Name: "stock"}}}
	app := newQueryApp(asker, chats)

	code, body := postQuery(t, app, `{"question": "how many?", "chat_id": 7}`)

	require.Equal(t, fiber.StatusOK, code)
	assert.True(t, asker.called)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.Equal(t, "42 products", payload["content"])
}

func TestHandleQueryWithoutChatSkipsLookup(t *testing.T) {
	asker := &fakeAsker{answer: &query.Answer{ID: "q1", Content: "direct"}}
	app := newQueryApp(asker, &fakeChatGetter{})

	code, _ := postQuery(t, app, `{"question": "how many?"}`)

	assert.Equal(t, fiber.StatusOK, code)
	assert.True(t, asker.called)
}

func TestHandleQueryRequiresQuestion(t *testing.T) {
	app := newQueryApp(&fakeAsker{answer: &query.Answer{}}, &fakeChatGetter{})

	code, body := postQuery(t, app, `{"chat_id": 1}`)

	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Contains(t, body, "Question is required")
}
