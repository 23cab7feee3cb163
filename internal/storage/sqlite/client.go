package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/JPZU/InsightIQ/internal/storage/models"
	"github.com/JPZU/InsightIQ/pkg/logger"
)

// Client is the application store: alarm rules, chats and the dataset
// registry. Dataset tables themselves live in the same database file and
// are reached through internal/dataset, not through this client.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// DB exposes the underlying handle for the dataset executor and
// introspector, which share this connection pool.
func (c *Client) DB() *sql.DB {
	return c.db
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		table_name TEXT NOT NULL,
		field TEXT NOT NULL,
		condition TEXT NOT NULL,
		threshold REAL NOT NULL,
		description TEXT,
		user_id INTEGER DEFAULT 1,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_table ON alerts(table_name);
	CREATE INDEX IF NOT EXISTS idx_alerts_active ON alerts(is_active);

	CREATE TABLE IF NOT EXISTS chats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chats_user ON chats(user_id);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (chat_id) REFERENCES chats(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_questions_chat ON questions(chat_id);

	CREATE TABLE IF NOT EXISTS responses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (chat_id) REFERENCES chats(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_responses_chat ON responses(chat_id);

	CREATE TABLE IF NOT EXISTS datasets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		table_name TEXT NOT NULL UNIQUE,
		source_ref TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertAlarm(ctx context.Context, rule *models.AlarmRule) (int64, error) {
	query := `
		INSERT INTO alerts (table_name, field, condition, threshold, description, user_id, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	isActive := 0
	if rule.IsActive {
		isActive = 1
	}

	res, err := c.db.ExecContext(ctx, query,
		rule.TableName,
		rule.Field,
		string(rule.Condition),
		rule.Threshold,
		rule.Description,
		rule.UserID,
		isActive,
		now.Unix(),
		now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alarm: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read alarm id: %w", err)
	}

	logger.Info("Alarm rule created",
		zap.Int64("alarm_id", id),
		zap.String("table", rule.TableName),
		zap.String("field", rule.Field),
	)

	return id, nil
}

// ListActiveAlarms returns the active rules for one table, oldest first.
func (c *Client) ListActiveAlarms(ctx context.Context, tableName string) ([]models.AlarmRule, error) {
	query := `
		SELECT id, table_name, field, condition, threshold, description, user_id, is_active, created_at, updated_at
		FROM alerts
		WHERE table_name = ? AND is_active = 1
		ORDER BY id
	`

	rows, err := c.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to list active alarms: %w", err)
	}
	defer rows.Close()

	return scanAlarms(rows)
}

func (c *Client) ListAlarms(ctx context.Context) ([]models.AlarmRule, error) {
	query := `
		SELECT id, table_name, field, condition, threshold, description, user_id, is_active, created_at, updated_at
		FROM alerts
		ORDER BY id
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list alarms: %w", err)
	}
	defer rows.Close()

	return scanAlarms(rows)
}

func scanAlarms(rows *sql.Rows) ([]models.AlarmRule, error) {
	var rules []models.AlarmRule
	for rows.Next() {
		var r models.AlarmRule
		var condition string
		var isActive int
		var createdAt, updatedAt int64

		err := rows.Scan(&r.ID, &r.TableName, &r.Field, &condition, &r.Threshold,
			&r.Description, &r.UserID, &isActive, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alarm row: %w", err)
		}

		r.Condition = models.Condition(condition)
		r.IsActive = isActive == 1
		r.CreatedAt = time.Unix(createdAt, 0)
		r.UpdatedAt = time.Unix(updatedAt, 0)
		rules = append(rules, r)
	}

	return rules, rows.Err()
}

// UpdateAlarm applies a partial update. Allowed keys mirror the rule
// columns; unknown keys are rejected so callers cannot write arbitrary
// columns through the map.
func (c *Client) UpdateAlarm(ctx context.Context, alarmID int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}

	allowed := map[string]bool{
		"table_name":  true,
		"field":       true,
		"condition":   true,
		"threshold":   true,
		"description": true,
		"is_active":   true,
	}

	keys := make([]string, 0, len(updates))
	for k := range updates {
		if !allowed[k] {
			return fmt.Errorf("unknown alarm column %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	setClauses := make([]string, 0, len(keys)+1)
	args := make([]any, 0, len(keys)+2)
	for _, k := range keys {
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", k))
		args = append(args, updates[k])
	}
	setClauses = append(setClauses, "updated_at = ?")
	args = append(args, time.Now().Unix(), alarmID)

	query := fmt.Sprintf("UPDATE alerts SET %s WHERE id = ?", strings.Join(setClauses, ", "))

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update alarm: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}

	logger.Info("Alarm rule updated", zap.Int64("alarm_id", alarmID))
	return nil
}

func (c *Client) DeleteAlarm(ctx context.Context, alarmID int64) error {
	res, err := c.db.ExecContext(ctx, "DELETE FROM alerts WHERE id = ?", alarmID)
	if err != nil {
		return fmt.Errorf("failed to delete alarm: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}

	logger.Info("Alarm rule deleted", zap.Int64("alarm_id", alarmID))
	return nil
}

func (c *Client) CreateChat(ctx context.Context, userID int64, name string) (*models.Chat, error) {
	now := time.Now()

	res, err := c.db.ExecContext(ctx,
		"INSERT INTO chats (user_id, name, created_at, updated_at) VALUES (?, ?, ?, ?)",
		userID, name, now.Unix(), now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read chat id: %w", err)
	}

	return &models.Chat{ID: id, UserID: userID, Name: name, CreatedAt: now, UpdatedAt: now}, nil
}

func (c *Client) GetChat(ctx context.Context, chatID int64) (*models.Chat, error) {
	var chat models.Chat
	var createdAt, updatedAt int64

	err := c.db.QueryRowContext(ctx,
		"SELECT id, user_id, name, created_at, updated_at FROM chats WHERE id = ?", chatID,
	).Scan(&chat.ID, &chat.UserID, &chat.Name, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}

	chat.CreatedAt = time.Unix(createdAt, 0)
	chat.UpdatedAt = time.Unix(updatedAt, 0)
	return &chat, nil
}

func (c *Client) ListChats(ctx context.Context, userID int64) ([]models.Chat, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT id, user_id, name, created_at, updated_at FROM chats WHERE user_id = ? ORDER BY updated_at DESC, id DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var chat models.Chat
		var createdAt, updatedAt int64
		if err := rows.Scan(&chat.ID, &chat.UserID, &chat.Name, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		chat.CreatedAt = time.Unix(createdAt, 0)
		chat.UpdatedAt = time.Unix(updatedAt, 0)
		chats = append(chats, chat)
	}

	return chats, rows.Err()
}

func (c *Client) RenameChat(ctx context.Context, chatID int64, name string) error {
	res, err := c.db.ExecContext(ctx,
		"UPDATE chats SET name = ?, updated_at = ? WHERE id = ?",
		name, time.Now().Unix(), chatID,
	)
	if err != nil {
		return fmt.Errorf("failed to rename chat: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ClearChatMessages removes a chat's questions and responses but keeps
// the chat itself. An unknown chat is an error.
func (c *Client) ClearChatMessages(ctx context.Context, chatID int64) error {
	var exists int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM chats WHERE id = ?", chatID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check chat: %w", err)
	}
	if exists == 0 {
		return sql.ErrNoRows
	}

	if _, err := c.db.ExecContext(ctx, "DELETE FROM questions WHERE chat_id = ?", chatID); err != nil {
		return fmt.Errorf("failed to clear questions: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, "DELETE FROM responses WHERE chat_id = ?", chatID); err != nil {
		return fmt.Errorf("failed to clear responses: %w", err)
	}
	return nil
}

func (c *Client) DeleteChat(ctx context.Context, chatID int64) error {
	res, err := c.db.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", chatID)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (c *Client) InsertQuestion(ctx context.Context, chatID int64, content string) error {
	_, err := c.db.ExecContext(ctx,
		"INSERT INTO questions (chat_id, content, created_at) VALUES (?, ?, ?)",
		chatID, content, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert question: %w", err)
	}
	return nil
}

func (c *Client) InsertResponse(ctx context.Context, chatID int64, content string) error {
	_, err := c.db.ExecContext(ctx,
		"INSERT INTO responses (chat_id, content, created_at) VALUES (?, ?, ?)",
		chatID, content, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert response: %w", err)
	}
	return nil
}

// RecentTurns returns the last limit questions and the last limit
// responses of a chat merged in chronological order. An unknown chat
// yields an empty slice, not an error.
func (c *Client) RecentTurns(ctx context.Context, chatID int64, limit int) ([]models.ConversationTurn, error) {
	var exists int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM chats WHERE id = ?", chatID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check chat: %w", err)
	}
	if exists == 0 {
		return nil, nil
	}

	turns, err := c.recentSide(ctx, "questions", models.RoleQuestion, chatID, limit)
	if err != nil {
		return nil, err
	}

	responses, err := c.recentSide(ctx, "responses", models.RoleResponse, chatID, limit)
	if err != nil {
		return nil, err
	}

	turns = append(turns, responses...)
	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].OccurredAt.Before(turns[j].OccurredAt)
	})

	return turns, nil
}

func (c *Client) recentSide(ctx context.Context, table string, role models.TurnRole, chatID int64, limit int) ([]models.ConversationTurn, error) {
	query := fmt.Sprintf(
		"SELECT content, created_at FROM %s WHERE chat_id = ? ORDER BY created_at DESC, id DESC LIMIT ?", table)

	rows, err := c.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", table, err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var content string
		var createdAt int64
		if err := rows.Scan(&content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		turns = append(turns, models.ConversationTurn{
			Role:       role,
			Text:       content,
			OccurredAt: time.Unix(createdAt, 0),
		})
	}

	return turns, rows.Err()
}

func (c *Client) RegisterDataset(ctx context.Context, tableName, sourceRef string) error {
	now := time.Now().Unix()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO datasets (table_name, source_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(table_name) DO UPDATE SET
			source_ref = excluded.source_ref,
			updated_at = excluded.updated_at
	`, tableName, sourceRef, now, now)
	if err != nil {
		return fmt.Errorf("failed to register dataset: %w", err)
	}

	logger.Debug("Dataset registered", zap.String("table", tableName))
	return nil
}

func (c *Client) ListDatasets(ctx context.Context) ([]models.Dataset, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT id, table_name, source_ref, created_at, updated_at FROM datasets ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []models.Dataset
	for rows.Next() {
		var d models.Dataset
		var createdAt, updatedAt int64
		if err := rows.Scan(&d.ID, &d.TableName, &d.SourceRef, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dataset row: %w", err)
		}
		d.CreatedAt = time.Unix(createdAt, 0)
		d.UpdatedAt = time.Unix(updatedAt, 0)
		datasets = append(datasets, d)
	}

	return datasets, rows.Err()
}
