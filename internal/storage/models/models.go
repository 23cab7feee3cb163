package models

import "time"

// Condition values are stored as the lowercase phrases the alarm rules
// have always used on disk.
type Condition string

const (
	ConditionLessThan    Condition = "less than"
	ConditionGreaterThan Condition = "greater than"
	ConditionEqualTo     Condition = "equal to"
)

type AlarmRule struct {
	ID          int64
	TableName   string
	Field       string
	Condition   Condition
	Threshold   float64
	Description string
	UserID      int64
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Chat struct {
	ID        int64
	UserID    int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TurnRole string

const (
	RoleQuestion TurnRole = "question"
	RoleResponse TurnRole = "response"
)

// ConversationTurn is one side of a chat exchange, ordered by OccurredAt.
type ConversationTurn struct {
	Role       TurnRole
	Text       string
	OccurredAt time.Time
}

// Dataset records which uploaded table came from which source. The core
// never touches the source path; ingestion happens elsewhere.
type Dataset struct {
	ID        int64
	TableName string
	SourceRef string
	CreatedAt time.Time
	UpdatedAt time.Time
}
