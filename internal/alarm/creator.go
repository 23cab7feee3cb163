package alarm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JPZU/InsightIQ/internal/dataset"
	"github.com/JPZU/InsightIQ/internal/llm"
	"github.com/JPZU/InsightIQ/internal/storage/models"
	"github.com/JPZU/InsightIQ/pkg/logger"
)

type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, error)
}

type TableSource interface {
	ListTables(ctx context.Context) ([]string, error)
	TableSchema(ctx context.Context, tableName string) ([]dataset.ColumnInfo, error)
	SampleRows(ctx context.Context, tableName string, limit int) ([]map[string]any, error)
}

type RuleStore interface {
	InsertAlarm(ctx context.Context, rule *models.AlarmRule) (int64, error)
}

// Creator builds alarm rules from natural-language descriptions: the
// model picks the target table, then fills in field, condition and
// threshold from the table's schema and a few sample rows.
type Creator struct {
	completer Completer
	tables    TableSource
	store     RuleStore
}

func NewCreator(completer Completer, tables TableSource, store RuleStore) *Creator {
	return &Creator{
		completer: completer,
		tables:    tables,
		store:     store,
	}
}

type ruleDraft struct {
	Field       string      `json:"field"`
	Condition   string      `json:"condition"`
	Threshold   json.Number `json:"threshold"`
	Description string      `json:"description"`
}

// Create turns userInput into a persisted active rule and returns it.
func (c *Creator) Create(ctx context.Context, userInput string, userID int64) (*models.AlarmRule, error) {
	tables, err := c.tables.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no dataset tables available")
	}

	tableName, err := c.detectTable(ctx, userInput, tables)
	if err != nil {
		return nil, err
	}

	schema, err := c.tables.TableSchema(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	if schema == nil {
		return nil, fmt.Errorf("no schema found for table %q", tableName)
	}

	samples, err := c.tables.SampleRows(ctx, tableName, 3)
	if err != nil {
		logger.Warn("Failed to load sample rows", zap.Error(err))
	}

	draft, err := c.generateDraft(ctx, userInput, schema, samples)
	if err != nil {
		return nil, err
	}

	condition, ok := normalizeCondition(draft.Condition)
	if !ok {
		return nil, fmt.Errorf("model produced unrecognized condition %q", draft.Condition)
	}

	threshold, err := draft.Threshold.Float64()
	if err != nil {
		return nil, fmt.Errorf("model produced non-numeric threshold %q: %w", draft.Threshold, err)
	}

	rule := &models.AlarmRule{
		TableName:   tableName,
		Field:       draft.Field,
		Condition:   condition,
		Threshold:   threshold,
		Description: draft.Description,
		UserID:      userID,
		IsActive:    true,
	}

	id, err := c.store.InsertAlarm(ctx, rule)
	if err != nil {
		return nil, err
	}
	rule.ID = id

	return rule, nil
}

func (c *Creator) detectTable(ctx context.Context, userInput string, tables []string) (string, error) {
	prompt := fmt.Sprintf(`You are an assistant that helps identify the correct database table based on the user's natural language request.

Available tables: %s.

User input: "%s"

Respond with ONLY the table name that best fits the user's request.`, strings.Join(tables, ", "), userInput)

	response, err := c.completer.Complete(ctx, llm.CompletionRequest{UserPrompt: prompt})
	if err != nil {
		return "", fmt.Errorf("table detection failed: %w", err)
	}

	detected := strings.TrimSpace(response)
	for _, table := range tables {
		if strings.EqualFold(detected, table) {
			return table, nil
		}
	}

	return "", fmt.Errorf("no table detected from user input (model said %q)", detected)
}

func (c *Creator) generateDraft(ctx context.Context, userInput string, schema []dataset.ColumnInfo, samples []map[string]any) (*ruleDraft, error) {
	columns := make([]string, 0, len(schema))
	for _, col := range schema {
		columns = append(columns, fmt.Sprintf("%s (%s)", col.Name, col.DataType))
	}

	var b strings.Builder
	fmt.Fprintf(&b, `Act as an assistant that helps create alarms for tabular datasets.
The user will describe the alarm in natural language, and you will generate a structured alarm detail.

Table schema: %s.
`, strings.Join(columns, ", "))

	if len(samples) > 0 {
		fmt.Fprintf(&b, "Here is some sample data to help you understand the context: %v.\n", samples)
	}

	fmt.Fprintf(&b, `
User request: "%s"

Provide a JSON object with the following keys:
- 'field': the column name from the schema to monitor
- 'condition': one of "less than", "greater than", "equal to"
- 'threshold': the numeric value that will trigger the alarm
- 'description': a human-readable description of the alarm

Return ONLY the JSON object. Do NOT include extra explanations or formatting.`, userInput)

	response, err := c.completer.Complete(ctx, llm.CompletionRequest{UserPrompt: b.String()})
	if err != nil {
		return nil, fmt.Errorf("alarm detail generation failed: %w", err)
	}

	var draft ruleDraft
	if err := json.Unmarshal([]byte(stripCodeFences(response)), &draft); err != nil {
		return nil, fmt.Errorf("model response is not valid JSON: %w", err)
	}
	if draft.Field == "" {
		return nil, fmt.Errorf("model response is missing the field name")
	}

	return &draft, nil
}

// stripCodeFences unwraps ```json ... ``` blocks the model sometimes
// emits despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func normalizeCondition(raw string) (models.Condition, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "_", " ")

	switch models.Condition(normalized) {
	case models.ConditionLessThan:
		return models.ConditionLessThan, true
	case models.ConditionGreaterThan:
		return models.ConditionGreaterThan, true
	case models.ConditionEqualTo:
		return models.ConditionEqualTo, true
	default:
		return "", false
	}
}
