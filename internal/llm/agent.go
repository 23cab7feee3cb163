package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/JPZU/InsightIQ/internal/dataset"
	"github.com/JPZU/InsightIQ/pkg/logger"
)

const (
	toolListTables  = "sql_db_list_tables"
	toolTableSchema = "sql_db_schema"
	toolQuery       = "sql_db_query"
)

const agentSystemPrompt = `You are an agent designed to interact with a SQL database.
Given an input question, create a syntactically correct SQLite query to run, then look at the results and return the answer.
Unless the user specifies a specific number of examples, limit your query to at most %d results.
Never query for all the columns from a specific table, only ask for the relevant columns given the question.
Only use the results of your queries to answer. Do NOT make up an answer.
Do NOT issue INSERT, UPDATE, DELETE, DROP or any other DML/DDL statements.
If the question does not seem related to the database, answer from the conversation context instead of querying.`

// Agent drives the tool-calling loop: the model asks for tables, schemas
// and query results until it produces a final answer. Every tool call is
// recorded as a Step in the returned Trace.
type Agent struct {
	client       *Client
	introspector *dataset.Introspector
	executor     *dataset.Executor
	maxSteps     int
	rowLimit     int
}

func NewAgent(client *Client, introspector *dataset.Introspector, executor *dataset.Executor, maxSteps, rowLimit int) *Agent {
	if maxSteps <= 0 {
		maxSteps = 8
	}
	if rowLimit <= 0 {
		rowLimit = 500
	}

	return &Agent{
		client:       client,
		introspector: introspector,
		executor:     executor,
		maxSteps:     maxSteps,
		rowLimit:     rowLimit,
	}
}

func (a *Agent) tools() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionDefinition{
				Name:        toolListTables,
				Description: "List the names of all tables in the database.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionDefinition{
				Name:        toolTableSchema,
				Description: "Return the schema and sample rows for the given table.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"table": map[string]any{
							"type":        "string",
							"description": "Name of the table.",
						},
					},
					"required": []string{"table"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionDefinition{
				Name:        toolQuery,
				Description: "Execute a SQLite SELECT query and return the result rows.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "The SQL query to execute.",
						},
					},
					"required": []string{"query"},
				},
			},
		},
	}
}

// Run executes the agent loop for one prompt and returns the trace. A
// transport failure or an exhausted step budget surfaces as an error; the
// caller owns the user-facing fallback.
func (a *Agent) Run(ctx context.Context, prompt string) (*Trace, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(agentSystemPrompt, a.rowLimit)},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}

	trace := &Trace{}

	for i := 0; i < a.maxSteps; i++ {
		msg, err := a.client.Chat(ctx, messages, a.tools())
		if err != nil {
			return nil, err
		}

		if len(msg.ToolCalls) == 0 {
			trace.FinalText = msg.Content
			return trace, nil
		}

		messages = append(messages, msg)

		for _, call := range msg.ToolCalls {
			step, output := a.dispatch(ctx, call)
			trace.Steps = append(trace.Steps, step)

			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    output,
			})
		}
	}

	return trace, fmt.Errorf("agent exceeded step budget of %d", a.maxSteps)
}

// RunText runs the agent and returns only the final answer text.
func (a *Agent) RunText(ctx context.Context, prompt string) (string, error) {
	trace, err := a.Run(ctx, prompt)
	if err != nil {
		return "", err
	}
	return trace.FinalText, nil
}

func (a *Agent) dispatch(ctx context.Context, call openai.ToolCall) (Step, string) {
	step := Step{Tool: call.Function.Name}

	var args struct {
		Table string `json:"table"`
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		output := fmt.Sprintf("invalid tool arguments: %v", err)
		step.Output = output
		return step, output
	}

	var output string
	switch call.Function.Name {
	case toolListTables:
		output = a.runListTables(ctx)
	case toolTableSchema:
		output = a.runTableSchema(ctx, args.Table)
	case toolQuery:
		step.Query = args.Query
		step.HasQuery = true
		output = a.runQuery(ctx, args.Query)
	default:
		output = fmt.Sprintf("unknown tool %q", call.Function.Name)
	}

	step.Output = output

	logger.Debug("Agent tool call",
		zap.String("tool", call.Function.Name),
		zap.Bool("has_query", step.HasQuery),
	)

	return step, output
}

func (a *Agent) runListTables(ctx context.Context) string {
	tables, err := a.introspector.ListTables(ctx)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return strings.Join(tables, ", ")
}

func (a *Agent) runTableSchema(ctx context.Context, table string) string {
	schema, err := a.introspector.TableSchema(ctx, table)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	if schema == nil {
		return fmt.Sprintf("table %q does not exist", table)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Table %s:\n", table)
	for _, col := range schema {
		fmt.Fprintf(&b, "  %s %s", col.Name, col.DataType)
		if col.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
		}
		if !col.Nullable {
			b.WriteString(" NOT NULL")
		}
		b.WriteString("\n")
	}

	samples, err := a.introspector.SampleRows(ctx, table, 3)
	if err == nil && len(samples) > 0 {
		b.WriteString("Sample rows:\n")
		for _, row := range samples {
			fmt.Fprintf(&b, "  %v\n", row)
		}
	}

	return b.String()
}

func (a *Agent) runQuery(ctx context.Context, query string) string {
	result, err := a.executor.Execute(ctx, query)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}

	var b strings.Builder
	b.WriteString(strings.Join(result.Columns, ", "))
	b.WriteString("\n")

	rows := result.Rows
	if len(rows) > a.rowLimit {
		rows = rows[:a.rowLimit]
	}
	for _, row := range rows {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = fmt.Sprintf("%v", v)
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n")
	}
	if len(result.Rows) > a.rowLimit {
		fmt.Fprintf(&b, "... (%d more rows)\n", len(result.Rows)-a.rowLimit)
	}

	return b.String()
}
