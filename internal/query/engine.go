package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JPZU/InsightIQ/internal/dataset"
	"github.com/JPZU/InsightIQ/internal/llm"
	"github.com/JPZU/InsightIQ/internal/metrics"
	"github.com/JPZU/InsightIQ/internal/storage/models"
	"github.com/JPZU/InsightIQ/pkg/logger"
)

const contextTurnLimit = 5

const formatInstruction = "IMPORTANT: When the user asks for data that could be displayed as a table or graph, return the data as a simple list format. Do not attempt to create tables or graphs as the frontend developers will handle the visualization."

const apologyMessage = "I apologize, but I encountered an error while processing your request. Please try rephrasing your question."

type AgentRunner interface {
	Run(ctx context.Context, prompt string) (*llm.Trace, error)
}

type Executor interface {
	Execute(ctx context.Context, query string) (*dataset.QueryResult, error)
}

type ChatStore interface {
	RecentTurns(ctx context.Context, chatID int64, limit int) ([]models.ConversationTurn, error)
	InsertQuestion(ctx context.Context, chatID int64, content string) error
	InsertResponse(ctx context.Context, chatID int64, content string) error
}

type SchemaSource interface {
	SpacedColumnNames(ctx context.Context) ([]string, error)
}

// QueryError is the structured execution-failure payload served in place
// of a result set.
type QueryError struct {
	Message string `json:"error"`
	Details string `json:"details"`
}

// Answer is always well-formed: failures are absorbed into Content and
// Error, never surfaced as a transport error to the caller.
type Answer struct {
	ID        string
	Content   string
	Result    *dataset.QueryResult
	Chart     *Chart
	Error     *QueryError
	LatencyMS int
}

type AskRequest struct {
	Question string
	ChatID   int64 // 0 means no conversation context
}

// Engine turns a natural-language question into an answer: context
// assembly, agent invocation, SQL extraction, execution and result
// classification. Engines hold no mutable state and are safe for
// concurrent use.
type Engine struct {
	agent   AgentRunner
	exec    Executor
	chats   ChatStore
	schema  SchemaSource
	timeout time.Duration
}

func NewEngine(agent AgentRunner, exec Executor, chats ChatStore, schema SchemaSource, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Engine{
		agent:   agent,
		exec:    exec,
		chats:   chats,
		schema:  schema,
		timeout: timeout,
	}
}

// Ask processes one question end to end. The returned answer is always
// usable; see QueryError for the execution-failure shape.
func (e *Engine) Ask(ctx context.Context, req AskRequest) *Answer {
	start := time.Now()
	answer, outcome := e.ask(ctx, req)
	answer.LatencyMS = int(time.Since(start).Milliseconds())

	metrics.QueryTotal.WithLabelValues(outcome).Inc()
	metrics.QueryDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if req.ChatID != 0 {
		if err := e.chats.InsertQuestion(ctx, req.ChatID, req.Question); err != nil {
			logger.Warn("Failed to record question", zap.Error(err))
		}
		if err := e.chats.InsertResponse(ctx, req.ChatID, answer.Content); err != nil {
			logger.Warn("Failed to record response", zap.Error(err))
		}
	}

	return answer
}

// ask returns the answer together with its outcome label for metrics.
// The label reflects what actually happened, never the answer text.
func (e *Engine) ask(ctx context.Context, req AskRequest) (*Answer, string) {
	answer := &Answer{ID: uuid.New().String()}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	logger.Info("Processing question",
		zap.String("query_id", answer.ID),
		zap.Int64("chat_id", req.ChatID),
	)

	trace, err := e.agent.Run(ctx, e.buildPrompt(ctx, req))
	if err != nil {
		logger.Warn("Agent invocation failed",
			zap.String("query_id", answer.ID),
			zap.Error(err),
		)
		answer.Content = apologyMessage
		return answer, "transport_error"
	}

	answer.Content = trace.FinalText

	rawSQL := ExtractSQL(trace)
	if rawSQL == "" {
		return answer, "direct"
	}

	sql := Sanitize(rawSQL, e.spacedIdents(ctx))

	result, err := e.exec.Execute(ctx, sql)
	if err != nil {
		answer.Content = apologyMessage
		answer.Error = classifyExecError(err)
		logger.Warn("SQL execution failed",
			zap.String("query_id", answer.ID),
			zap.String("sql", sql),
			zap.String("kind", answer.Error.Message),
		)
		return answer, "execution_error"
	}

	answer.Result = result
	answer.Chart = Classify(req.Question, result)

	logger.Info("Question answered",
		zap.String("query_id", answer.ID),
		zap.Int("rows", len(result.Rows)),
		zap.Bool("chart", answer.Chart != nil),
	)

	return answer, "success"
}

// buildPrompt renders the fixed instruction, the last turns of the chat
// in chronological order, and the question itself.
func (e *Engine) buildPrompt(ctx context.Context, req AskRequest) string {
	var history string
	if req.ChatID != 0 {
		turns, err := e.chats.RecentTurns(ctx, req.ChatID, contextTurnLimit)
		if err != nil {
			logger.Warn("Failed to load chat context", zap.Error(err))
		}

		lines := make([]string, 0, len(turns))
		for _, turn := range turns {
			lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, turn.Text))
		}
		history = strings.Join(lines, "\n")
	}

	if history == "" {
		return fmt.Sprintf("%s\n\n%s", formatInstruction, req.Question)
	}
	return fmt.Sprintf("%s\n\n%s\nUser: %s", formatInstruction, history, req.Question)
}

func (e *Engine) spacedIdents(ctx context.Context) []string {
	idents, err := e.schema.SpacedColumnNames(ctx)
	if err != nil {
		logger.Warn("Failed to load spaced column names", zap.Error(err))
		return nil
	}
	return idents
}

// classifyExecError sorts an execution failure into syntax vs processing
// by message substring; the executor has no structured codes to offer.
func classifyExecError(err error) *QueryError {
	msg := err.Error()
	errType := "processing error"
	if strings.Contains(strings.ToLower(msg), "syntax error") {
		errType = "syntax error"
	}

	return &QueryError{
		Message: fmt.Sprintf("There was an %s.", errType),
		Details: msg,
	}
}
