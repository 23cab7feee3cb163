package handlers

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JPZU/InsightIQ/internal/query"
	"github.com/JPZU/InsightIQ/internal/storage/models"
	"github.com/JPZU/InsightIQ/pkg/logger"
)

type Asker interface {
	Ask(ctx context.Context, req query.AskRequest) *query.Answer
}

type ChatGetter interface {
	GetChat(ctx context.Context, chatID int64) (*models.Chat, error)
}

type QueryHandler struct {
	engine Asker
	chats  ChatGetter
}

func NewQueryHandler(engine Asker, chats ChatGetter) *QueryHandler {
	return &QueryHandler{engine: engine, chats: chats}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req struct {
		Question string `json:"question"`
		ChatID   int64  `json:"chat_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}

	if req.ChatID != 0 {
		if _, err := h.chats.GetChat(c.Context(), req.ChatID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Chat not found",
				})
			}
			logger.Error("Failed to look up chat", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to look up chat",
			})
		}
	}

	answer := h.engine.Ask(c.Context(), query.AskRequest{
		Question: req.Question,
		ChatID:   req.ChatID,
	})

	return c.JSON(AnswerPayload(answer))
}

// AnswerPayload renders an answer in the wire shape consumers expect:
// content plus a column-keyed query_result, with graph_data/x_axis/y_axis
// added for chart-eligible results.
func AnswerPayload(a *query.Answer) fiber.Map {
	payload := fiber.Map{
		"id":         a.ID,
		"content":    a.Content,
		"latency_ms": a.LatencyMS,
	}

	switch {
	case a.Error != nil:
		payload["query_result"] = a.Error
	case a.Result != nil:
		payload["query_result"] = a.Result.ColumnMap()
	default:
		payload["query_result"] = fiber.Map{}
	}

	if a.Chart != nil {
		payload["graph_data"] = map[string][]any{
			a.Chart.XLabel: a.Chart.XValues,
			a.Chart.YLabel: a.Chart.YValues,
		}
		payload["x_axis"] = a.Chart.XLabel
		payload["y_axis"] = a.Chart.YLabel
	}

	return payload
}
