package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/JPZU/InsightIQ/internal/query"
	"github.com/JPZU/InsightIQ/pkg/logger"
)

type WebSocketHandler struct {
	engine *query.Engine
}

func NewWebSocketHandler(engine *query.Engine) *WebSocketHandler {
	return &WebSocketHandler{engine: engine}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type     string `json:"type"`
			Question string `json:"question"`
			ChatID   int64  `json:"chat_id"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "query" || msg.Question == "" {
			h.sendError(c, "Expected a query message with a question")
			continue
		}

		logger.Info("Processing WebSocket query", zap.String("question", msg.Question))

		h.sendStatus(c, "Processing query...")

		answer := h.engine.Ask(context.Background(), query.AskRequest{
			Question: msg.Question,
			ChatID:   msg.ChatID,
		})

		payload := AnswerPayload(answer)
		payload["type"] = "answer"

		if err := c.WriteJSON(payload); err != nil {
			logger.Error("Failed to write WebSocket answer", zap.Error(err))
			break
		}
	}
}

func (h *WebSocketHandler) sendStatus(c *websocket.Conn, content string) {
	c.WriteJSON(map[string]any{
		"type":    "status",
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]any{
		"type":  "error",
		"error": errorMsg,
	})
}
