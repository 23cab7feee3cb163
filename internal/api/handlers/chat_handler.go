package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JPZU/InsightIQ/internal/storage/sqlite"
	"github.com/JPZU/InsightIQ/pkg/logger"
)

type ChatHandler struct {
	store *sqlite.Client
}

func NewChatHandler(store *sqlite.Client) *ChatHandler {
	return &ChatHandler{store: store}
}

func (h *ChatHandler) CreateChat(c *fiber.Ctx) error {
	var req struct {
		UserID int64  `json:"user_id"`
		Name   string `json:"name"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}
	if req.UserID == 0 {
		req.UserID = 1
	}

	chat, err := h.store.CreateChat(c.Context(), req.UserID, req.Name)
	if err != nil {
		logger.Error("Failed to create chat", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create chat",
		})
	}

	return c.JSON(fiber.Map{
		"id":      chat.ID,
		"user_id": chat.UserID,
		"name":    chat.Name,
	})
}

func (h *ChatHandler) ListChats(c *fiber.Ctx) error {
	userID := int64(c.QueryInt("user_id", 1))

	chats, err := h.store.ListChats(c.Context(), userID)
	if err != nil {
		logger.Error("Failed to list chats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list chats",
		})
	}

	payload := make([]fiber.Map, 0, len(chats))
	for _, chat := range chats {
		payload = append(payload, fiber.Map{
			"id":         chat.ID,
			"user_id":    chat.UserID,
			"name":       chat.Name,
			"created_at": chat.CreatedAt.Unix(),
			"updated_at": chat.UpdatedAt.Unix(),
		})
	}

	return c.JSON(payload)
}

func (h *ChatHandler) RenameChat(c *fiber.Ctx) error {
	chatID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid chat id",
		})
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}

	if err := h.store.RenameChat(c.Context(), chatID, req.Name); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Chat not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Chat renamed successfully",
	})
}

func (h *ChatHandler) ClearMessages(c *fiber.Ctx) error {
	chatID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid chat id",
		})
	}

	if err := h.store.ClearChatMessages(c.Context(), chatID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Chat not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Chat messages cleared successfully",
	})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	chatID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid chat id",
		})
	}

	limit := c.QueryInt("limit", 10)

	turns, err := h.store.RecentTurns(c.Context(), chatID, limit)
	if err != nil {
		logger.Error("Failed to load chat messages", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load chat messages",
		})
	}

	payload := make([]fiber.Map, 0, len(turns))
	for _, turn := range turns {
		payload = append(payload, fiber.Map{
			"type":       turn.Role,
			"content":    turn.Text,
			"created_at": turn.OccurredAt.Unix(),
		})
	}

	return c.JSON(payload)
}

func (h *ChatHandler) DeleteChat(c *fiber.Ctx) error {
	chatID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid chat id",
		})
	}

	if err := h.store.DeleteChat(c.Context(), chatID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Chat not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Chat deleted successfully",
	})
}
