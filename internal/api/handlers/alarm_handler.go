package handlers

import (
	"database/sql"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JPZU/InsightIQ/internal/alarm"
	"github.com/JPZU/InsightIQ/internal/storage/models"
	"github.com/JPZU/InsightIQ/internal/storage/sqlite"
	"github.com/JPZU/InsightIQ/pkg/logger"
)

type AlarmHandler struct {
	creator   *alarm.Creator
	evaluator *alarm.Evaluator
	history   alarm.History
	store     *sqlite.Client
}

func NewAlarmHandler(creator *alarm.Creator, evaluator *alarm.Evaluator, history alarm.History, store *sqlite.Client) *AlarmHandler {
	return &AlarmHandler{
		creator:   creator,
		evaluator: evaluator,
		history:   history,
		store:     store,
	}
}

func (h *AlarmHandler) CreateAlarm(c *fiber.Ctx) error {
	var req struct {
		UserInput string `json:"user_input"`
		UserID    int64  `json:"user_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.UserInput == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_input is required",
		})
	}
	if req.UserID == 0 {
		req.UserID = 1
	}

	rule, err := h.creator.Create(c.Context(), req.UserInput, req.UserID)
	if err != nil {
		logger.Error("Failed to create alarm", zap.Error(err))
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message":       "Alarm created successfully.",
		"table_name":    rule.TableName,
		"alarm_details": alarmPayload(rule),
	})
}

func (h *AlarmHandler) ListAlarms(c *fiber.Ctx) error {
	rules, err := h.store.ListAlarms(c.Context())
	if err != nil {
		logger.Error("Failed to list alarms", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list alarms",
		})
	}

	payload := make([]fiber.Map, 0, len(rules))
	for i := range rules {
		payload = append(payload, alarmPayload(&rules[i]))
	}

	return c.JSON(payload)
}

func (h *AlarmHandler) UpdateAlarm(c *fiber.Ctx) error {
	alarmID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid alarm id",
		})
	}

	var updates map[string]any
	if err := c.BodyParser(&updates); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.store.UpdateAlarm(c.Context(), alarmID, updates); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Alarm not found",
			})
		}
		logger.Error("Failed to update alarm", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Alarm " + c.Params("id") + " updated successfully",
	})
}

// DeleteAlarm removes the rule and its dedup history, so a recreated
// rule starts delivering violations again.
func (h *AlarmHandler) DeleteAlarm(c *fiber.Ctx) error {
	alarmID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid alarm id",
		})
	}

	if err := h.store.DeleteAlarm(c.Context(), alarmID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Alarm not found",
			})
		}
		logger.Error("Failed to delete alarm", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete alarm",
		})
	}

	if err := h.history.Clear(c.Context(), alarm.ClearFilter{AlarmID: alarmID}); err != nil {
		logger.Warn("Failed to clear alarm history", zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"message": "Alarm with ID " + c.Params("id") + " deleted successfully",
	})
}

func (h *AlarmHandler) EvaluateTable(c *fiber.Ctx) error {
	tableName := c.Params("table")
	onlyNew := c.QueryBool("only_new", true)

	violations, err := h.evaluator.Evaluate(c.Context(), tableName, onlyNew)
	if err != nil {
		logger.Error("Alarm evaluation failed",
			zap.String("table", tableName),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to evaluate alarms",
		})
	}

	return c.JSON(fiber.Map{
		"table_name": tableName,
		"triggered":  violations,
	})
}

func (h *AlarmHandler) ClearHistory(c *fiber.Ctx) error {
	filter := alarm.ClearFilter{TableName: c.Query("table")}

	if raw := c.Query("alarm_id"); raw != "" {
		alarmID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid alarm_id",
			})
		}
		filter.AlarmID = alarmID
	}

	if err := h.history.Clear(c.Context(), filter); err != nil {
		logger.Error("Failed to clear alarm history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to clear alarm history",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Alarm history cleared",
	})
}

func alarmPayload(rule *models.AlarmRule) fiber.Map {
	return fiber.Map{
		"id":          rule.ID,
		"table_name":  rule.TableName,
		"field":       rule.Field,
		"condition":   rule.Condition,
		"threshold":   rule.Threshold,
		"description": rule.Description,
		"is_active":   rule.IsActive,
		"created_at":  rule.CreatedAt.Unix(),
		"updated_at":  rule.UpdatedAt.Unix(),
	}
}
