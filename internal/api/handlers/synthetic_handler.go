package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JPZU/InsightIQ/internal/synthetic"
	"github.com/JPZU/InsightIQ/pkg/logger"
)

type SyntheticHandler struct {
	generator *synthetic.Generator
}

func NewSyntheticHandler(generator *synthetic.Generator) *SyntheticHandler {
	return &SyntheticHandler{generator: generator}
}

func (h *SyntheticHandler) GenerateData(c *fiber.Ctx) error {
	tableName := c.Params("table")

	var req struct {
		Details    string `json:"details"`
		NumRecords int    `json:"num_records"`
	}
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := h.generator.Generate(c.Context(), synthetic.Request{
		TableName:  tableName,
		Details:    req.Details,
		NumRecords: req.NumRecords,
	})
	if err != nil {
		switch {
		case errors.Is(err, synthetic.ErrTableNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Table '" + tableName + "' does not exist.",
			})
		case errors.Is(err, synthetic.ErrDetailsTooLong):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
			})
		default:
			logger.Error("Failed to generate synthetic data", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to generate synthetic data",
			})
		}
	}

	return c.JSON(result)
}
