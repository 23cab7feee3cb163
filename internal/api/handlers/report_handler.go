package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JPZU/InsightIQ/internal/report"
	"github.com/JPZU/InsightIQ/pkg/logger"
)

type ReportHandler struct {
	svc *report.Service
}

func NewReportHandler(svc *report.Service) *ReportHandler {
	return &ReportHandler{svc: svc}
}

func (h *ReportHandler) GenerateReport(c *fiber.Ctx) error {
	rep, err := h.svc.GenerateConsumptionAndTurnoverReport(c.Context())
	if err != nil {
		logger.Error("Failed to generate report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate report",
		})
	}

	return c.JSON(rep)
}
