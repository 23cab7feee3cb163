package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JPZU/InsightIQ/internal/dataset"
	"github.com/JPZU/InsightIQ/internal/storage/sqlite"
	"github.com/JPZU/InsightIQ/pkg/logger"
)

type TableHandler struct {
	introspector *dataset.Introspector
	store        *sqlite.Client
}

func NewTableHandler(introspector *dataset.Introspector, store *sqlite.Client) *TableHandler {
	return &TableHandler{
		introspector: introspector,
		store:        store,
	}
}

func (h *TableHandler) ListTables(c *fiber.Ctx) error {
	tables, err := h.introspector.ListTables(c.Context())
	if err != nil {
		logger.Error("Failed to list tables", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list tables",
		})
	}

	return c.JSON(fiber.Map{
		"tables": tables,
	})
}

func (h *TableHandler) GetTableInfo(c *fiber.Ctx) error {
	tableName := c.Params("table")

	schema, err := h.introspector.TableSchema(c.Context(), tableName)
	if err != nil {
		logger.Error("Failed to read table schema", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read table schema",
		})
	}
	if schema == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Table '" + tableName + "' does not exist.",
		})
	}

	samples, err := h.introspector.SampleRows(c.Context(), tableName, 5)
	if err != nil {
		logger.Warn("Failed to read sample rows", zap.Error(err))
	}
	if samples == nil {
		samples = []map[string]any{}
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"table_name":  tableName,
		"schema":      schema,
		"sample_data": samples,
	})
}

func (h *TableHandler) GetTableStats(c *fiber.Ctx) error {
	tableName := c.Params("table")

	stats, err := h.introspector.Describe(c.Context(), tableName)
	if err != nil {
		logger.Error("Failed to compute table statistics", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute table statistics",
		})
	}
	if stats == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Table '" + tableName + "' does not exist.",
		})
	}

	return c.JSON(stats)
}

func (h *TableHandler) ListDatasets(c *fiber.Ctx) error {
	datasets, err := h.store.ListDatasets(c.Context())
	if err != nil {
		logger.Error("Failed to list datasets", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list datasets",
		})
	}

	payload := make([]fiber.Map, 0, len(datasets))
	for _, d := range datasets {
		payload = append(payload, fiber.Map{
			"id":         d.ID,
			"table_name": d.TableName,
			"source_ref": d.SourceRef,
			"created_at": d.CreatedAt.Unix(),
			"updated_at": d.UpdatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{
		"datasets": payload,
	})
}
