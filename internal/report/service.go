package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JPZU/InsightIQ/pkg/logger"
)

type TextRunner interface {
	RunText(ctx context.Context, prompt string) (string, error)
}

type Report struct {
	ID         string    `json:"id"`
	ReportText string    `json:"report_text"`
	Date       time.Time `json:"date"`
}

// Service generates a markdown analysis report over the loaded dataset
// through the SQL agent's text-only path.
type Service struct {
	runner TextRunner
}

func NewService(runner TextRunner) *Service {
	return &Service{runner: runner}
}

const reportPrompt = `You are a data analyst specialized in inventory management. Analyze the current database and write a clear, professional, and well-structured report in markdown format, including the following sections:

## Inventory Status Summary
- Briefly describe the current state of the inventory.
- Mention if there are any products with unusual stock levels (very high or very low).

## High and Low Turnover Products
- List the products with the highest turnover and provide key data such as units sold or frequency of movement.
- Do the same for the products with the lowest turnover.

## Restocking Recommendations
- Suggest which products should be restocked soon.
- Justify each recommendation based on historical patterns.

## Conclusion
- Summarize the most important points and the suggested priority action in a few sentences.

Make sure to use clear language, avoid unnecessary technical terms, and write the report as if presenting it to a non-technical general manager.
**Important:** The entire report must be written in English, with no translations or mixed languages. Assume your audience speaks only English.`

func (s *Service) GenerateConsumptionAndTurnoverReport(ctx context.Context) (*Report, error) {
	text, err := s.runner.RunText(ctx, reportPrompt)
	if err != nil {
		return nil, fmt.Errorf("report generation failed: %w", err)
	}

	report := &Report{
		ID:         uuid.New().String(),
		ReportText: text,
		Date:       time.Now(),
	}

	logger.Info("Detail report generated",
		zap.String("report_id", report.ID),
		zap.Int("length", len(text)),
	)

	return report, nil
}
