package alarm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JPZU/InsightIQ/internal/dataset"
	"github.com/JPZU/InsightIQ/internal/metrics"
	"github.com/JPZU/InsightIQ/internal/storage/models"
	"github.com/JPZU/InsightIQ/pkg/logger"
)

type RuleSource interface {
	ListActiveAlarms(ctx context.Context, tableName string) ([]models.AlarmRule, error)
}

type Executor interface {
	Execute(ctx context.Context, query string) (*dataset.QueryResult, error)
}

// Violation is one net-new row that matched an alarm rule.
type Violation struct {
	AlarmID       int64          `json:"alarm_id"`
	Description   string         `json:"description"`
	TriggeredData map[string]any `json:"triggered_data"`
}

// Evaluator runs every active rule of a table against live data and
// reports each distinct violating row at most once per rule, across
// repeated evaluations of unchanged data.
type Evaluator struct {
	rules   RuleSource
	exec    Executor
	history History
}

func NewEvaluator(rules RuleSource, exec Executor, history History) *Evaluator {
	return &Evaluator{
		rules:   rules,
		exec:    exec,
		history: history,
	}
}

// Evaluate loads the table's active rules and returns the triggered
// violations. Every returned row is recorded in history. With onlyNew,
// rows whose fingerprint is already in history are suppressed; returning
// and recording are one step, so an ignored result cannot corrupt history.
// A failing rule is skipped; it never aborts the rest of the batch.
func (e *Evaluator) Evaluate(ctx context.Context, tableName string, onlyNew bool) ([]Violation, error) {
	rules, err := e.rules.ListActiveAlarms(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to load alarm rules: %w", err)
	}

	metrics.AlarmEvaluations.WithLabelValues(tableName).Inc()

	triggered := make([]Violation, 0)

	for _, rule := range rules {
		violations, err := e.evaluateRule(ctx, tableName, rule, onlyNew)
		if err != nil {
			logger.Warn("Alarm rule evaluation failed",
				zap.Int64("alarm_id", rule.ID),
				zap.String("table", tableName),
				zap.Error(err),
			)
			continue
		}
		triggered = append(triggered, violations...)
	}

	metrics.AlarmsTriggered.WithLabelValues(tableName).Add(float64(len(triggered)))

	return triggered, nil
}

func (e *Evaluator) evaluateRule(ctx context.Context, tableName string, rule models.AlarmRule, onlyNew bool) ([]Violation, error) {
	predicate, ok := compilePredicate(rule)
	if !ok {
		logger.Warn("Alarm rule has unrecognized condition, skipping",
			zap.Int64("alarm_id", rule.ID),
			zap.String("condition", string(rule.Condition)),
		)
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT * FROM "%s" WHERE %s`, tableName, predicate)

	result, err := e.exec.Execute(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("predicate query failed: %w", err)
	}

	if len(result.Rows) == 0 {
		return nil, nil
	}

	candidates := make([]Violation, 0, len(result.Rows))
	fingerprints := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		data := make(map[string]any, len(result.Columns))
		for i, col := range result.Columns {
			data[col] = row[i]
		}
		candidates = append(candidates, Violation{
			AlarmID:       rule.ID,
			Description:   rule.Description,
			TriggeredData: data,
		})
		fingerprints = append(fingerprints, Fingerprint(data))
	}

	if !onlyNew {
		// Reported rows still count as delivered for later incremental runs.
		if err := e.history.Record(ctx, tableName, rule.ID, fingerprints); err != nil {
			return nil, fmt.Errorf("history recording failed: %w", err)
		}
		return candidates, nil
	}

	fresh, err := e.history.FilterNew(ctx, tableName, rule.ID, fingerprints)
	if err != nil {
		return nil, fmt.Errorf("history filtering failed: %w", err)
	}

	freshSet := make(map[string]struct{}, len(fresh))
	for _, fp := range fresh {
		freshSet[fp] = struct{}{}
	}

	kept := make([]Violation, 0, len(fresh))
	for i, candidate := range candidates {
		if _, ok := freshSet[fingerprints[i]]; ok {
			kept = append(kept, candidate)
			// Duplicate rows share a fingerprint; report one per value
			// combination.
			delete(freshSet, fingerprints[i])
		}
	}

	suppressed := len(candidates) - len(kept)
	if suppressed > 0 {
		metrics.AlarmsSuppressed.WithLabelValues(tableName).Add(float64(suppressed))
	}

	return kept, nil
}

// compilePredicate turns (field, condition, threshold) into a SQL boolean
// fragment. Unknown conditions report !ok and the rule is skipped.
func compilePredicate(rule models.AlarmRule) (string, bool) {
	var op string
	switch rule.Condition {
	case models.ConditionLessThan:
		op = "<"
	case models.ConditionGreaterThan:
		op = ">"
	case models.ConditionEqualTo:
		op = "="
	default:
		return "", false
	}

	return fmt.Sprintf(`"%s" %s %v`, rule.Field, op, rule.Threshold), true
}
