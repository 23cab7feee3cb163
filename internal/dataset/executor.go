package dataset

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/JPZU/InsightIQ/pkg/logger"
)

// QueryResult is a column-labelled result set. Every row holds exactly
// len(Columns) values, aligned to Columns.
type QueryResult struct {
	Columns []string
	Rows    [][]any
}

// Column returns the values of the i-th column across all rows.
func (r *QueryResult) Column(i int) []any {
	values := make([]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		values = append(values, row[i])
	}
	return values
}

// ColumnMap reshapes the result as column name → values, the layout the
// API has always served.
func (r *QueryResult) ColumnMap() map[string][]any {
	out := make(map[string][]any, len(r.Columns))
	for i, col := range r.Columns {
		out[col] = r.Column(i)
	}
	return out
}

// Executor runs raw SQL against the dataset tables. Connections are
// acquired per call; nothing is held across slow operations.
type Executor struct {
	db *sql.DB
}

func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db}
}

func (e *Executor) Execute(ctx context.Context, query string) (*QueryResult, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := &QueryResult{Columns: columns}

	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}

		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}

		result.Rows = append(result.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	logger.Debug("SQL executed",
		zap.Int("columns", len(result.Columns)),
		zap.Int("rows", len(result.Rows)),
	)

	return result, nil
}
