package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
)

// ColumnStats summarizes one numeric column.
type ColumnStats struct {
	Count  int64    `json:"count"`
	Mean   float64  `json:"mean"`
	StdDev *float64 `json:"std"`
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
}

// TableStats is the descriptive-statistics payload for a table: one entry
// per numeric column.
type TableStats struct {
	TableName string                 `json:"table_name"`
	Columns   map[string]ColumnStats `json:"descriptive_statistics"`
}

var numericTypeFragments = []string{"INT", "REAL", "FLOA", "DOUB", "NUM", "DEC"}

func isNumericType(dataType string) bool {
	upper := strings.ToUpper(dataType)
	for _, fragment := range numericTypeFragments {
		if strings.Contains(upper, fragment) {
			return true
		}
	}
	return false
}

// Describe computes count, mean, standard deviation, min and max for every
// numeric column of a table, or nil when the table does not exist. Columns
// with no non-null values are skipped.
func (in *Introspector) Describe(ctx context.Context, tableName string) (*TableStats, error) {
	schema, err := in.TableSchema(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if schema == nil {
		return nil, nil
	}

	stats := &TableStats{
		TableName: tableName,
		Columns:   map[string]ColumnStats{},
	}

	for _, col := range schema {
		if !isNumericType(col.DataType) {
			continue
		}

		colStats, err := in.describeColumn(ctx, tableName, col.Name)
		if err != nil {
			return nil, err
		}
		if colStats != nil {
			stats.Columns[col.Name] = *colStats
		}
	}

	return stats, nil
}

func (in *Introspector) describeColumn(ctx context.Context, tableName, colName string) (*ColumnStats, error) {
	ident := quoteIdent(colName)
	query := fmt.Sprintf(
		"SELECT COUNT(%s), AVG(%s), AVG(%s * %s), MIN(%s), MAX(%s) FROM %s WHERE %s IS NOT NULL",
		ident, ident, ident, ident, ident, ident, quoteIdent(tableName), ident)

	var count int64
	var mean, meanSquares, min, max sql.NullFloat64
	err := in.db.QueryRowContext(ctx, query).Scan(&count, &mean, &meanSquares, &min, &max)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats for %q: %w", colName, err)
	}
	if count == 0 {
		return nil, nil
	}

	stats := &ColumnStats{
		Count: count,
		Mean:  mean.Float64,
		Min:   min.Float64,
		Max:   max.Float64,
	}
	if count > 1 {
		// Sample standard deviation from the first two moments;
		// clamp the variance against float rounding below zero.
		variance := (meanSquares.Float64 - stats.Mean*stats.Mean) * float64(count) / float64(count-1)
		if variance < 0 {
			variance = 0
		}
		std := math.Sqrt(variance)
		stats.StdDev = &std
	}

	return stats, nil
}
