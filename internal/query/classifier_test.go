package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JPZU/InsightIQ/internal/dataset"
)

func TestHasChartIntent(t *testing.T) {
	tests := []struct {
		question string
		want     bool
	}{
		{"show me a chart of sales by region", true},
		{"muéstrame un gráfico de ventas", true},
		{"quiero una grafica por mes", true},
		{"please plot revenue per store", true},
		{"can you graph the totals", true},
		{"visualizar el inventario", true},
		{"how many products are in stock", false},
		{"list the top sellers", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HasChartIntent(tt.question), tt.question)
	}
}

func TestClassifyTwoColumnsNeverCharts(t *testing.T) {
	result := &dataset.QueryResult{
		Columns: []string{"region", "sales"},
		Rows: [][]any{
			{"north", 120.0},
			{"south", 80.0},
		},
	}

	assert.Nil(t, Classify("show me a chart of sales by region", result))
}

func TestClassifyPicksFirstTextAndFirstNumeric(t *testing.T) {
	result := &dataset.QueryResult{
		Columns: []string{"region", "sales", "returns"},
		Rows: [][]any{
			{"north", 120.0, 4.0},
			{"south", 80.0, 9.0},
		},
	}

	chart := Classify("chart sales by region", result)
	require.NotNil(t, chart)

	assert.Equal(t, "region", chart.XLabel)
	assert.Equal(t, "sales", chart.YLabel)
	assert.Equal(t, []any{"north", "south"}, chart.XValues)
	assert.Equal(t, []any{120.0, 80.0}, chart.YValues)
}

func TestClassifyRequiresIntent(t *testing.T) {
	result := &dataset.QueryResult{
		Columns: []string{"region", "sales", "returns"},
		Rows:    [][]any{{"north", 120.0, 4.0}},
	}

	assert.Nil(t, Classify("list sales and returns by region", result))
}

func TestClassifyNumericStrings(t *testing.T) {
	result := &dataset.QueryResult{
		Columns: []string{"product", "units", "price"},
		Rows: [][]any{
			{"widget", "1,204", "9.50"},
			{"gadget", "87", "12.00"},
		},
	}

	chart := Classify("graph units per product", result)
	require.NotNil(t, chart)

	// Thousand separators make a string numeric, not textual.
	assert.Equal(t, "product", chart.XLabel)
	assert.Equal(t, "units", chart.YLabel)
}

func TestClassifyNoTextColumn(t *testing.T) {
	result := &dataset.QueryResult{
		Columns: []string{"year", "month", "total"},
		Rows: [][]any{
			{2024, 1, 50.0},
			{2024, 2, 75.0},
		},
	}

	assert.Nil(t, Classify("chart the totals", result))
}

func TestClassifyNilAndEmptyResults(t *testing.T) {
	assert.Nil(t, Classify("chart it", nil))

	empty := &dataset.QueryResult{
		Columns: []string{"a", "b", "c"},
		Rows:    [][]any{},
	}
	assert.Nil(t, Classify("chart it", empty))
}

func TestClassifySkipsBlankLeadingValues(t *testing.T) {
	result := &dataset.QueryResult{
		Columns: []string{"note", "label", "amount"},
		Rows: [][]any{
			{nil, "north", 10.0},
			{"", "south", 20.0},
			{"ok", "east", 30.0},
		},
	}

	chart := Classify("chart amount by label", result)
	require.NotNil(t, chart)

	// "note" sniffs to its first non-blank value, which is text.
	assert.Equal(t, "note", chart.XLabel)
	assert.Equal(t, "amount", chart.YLabel)
}
