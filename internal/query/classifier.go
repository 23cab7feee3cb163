package query

import (
	"strconv"
	"strings"

	"github.com/JPZU/InsightIQ/internal/dataset"
)

// chartKeywords is the fixed multilingual set that signals chart intent.
// This is a substring test, not NLP.
var chartKeywords = []string{
	"gráfico", "grafico", "gráfica", "grafica",
	"chart", "graph", "visualizar", "visualización", "visualize", "plot",
}

// Chart is the (x, y) reshaping of a result for consumers that render a
// single series.
type Chart struct {
	XLabel  string `json:"x_axis"`
	YLabel  string `json:"y_axis"`
	XValues []any  `json:"x_values"`
	YValues []any  `json:"y_values"`
}

// HasChartIntent reports whether the question asks for a visualization.
func HasChartIntent(question string) bool {
	lower := strings.ToLower(question)
	for _, kw := range chartKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Classify decides whether result can also be served chart-shaped for
// question. It returns nil unless the question carries chart intent, the
// result has more than two columns, and both a text-typed and a
// numeric-typed column are found by value sniffing. Pure function.
func Classify(question string, result *dataset.QueryResult) *Chart {
	if result == nil || !HasChartIntent(question) {
		return nil
	}
	if len(result.Columns) <= 2 {
		return nil
	}

	textIdx := -1
	numericIdx := -1

	for i := range result.Columns {
		values := result.Column(i)
		first, ok := firstNonBlank(values)
		if !ok {
			continue
		}

		if _, numeric := parseNumeric(first); numeric {
			if numericIdx < 0 {
				numericIdx = i
			}
		} else if textIdx < 0 && hasStringValue(values) {
			textIdx = i
		}
	}

	if textIdx < 0 || numericIdx < 0 {
		return nil
	}

	return &Chart{
		XLabel:  result.Columns[textIdx],
		YLabel:  result.Columns[numericIdx],
		XValues: result.Column(textIdx),
		YValues: result.Column(numericIdx),
	}
}

func firstNonBlank(values []any) (any, bool) {
	for _, v := range values {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// parseNumeric is the best-effort column typer: it sniffs one value, it
// is not a type system. Thousands separators are stripped before parsing.
func parseNumeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func hasStringValue(values []any) bool {
	for _, v := range values {
		if _, ok := v.(string); ok {
			return true
		}
	}
	return false
}
