package synthetic

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JPZU/InsightIQ/internal/dataset"
	"github.com/JPZU/InsightIQ/internal/llm"
	"github.com/JPZU/InsightIQ/pkg/logger"
)

const (
	defaultRecords = 10
	maxBatchSize   = 40
	maxAttempts    = 5
	maxDetailsLen  = 500
	sampleLimit    = 10
)

var (
	ErrTableNotFound  = errors.New("table does not exist")
	ErrDetailsTooLong = fmt.Errorf("details must be at most %d characters", maxDetailsLen)
)

type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, error)
}

type TableSource interface {
	TableSchema(ctx context.Context, tableName string) ([]dataset.ColumnInfo, error)
	SampleRows(ctx context.Context, tableName string, limit int) ([]map[string]any, error)
}

// Generator produces synthetic rows for an existing table: the model is
// prompted with the table's schema and a few real rows and answers in CSV,
// batched until the requested count is reached.
type Generator struct {
	completer Completer
	tables    TableSource
}

func NewGenerator(completer Completer, tables TableSource) *Generator {
	return &Generator{
		completer: completer,
		tables:    tables,
	}
}

type Request struct {
	TableName  string
	Details    string
	NumRecords int
}

type Result struct {
	TableName string               `json:"table_name"`
	Schema    []dataset.ColumnInfo `json:"schema"`
	Columns   []string             `json:"columns"`
	Rows      [][]string           `json:"synthetic_data"`
}

// Generate returns req.NumRecords synthetic rows for the table. Batches
// of at most maxBatchSize rows are requested until the count is reached;
// the attempt budget bounds a model that keeps undergenerating.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	if len(req.Details) > maxDetailsLen {
		return nil, ErrDetailsTooLong
	}
	if req.NumRecords <= 0 {
		req.NumRecords = defaultRecords
	}

	schema, err := g.tables.TableSchema(ctx, req.TableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	if schema == nil {
		return nil, ErrTableNotFound
	}

	columns := make([]string, len(schema))
	for i, col := range schema {
		columns[i] = col.Name
	}

	samples, err := g.tables.SampleRows(ctx, req.TableName, sampleLimit)
	if err != nil {
		logger.Warn("Failed to read sample rows", zap.Error(err))
	}

	var rows [][]string
	for attempt := 0; attempt < maxAttempts && len(rows) < req.NumRecords; attempt++ {
		batchSize := req.NumRecords - len(rows)
		if batchSize > maxBatchSize {
			batchSize = maxBatchSize
		}

		response, err := g.completer.Complete(ctx, llm.CompletionRequest{
			UserPrompt: g.buildPrompt(req, schema, samples, batchSize),
		})
		if err != nil {
			return nil, fmt.Errorf("generation failed: %w", err)
		}

		batch, err := parseCSVRows(response, columns)
		if err != nil {
			logger.Warn("Discarding malformed batch",
				zap.String("table", req.TableName),
				zap.Error(err),
			)
			continue
		}
		rows = append(rows, batch...)
	}

	if len(rows) < req.NumRecords {
		return nil, fmt.Errorf("generated %d of %d requested rows after %d attempts",
			len(rows), req.NumRecords, maxAttempts)
	}

	return &Result{
		TableName: req.TableName,
		Schema:    schema,
		Columns:   columns,
		Rows:      rows[:req.NumRecords],
	}, nil
}

func (g *Generator) buildPrompt(req Request, schema []dataset.ColumnInfo, samples []map[string]any, batchSize int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Generate %d rows of synthetic data based on this information: table name: %s. Schema: ",
		batchSize, req.TableName)
	for i, col := range schema {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", col.Name, col.DataType)
	}
	b.WriteString(".")

	if req.Details != "" {
		fmt.Fprintf(&b,
			" Following are some details the user specified about the data; still adhere to the format of the CSV: '%s'.",
			req.Details)
	}

	if len(samples) > 0 {
		fmt.Fprintf(&b, " Take as a guide these real rows from the table: %v.", samples)
	}

	b.WriteString(" Return ONLY the data, in CSV format.")

	return b.String()
}

// parseCSVRows parses a model response into data rows: a leading header
// row matching the column names is dropped and rows with the wrong field
// count are skipped.
func parseCSVRows(response string, columns []string) ([][]string, error) {
	reader := csv.NewReader(strings.NewReader(strings.TrimSpace(response)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}

	var rows [][]string
	for i, record := range records {
		if i == 0 && isHeaderRow(record, columns) {
			continue
		}
		if len(record) != len(columns) {
			continue
		}
		rows = append(rows, record)
	}

	return rows, nil
}

func isHeaderRow(record, columns []string) bool {
	if len(record) != len(columns) {
		return false
	}
	for i, field := range record {
		if !strings.EqualFold(strings.TrimSpace(field), columns[i]) {
			return false
		}
	}
	return true
}
