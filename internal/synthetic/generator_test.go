package synthetic

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JPZU/InsightIQ/internal/dataset"
	"github.com/JPZU/InsightIQ/internal/llm"
)

type fakeCompleter struct {
	responses []string
	err       error
	prompts   []string
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.prompts = append(f.prompts, req.UserPrompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

type fakeTableSource struct {
	schema  []dataset.ColumnInfo
	samples []map[string]any
}

func (f *fakeTableSource) TableSchema(_ context.Context, _ string) ([]dataset.ColumnInfo, error) {
	return f.schema, nil
}

func (f *fakeTableSource) SampleRows(_ context.Context, _ string, _ int) ([]map[string]any, error) {
	return f.samples, nil
}

func inventoryTables() *fakeTableSource {
	return &fakeTableSource{
		schema: []dataset.ColumnInfo{
			{Name: "product", DataType: "TEXT"},
			{Name: "stock", DataType: "INTEGER"},
		},
		samples: []map[string]any{{"product": "widget", "stock": 12}},
	}
}

func csvBatch(n int) string {
	lines := []string{"product,stock"}
	for i := 0; i < n; i++ {
		lines = append(lines, "item,1")
	}
	return strings.Join(lines, "\n")
}

func TestGenerateReturnsRequestedRows(t *testing.T) {
	completer := &fakeCompleter{responses: []string{csvBatch(3)}}
	gen := NewGenerator(completer, inventoryTables())

	result, err := gen.Generate(context.Background(), Request{
		TableName:  "inventory",
		NumRecords: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, "inventory", result.TableName)
	assert.Equal(t, []string{"product", "stock"}, result.Columns)
	require.Len(t, result.Rows, 3)
	assert.Equal(t, []string{"item", "1"}, result.Rows[0])

	require.Len(t, completer.prompts, 1)
	assert.Contains(t, completer.prompts[0], "Generate 3 rows of synthetic data")
	assert.Contains(t, completer.prompts[0], "table name: inventory")
	assert.Contains(t, completer.prompts[0], "product TEXT, stock INTEGER")
	assert.Contains(t, completer.prompts[0], "Return ONLY the data, in CSV format.")
}

func TestGenerateRetriesOnUndergeneration(t *testing.T) {
	completer := &fakeCompleter{responses: []string{csvBatch(2), csvBatch(3)}}
	gen := NewGenerator(completer, inventoryTables())

	result, err := gen.Generate(context.Background(), Request{
		TableName:  "inventory",
		NumRecords: 5,
	})
	require.NoError(t, err)

	assert.Len(t, result.Rows, 5)
	require.Len(t, completer.prompts, 2)
	assert.Contains(t, completer.prompts[1], "Generate 3 rows", "second batch asks only for the remainder")
}

func TestGenerateTrimsOvergeneration(t *testing.T) {
	completer := &fakeCompleter{responses: []string{csvBatch(10)}}
	gen := NewGenerator(completer, inventoryTables())

	result, err := gen.Generate(context.Background(), Request{
		TableName:  "inventory",
		NumRecords: 4,
	})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 4)
}

func TestGenerateBatchesLargeRequests(t *testing.T) {
	completer := &fakeCompleter{responses: []string{csvBatch(40), csvBatch(10)}}
	gen := NewGenerator(completer, inventoryTables())

	result, err := gen.Generate(context.Background(), Request{
		TableName:  "inventory",
		NumRecords: 50,
	})
	require.NoError(t, err)

	assert.Len(t, result.Rows, 50)
	require.Len(t, completer.prompts, 2)
	assert.Contains(t, completer.prompts[0], "Generate 40 rows", "batches cap at 40")
	assert.Contains(t, completer.prompts[1], "Generate 10 rows")
}

func TestGenerateGivesUpAfterAttemptBudget(t *testing.T) {
	completer := &fakeCompleter{responses: []string{}}
	gen := NewGenerator(completer, inventoryTables())

	_, err := gen.Generate(context.Background(), Request{
		TableName:  "inventory",
		NumRecords: 5,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 5 attempts")
	assert.Len(t, completer.prompts, maxAttempts)
}

func TestGenerateDefaultsRecordCount(t *testing.T) {
	completer := &fakeCompleter{responses: []string{csvBatch(10)}}
	gen := NewGenerator(completer, inventoryTables())

	result, err := gen.Generate(context.Background(), Request{TableName: "inventory"})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 10)
}

func TestGenerateUnknownTable(t *testing.T) {
	gen := NewGenerator(&fakeCompleter{}, &fakeTableSource{})

	_, err := gen.Generate(context.Background(), Request{TableName: "nope", NumRecords: 1})
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestGenerateRejectsLongDetails(t *testing.T) {
	gen := NewGenerator(&fakeCompleter{}, inventoryTables())

	_, err := gen.Generate(context.Background(), Request{
		TableName:  "inventory",
		Details:    strings.Repeat("x", maxDetailsLen+1),
		NumRecords: 1,
	})
	assert.ErrorIs(t, err, ErrDetailsTooLong)
}

func TestGenerateIncludesDetailsAndSamplesInPrompt(t *testing.T) {
	completer := &fakeCompleter{responses: []string{csvBatch(1)}}
	gen := NewGenerator(completer, inventoryTables())

	_, err := gen.Generate(context.Background(), Request{
		TableName:  "inventory",
		Details:    "only electronics",
		NumRecords: 1,
	})
	require.NoError(t, err)

	require.Len(t, completer.prompts, 1)
	assert.Contains(t, completer.prompts[0], "'only electronics'")
	assert.Contains(t, completer.prompts[0], "widget")
}

func TestParseCSVRows(t *testing.T) {
	columns := []string{"product", "stock"}

	rows, err := parseCSVRows("product,stock\na,1\nb,2", columns)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "1"}, {"b", "2"}}, rows)

	rows, err = parseCSVRows("a,1\nb,2", columns)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "headerless output is kept whole")

	rows, err = parseCSVRows("product,stock\na,1\nmalformed\nb,2", columns)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "rows with the wrong arity are dropped")
}
