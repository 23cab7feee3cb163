package dataset

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "dataset.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE inventory (id INTEGER PRIMARY KEY, product TEXT NOT NULL, "unit price" REAL, stock INTEGER)`,
		`INSERT INTO inventory (product, "unit price", stock) VALUES ('widget', 9.5, 12), ('gadget', 2.0, 3)`,
		`CREATE TABLE alerts (id INTEGER PRIMARY KEY, table_name TEXT)`,
		`CREATE TABLE chats (id INTEGER PRIMARY KEY)`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	return db
}

func TestExecuteReturnsAlignedResult(t *testing.T) {
	exec := NewExecutor(newTestDB(t))

	result, err := exec.Execute(context.Background(),
		"SELECT product, stock FROM inventory ORDER BY id")
	require.NoError(t, err)

	assert.Equal(t, []string{"product", "stock"}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "widget", result.Rows[0][0])
	assert.EqualValues(t, 12, result.Rows[0][1])
}

func TestExecuteConvertsBlobsToStrings(t *testing.T) {
	exec := NewExecutor(newTestDB(t))

	result, err := exec.Execute(context.Background(),
		"SELECT CAST('hello' AS BLOB) AS b")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "hello", result.Rows[0][0])
}

func TestExecuteInvalidSQL(t *testing.T) {
	exec := NewExecutor(newTestDB(t))

	_, err := exec.Execute(context.Background(), "SELECT FROM nothing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
}

func TestQueryResultColumnMap(t *testing.T) {
	result := &QueryResult{
		Columns: []string{"a", "b"},
		Rows: [][]any{
			{1, "x"},
			{2, "y"},
		},
	}

	m := result.ColumnMap()
	assert.Equal(t, []any{1, 2}, m["a"])
	assert.Equal(t, []any{"x", "y"}, m["b"])
}

func TestListTablesHidesAppTables(t *testing.T) {
	in := NewIntrospector(newTestDB(t))

	tables, err := in.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"inventory"}, tables)
}

func TestTableSchema(t *testing.T) {
	in := NewIntrospector(newTestDB(t))

	schema, err := in.TableSchema(context.Background(), "inventory")
	require.NoError(t, err)
	require.Len(t, schema, 4)

	assert.Equal(t, "id", schema[0].Name)
	assert.True(t, schema[0].PrimaryKey)

	assert.Equal(t, "product", schema[1].Name)
	assert.Equal(t, "TEXT", schema[1].DataType)
	assert.False(t, schema[1].Nullable)

	assert.Equal(t, "unit price", schema[2].Name)
	assert.True(t, schema[2].Nullable)
}

func TestTableSchemaMissingTable(t *testing.T) {
	in := NewIntrospector(newTestDB(t))

	schema, err := in.TableSchema(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, schema)
}

func TestSampleRows(t *testing.T) {
	in := NewIntrospector(newTestDB(t))

	samples, err := in.SampleRows(context.Background(), "inventory", 1)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "widget", samples[0]["product"])
}

func TestSampleRowsMissingTable(t *testing.T) {
	in := NewIntrospector(newTestDB(t))

	samples, err := in.SampleRows(context.Background(), "missing", 3)
	require.NoError(t, err)
	assert.Nil(t, samples)
}

func TestSpacedColumnNames(t *testing.T) {
	in := NewIntrospector(newTestDB(t))

	spaced, err := in.SpacedColumnNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"unit price"}, spaced)
}
