package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// appTables are owned by the application store and hidden from dataset
// introspection.
var appTables = map[string]bool{
	"alerts":          true,
	"chats":           true,
	"questions":       true,
	"responses":       true,
	"datasets":        true,
	"sqlite_sequence": true,
}

type ColumnInfo struct {
	Name       string `json:"column_name"`
	DataType   string `json:"data_type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
}

// Introspector answers schema questions about the loaded dataset tables.
type Introspector struct {
	db *sql.DB
}

func NewIntrospector(db *sql.DB) *Introspector {
	return &Introspector{db: db}
}

func (in *Introspector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := in.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		if !appTables[name] {
			tables = append(tables, name)
		}
	}

	return tables, rows.Err()
}

// TableSchema returns per-column metadata, or nil when the table does not
// exist.
func (in *Introspector) TableSchema(ctx context.Context, tableName string) ([]ColumnInfo, error) {
	rows, err := in.db.QueryContext(ctx,
		fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(tableName)))
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull, pk int
		var dflt sql.NullString

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}

		columns = append(columns, ColumnInfo{
			Name:       name,
			DataType:   dataType,
			Nullable:   notNull == 0,
			PrimaryKey: pk > 0,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return columns, nil
}

// SampleRows returns up to limit rows as column → value mappings, or nil
// when the table does not exist.
func (in *Introspector) SampleRows(ctx context.Context, tableName string, limit int) ([]map[string]any, error) {
	schema, err := in.TableSchema(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if schema == nil {
		return nil, nil
	}

	exec := NewExecutor(in.db)
	result, err := exec.Execute(ctx,
		fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(tableName), limit))
	if err != nil {
		return nil, err
	}

	samples := make([]map[string]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		m := make(map[string]any, len(result.Columns))
		for i, col := range result.Columns {
			m[col] = row[i]
		}
		samples = append(samples, m)
	}

	return samples, nil
}

// SpacedColumnNames collects column names containing spaces across all
// dataset tables. The SQL sanitizer quotes these.
func (in *Introspector) SpacedColumnNames(ctx context.Context) ([]string, error) {
	tables, err := in.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	var spaced []string
	seen := map[string]bool{}
	for _, table := range tables {
		schema, err := in.TableSchema(ctx, table)
		if err != nil {
			return nil, err
		}
		for _, col := range schema {
			if strings.Contains(col.Name, " ") && !seen[col.Name] {
				seen[col.Name] = true
				spaced = append(spaced, col.Name)
			}
		}
	}

	return spaced, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
