// Package schema introspects the application database and hands the rest of
// the harness a Contract: which tables exist, their columns and types, and
// how foreign keys connect them. Verification validates identifiers against
// it instead of trusting callers, and the fixture graph is cross-checked
// against it so declared dependencies and real constraints cannot drift
// apart.
package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

type Column struct {
	Name     string
	DataType string
	Nullable bool
	Default  string
}

// IsMoney reports whether the column holds a monetary amount. The schema
// uses NUMERIC for money and nothing else.
func (c Column) IsMoney() bool { return c.DataType == "numeric" }

func (c Column) IsTimestamp() bool { return strings.HasPrefix(c.DataType, "timestamp") }

func (c Column) IsBool() bool { return c.DataType == "boolean" }

func (c Column) IsInteger() bool {
	switch c.DataType {
	case "smallint", "integer", "bigint":
		return true
	}
	return false
}

type ForeignKey struct {
	Constraint string
	Column     string
	RefTable   string
	RefColumn  string
}

type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
}

// Column looks a column up by name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// ForeignKeyOn returns the FK declared on the given column, if any.
func (t *Table) ForeignKeyOn(column string) (ForeignKey, bool) {
	for _, fk := range t.ForeignKeys {
		if fk.Column == column {
			return fk, true
		}
	}
	return ForeignKey{}, false
}

// Contract is a snapshot of the database's shape, taken once per run.
type Contract struct {
	Schema   string
	Tables   map[string]*Table
	LoadedAt time.Time
}

func (c *Contract) Table(name string) (*Table, bool) {
	t, ok := c.Tables[name]
	return t, ok
}

func (c *Contract) HasTable(name string) bool {
	_, ok := c.Tables[name]
	return ok
}

// TableNames returns the known tables sorted for stable output.
func (c *Contract) TableNames() []string {
	names := make([]string, 0, len(c.Tables))
	for name := range c.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const columnsQuery = `
SELECT c.table_name, c.column_name, c.data_type, c.is_nullable, COALESCE(c.column_default, '')
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE'
ORDER BY c.table_name, c.ordinal_position`

const primaryKeysQuery = `
SELECT tc.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
WHERE tc.table_schema = $1 AND tc.constraint_type = 'PRIMARY KEY'
ORDER BY tc.table_name, kcu.ordinal_position`

// foreignKeysQuery reads pg_catalog directly; information_schema flattens
// multi-column constraints in a way that loses column pairing. Fixture
// tables only use single-column keys, so conkey[1] is the whole story.
const foreignKeysQuery = `
SELECT con.conname,
       rel.relname,
       att.attname,
       frel.relname,
       fatt.attname
FROM pg_constraint con
JOIN pg_class rel ON rel.oid = con.conrelid
JOIN pg_class frel ON frel.oid = con.confrelid
JOIN pg_namespace nsp ON nsp.oid = rel.relnamespace
JOIN pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = con.conkey[1]
JOIN pg_attribute fatt ON fatt.attrelid = con.confrelid AND fatt.attnum = con.confkey[1]
WHERE con.contype = 'f' AND nsp.nspname = $1
ORDER BY rel.relname, con.conname`

// Load connects, introspects the public schema and disconnects.
func Load(ctx context.Context, dsn string) (*Contract, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect for introspection: %w", err)
	}
	defer conn.Close(ctx)
	return LoadSchema(ctx, conn, "public")
}

// LoadSchema introspects one schema over an existing connection.
func LoadSchema(ctx context.Context, conn *pgx.Conn, schemaName string) (*Contract, error) {
	contract := &Contract{
		Schema:   schemaName,
		Tables:   make(map[string]*Table),
		LoadedAt: time.Now(),
	}

	rows, err := conn.Query(ctx, columnsQuery, schemaName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	for rows.Next() {
		var tableName, nullable string
		var col Column
		if err := rows.Scan(&tableName, &col.Name, &col.DataType, &nullable, &col.Default); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		col.Nullable = nullable == "YES"
		tbl, ok := contract.Tables[tableName]
		if !ok {
			tbl = &Table{Name: tableName}
			contract.Tables[tableName] = tbl
		}
		tbl.Columns = append(tbl.Columns, col)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	rows, err = conn.Query(ctx, primaryKeysQuery, schemaName)
	if err != nil {
		return nil, fmt.Errorf("query primary keys: %w", err)
	}
	for rows.Next() {
		var tableName, column string
		if err := rows.Scan(&tableName, &column); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan primary key row: %w", err)
		}
		if tbl, ok := contract.Tables[tableName]; ok {
			tbl.PrimaryKey = append(tbl.PrimaryKey, column)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read primary keys: %w", err)
	}

	rows, err = conn.Query(ctx, foreignKeysQuery, schemaName)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	for rows.Next() {
		var tableName string
		var fk ForeignKey
		if err := rows.Scan(&fk.Constraint, &tableName, &fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan foreign key row: %w", err)
		}
		if tbl, ok := contract.Tables[tableName]; ok {
			tbl.ForeignKeys = append(tbl.ForeignKeys, fk)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read foreign keys: %w", err)
	}

	if len(contract.Tables) == 0 {
		return nil, fmt.Errorf("schema %q has no tables", schemaName)
	}
	return contract, nil
}
