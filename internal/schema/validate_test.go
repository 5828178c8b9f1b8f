package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundtruth/internal/fixture"
)

func text(name string) Column { return Column{Name: name, DataType: "text", Nullable: true} }

func uuidCol(name string) Column { return Column{Name: name, DataType: "uuid"} }

func money(name string) Column { return Column{Name: name, DataType: "numeric"} }
func stamp(name string) Column {
	return Column{Name: name, DataType: "timestamp with time zone", Default: "now()"}
}

func fk(column, refTable string) ForeignKey {
	return ForeignKey{
		Constraint: refTable + "_" + column + "_fkey",
		Column:     column,
		RefTable:   refTable,
		RefColumn:  "id",
	}
}

// appContract mirrors the stock application's DDL closely enough for the
// cross-check: the right tables, the marker and key columns, the real
// foreign keys.
func appContract() *Contract {
	tables := []*Table{
		{
			Name:       "users",
			Columns:    []Column{uuidCol("id"), text("name"), text("email"), text("password_hash"), text("role"), stamp("created_at"), stamp("updated_at")},
			PrimaryKey: []string{"id"},
		},
		{
			Name:       "customers",
			Columns:    []Column{uuidCol("id"), text("name"), text("email"), text("phone"), text("status"), stamp("created_at"), stamp("updated_at")},
			PrimaryKey: []string{"id"},
		},
		{
			Name:        "orders",
			Columns:     []Column{uuidCol("id"), uuidCol("customer_id"), text("order_number"), text("status"), money("total_amount"), stamp("created_at"), stamp("updated_at")},
			PrimaryKey:  []string{"id"},
			ForeignKeys: []ForeignKey{fk("customer_id", "customers")},
		},
		{
			Name:        "order_items",
			Columns:     []Column{uuidCol("id"), uuidCol("order_id"), text("description"), {Name: "quantity", DataType: "integer"}, money("unit_price"), stamp("created_at"), stamp("updated_at")},
			PrimaryKey:  []string{"id"},
			ForeignKeys: []ForeignKey{fk("order_id", "orders")},
		},
		{
			Name:        "invoices",
			Columns:     []Column{uuidCol("id"), uuidCol("order_id"), text("invoice_number"), money("amount"), text("status"), stamp("created_at"), stamp("updated_at")},
			PrimaryKey:  []string{"id"},
			ForeignKeys: []ForeignKey{fk("order_id", "orders")},
		},
		{
			Name:        "production_orders",
			Columns:     []Column{uuidCol("id"), uuidCol("order_id"), text("reference"), {Name: "quantity", DataType: "integer"}, text("status"), stamp("created_at"), stamp("updated_at")},
			PrimaryKey:  []string{"id"},
			ForeignKeys: []ForeignKey{fk("order_id", "orders")},
		},
		{
			Name:        "shipments",
			Columns:     []Column{uuidCol("id"), uuidCol("order_id"), text("tracking_number"), text("carrier"), text("status"), stamp("created_at"), stamp("updated_at")},
			PrimaryKey:  []string{"id"},
			ForeignKeys: []ForeignKey{fk("order_id", "orders")},
		},
		{
			Name:        "payment_allocations",
			Columns:     []Column{uuidCol("id"), uuidCol("invoice_id"), money("amount"), stamp("created_at"), stamp("updated_at")},
			PrimaryKey:  []string{"id"},
			ForeignKeys: []ForeignKey{fk("invoice_id", "invoices")},
		},
		{
			Name:        "tasks",
			Columns:     []Column{uuidCol("id"), text("title"), text("status"), uuidCol("assigned_to"), stamp("created_at"), stamp("updated_at")},
			PrimaryKey:  []string{"id"},
			ForeignKeys: []ForeignKey{{Constraint: "tasks_assigned_to_fkey", Column: "assigned_to", RefTable: "users", RefColumn: "id"}},
		},
	}

	c := &Contract{Schema: "public", Tables: make(map[string]*Table), LoadedAt: time.Now()}
	for _, t := range tables {
		c.Tables[t.Name] = t
	}
	return c
}

func kinds(mismatches []Mismatch) []string {
	out := make([]string, len(mismatches))
	for i, m := range mismatches {
		out[i] = m.Kind
	}
	return out
}

func TestValidateCleanSchema(t *testing.T) {
	mismatches := Validate(appContract(), fixture.DefaultGraph())
	assert.Empty(t, mismatches, "graph and schema agree: %v", mismatches)
}

func TestValidateMissingTable(t *testing.T) {
	c := appContract()
	delete(c.Tables, "tasks")

	mismatches := Validate(c, fixture.DefaultGraph())
	require.NotEmpty(t, mismatches)
	assert.Contains(t, kinds(mismatches), "missing_table")
	found := false
	for _, m := range mismatches {
		if m.Kind == "missing_table" && m.Table == "tasks" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateDeclaredEdgeWithoutForeignKey(t *testing.T) {
	c := appContract()
	c.Tables["orders"].ForeignKeys = nil

	mismatches := Validate(c, fixture.DefaultGraph())
	require.Len(t, mismatches, 1)
	m := mismatches[0]
	assert.Equal(t, "missing_fk", m.Kind)
	assert.Equal(t, "orders", m.Table)
	assert.Equal(t, "customer_id", m.Column)
	assert.Contains(t, m.Detail, "no foreign key")
}

func TestValidateForeignKeyPointingElsewhere(t *testing.T) {
	c := appContract()
	c.Tables["orders"].ForeignKeys = []ForeignKey{{
		Constraint: "orders_customer_id_fkey",
		Column:     "customer_id",
		RefTable:   "users",
		RefColumn:  "id",
	}}

	mismatches := Validate(c, fixture.DefaultGraph())
	// The retargeted constraint breaks the declared edge and is itself an
	// edge the graph never declared.
	require.NotEmpty(t, mismatches)
	assert.Contains(t, kinds(mismatches), "missing_fk")
	assert.Contains(t, kinds(mismatches), "undeclared_fk")
}

func TestValidateUndeclaredForeignKey(t *testing.T) {
	c := appContract()
	customers := c.Tables["customers"]
	customers.Columns = append(customers.Columns, uuidCol("account_manager_id"))
	customers.ForeignKeys = append(customers.ForeignKeys, ForeignKey{
		Constraint: "customers_account_manager_id_fkey",
		Column:     "account_manager_id",
		RefTable:   "users",
		RefColumn:  "id",
	})

	mismatches := Validate(c, fixture.DefaultGraph())
	require.Len(t, mismatches, 1)
	m := mismatches[0]
	assert.Equal(t, "undeclared_fk", m.Kind)
	assert.Equal(t, "customers", m.Table)
	assert.Equal(t, "account_manager_id", m.Column)
	assert.Contains(t, m.Detail, "not declared")
}

func TestValidateMissingMarkerColumn(t *testing.T) {
	c := appContract()
	tasks := c.Tables["tasks"]
	kept := tasks.Columns[:0]
	for _, col := range tasks.Columns {
		if col.Name != "title" {
			kept = append(kept, col)
		}
	}
	tasks.Columns = kept

	mismatches := Validate(c, fixture.DefaultGraph())
	require.NotEmpty(t, mismatches)
	found := false
	for _, m := range mismatches {
		if m.Kind == "missing_column" && m.Table == "tasks" && m.Column == "title" {
			found = true
		}
	}
	assert.True(t, found, "sweep marker columns are checked: %v", mismatches)
}

func TestColumnTypePredicates(t *testing.T) {
	assert.True(t, money("amount").IsMoney())
	assert.True(t, stamp("created_at").IsTimestamp())
	assert.True(t, Column{DataType: "boolean"}.IsBool())
	assert.True(t, Column{DataType: "integer"}.IsInteger())
	assert.False(t, text("name").IsMoney())
	assert.False(t, text("name").IsInteger())
}
