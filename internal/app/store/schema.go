package store

// Schema is the stock application's DDL. Integration suites apply it to a
// fresh database; the harness's schema contract introspects the result, so
// this block is the one place table shapes are written down.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'member',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS customers (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name TEXT NOT NULL,
	email TEXT,
	phone TEXT,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	customer_id UUID NOT NULL REFERENCES customers(id),
	order_number TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL DEFAULT 'draft',
	total_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders(customer_id);

CREATE TABLE IF NOT EXISTS order_items (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	order_id UUID NOT NULL REFERENCES orders(id),
	description TEXT,
	quantity INTEGER NOT NULL DEFAULT 1,
	unit_price NUMERIC(12,2) NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);

CREATE TABLE IF NOT EXISTS invoices (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	order_id UUID NOT NULL REFERENCES orders(id),
	invoice_number TEXT NOT NULL UNIQUE,
	amount NUMERIC(12,2) NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'open',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_invoices_order_id ON invoices(order_id);

CREATE TABLE IF NOT EXISTS production_orders (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	order_id UUID NOT NULL REFERENCES orders(id),
	reference TEXT NOT NULL UNIQUE,
	quantity INTEGER NOT NULL DEFAULT 1,
	status TEXT NOT NULL DEFAULT 'planned',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_production_orders_order_id ON production_orders(order_id);

CREATE TABLE IF NOT EXISTS shipments (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	order_id UUID NOT NULL REFERENCES orders(id),
	tracking_number TEXT NOT NULL UNIQUE,
	carrier TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_shipments_order_id ON shipments(order_id);

CREATE TABLE IF NOT EXISTS payment_allocations (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	invoice_id UUID NOT NULL REFERENCES invoices(id),
	amount NUMERIC(12,2) NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_payment_allocations_invoice_id ON payment_allocations(invoice_id);

CREATE TABLE IF NOT EXISTS tasks (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	title TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'open',
	assigned_to UUID NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_tasks_assigned_to ON tasks(assigned_to);
`

// ColumnSpec mirrors one column of the DDL for the in-memory store, which
// has no database to enforce constraints for it.
type ColumnSpec struct {
	Name    string
	NotNull bool
	Unique  bool
	Ref     string
	Money   bool
	Int     bool
	Default any
}

// TableSpec mirrors one table of the DDL.
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
}

// Tables lists every table in dependency order, shapes matching Schema.
func Tables() []TableSpec {
	return []TableSpec{
		{Name: "users", Columns: []ColumnSpec{
			{Name: "name", NotNull: true},
			{Name: "email", NotNull: true, Unique: true},
			{Name: "password_hash", NotNull: true},
			{Name: "role", NotNull: true, Default: "member"},
		}},
		{Name: "customers", Columns: []ColumnSpec{
			{Name: "name", NotNull: true},
			{Name: "email"},
			{Name: "phone"},
			{Name: "status", NotNull: true, Default: "active"},
		}},
		{Name: "orders", Columns: []ColumnSpec{
			{Name: "customer_id", NotNull: true, Ref: "customers"},
			{Name: "order_number", NotNull: true, Unique: true},
			{Name: "status", NotNull: true, Default: "draft"},
			{Name: "total_amount", NotNull: true, Money: true, Default: "0.00"},
		}},
		{Name: "order_items", Columns: []ColumnSpec{
			{Name: "order_id", NotNull: true, Ref: "orders"},
			{Name: "description"},
			{Name: "quantity", NotNull: true, Int: true, Default: int64(1)},
			{Name: "unit_price", NotNull: true, Money: true, Default: "0.00"},
		}},
		{Name: "invoices", Columns: []ColumnSpec{
			{Name: "order_id", NotNull: true, Ref: "orders"},
			{Name: "invoice_number", NotNull: true, Unique: true},
			{Name: "amount", NotNull: true, Money: true, Default: "0.00"},
			{Name: "status", NotNull: true, Default: "open"},
		}},
		{Name: "production_orders", Columns: []ColumnSpec{
			{Name: "order_id", NotNull: true, Ref: "orders"},
			{Name: "reference", NotNull: true, Unique: true},
			{Name: "quantity", NotNull: true, Int: true, Default: int64(1)},
			{Name: "status", NotNull: true, Default: "planned"},
		}},
		{Name: "shipments", Columns: []ColumnSpec{
			{Name: "order_id", NotNull: true, Ref: "orders"},
			{Name: "tracking_number", NotNull: true, Unique: true},
			{Name: "carrier"},
			{Name: "status", NotNull: true, Default: "pending"},
		}},
		{Name: "payment_allocations", Columns: []ColumnSpec{
			{Name: "invoice_id", NotNull: true, Ref: "invoices"},
			{Name: "amount", NotNull: true, Money: true, Default: "0.00"},
		}},
		{Name: "tasks", Columns: []ColumnSpec{
			{Name: "title", NotNull: true},
			{Name: "status", NotNull: true, Default: "open"},
			{Name: "assigned_to", NotNull: true, Ref: "users"},
		}},
	}
}

// TableNames in dependency order, parents first.
func TableNames() []string {
	specs := Tables()
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}
