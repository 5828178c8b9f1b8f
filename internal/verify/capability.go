package verify

import (
	"fmt"

	"groundtruth/internal/schema"
)

// CapabilityError names an application surface the current deployment does
// not have. Suites catch it and skip with the message instead of failing on
// a query error later.
type CapabilityError struct {
	Table  string
	Column string
}

func (e *CapabilityError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("application schema has no column %s.%s", e.Table, e.Column)
	}
	return fmt.Sprintf("application schema has no table %q", e.Table)
}

// Capabilities answers "does this deployment have X" from the schema
// contract, probed once at startup rather than per query.
type Capabilities struct {
	contract *schema.Contract
}

func NewCapabilities(contract *schema.Contract) *Capabilities {
	return &Capabilities{contract: contract}
}

func (c *Capabilities) HasTable(table string) bool {
	return c.contract.HasTable(table)
}

func (c *Capabilities) HasColumn(table, column string) bool {
	tbl, ok := c.contract.Table(table)
	return ok && tbl.HasColumn(column)
}

// RequireTable returns a CapabilityError when the table is absent.
func (c *Capabilities) RequireTable(table string) error {
	if !c.HasTable(table) {
		return &CapabilityError{Table: table}
	}
	return nil
}

// RequireColumn returns a CapabilityError when the table or column is absent.
func (c *Capabilities) RequireColumn(table, column string) error {
	if err := c.RequireTable(table); err != nil {
		return err
	}
	if !c.HasColumn(table, column) {
		return &CapabilityError{Table: table, Column: column}
	}
	return nil
}
