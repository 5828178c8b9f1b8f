package schema

import (
	"fmt"

	"groundtruth/internal/fixture"
)

// Mismatch is one disagreement between the fixture graph and the database.
type Mismatch struct {
	// Kind is "missing_table", "missing_column", "missing_fk" or
	// "undeclared_fk".
	Kind       string
	Table      string
	Column     string
	Constraint string
	Detail     string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s", m.Kind, m.Detail)
}

// Validate cross-checks the fixture graph against the live schema in both
// directions. Every declared dependency must be backed by a real foreign
// key, and every foreign key between fixture tables must be declared in the
// graph. A clean run returns an empty slice.
func Validate(c *Contract, g *fixture.Graph) []Mismatch {
	var out []Mismatch

	fixtureTables := make(map[string]fixture.Kind)
	for _, kind := range g.CreationOrder() {
		node, err := g.Node(kind)
		if err != nil {
			continue
		}
		fixtureTables[node.Table] = kind
	}

	// Declared edges need real constraints behind them.
	for _, kind := range g.CreationOrder() {
		node, _ := g.Node(kind)

		tbl, ok := c.Table(node.Table)
		if !ok {
			out = append(out, Mismatch{
				Kind:   "missing_table",
				Table:  node.Table,
				Detail: fmt.Sprintf("graph kind %q maps to table %q which does not exist", kind, node.Table),
			})
			continue
		}

		for _, marker := range node.Sweep.Markers {
			if !tbl.HasColumn(marker.Column) {
				out = append(out, Mismatch{
					Kind:   "missing_column",
					Table:  node.Table,
					Column: marker.Column,
					Detail: fmt.Sprintf("sweep marker column %s.%s does not exist", node.Table, marker.Column),
				})
			}
		}

		for _, dep := range node.Requires {
			column := dep.FKColumn()
			parent, err := g.Node(dep.Kind)
			if err != nil {
				continue
			}

			if !tbl.HasColumn(column) {
				out = append(out, Mismatch{
					Kind:   "missing_column",
					Table:  node.Table,
					Column: column,
					Detail: fmt.Sprintf("declared dependency %s -> %s expects column %s.%s", kind, dep.Kind, node.Table, column),
				})
				continue
			}

			fk, ok := tbl.ForeignKeyOn(column)
			if !ok {
				out = append(out, Mismatch{
					Kind:   "missing_fk",
					Table:  node.Table,
					Column: column,
					Detail: fmt.Sprintf("declared dependency %s -> %s has no foreign key on %s.%s", kind, dep.Kind, node.Table, column),
				})
				continue
			}
			if fk.RefTable != parent.Table {
				out = append(out, Mismatch{
					Kind:       "missing_fk",
					Table:      node.Table,
					Column:     column,
					Constraint: fk.Constraint,
					Detail: fmt.Sprintf("foreign key %s points at %q, graph declares %s -> %s (%q)",
						fk.Constraint, fk.RefTable, kind, dep.Kind, parent.Table),
				})
			}
		}
	}

	// Real constraints between fixture tables need declared edges.
	for _, kind := range g.CreationOrder() {
		node, _ := g.Node(kind)
		tbl, ok := c.Table(node.Table)
		if !ok {
			continue
		}
		for _, fk := range tbl.ForeignKeys {
			parentKind, isFixture := fixtureTables[fk.RefTable]
			if !isFixture {
				continue
			}
			declared := false
			for _, dep := range node.Requires {
				if dep.Kind == parentKind && dep.FKColumn() == fk.Column {
					declared = true
					break
				}
			}
			if !declared {
				out = append(out, Mismatch{
					Kind:       "undeclared_fk",
					Table:      node.Table,
					Column:     fk.Column,
					Constraint: fk.Constraint,
					Detail: fmt.Sprintf("foreign key %s (%s.%s -> %s) is not declared as a dependency of %q",
						fk.Constraint, node.Table, fk.Column, fk.RefTable, kind),
				})
			}
		}
	}

	return out
}
