// Package fixture creates and destroys synthetic records in the application
// under test. The entity graph is declared data, not code: each kind names
// its RPC router, its table and the kinds it depends on, and every ordering
// decision in the package (creation, teardown, sweeps) derives from a
// topological sort of that declaration.
package fixture

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"groundtruth/pkg/platform/sentinel"
)

// Kind identifies an entity type the application knows how to create.
type Kind string

const (
	KindUser              Kind = "user"
	KindCustomer          Kind = "customer"
	KindOrder             Kind = "order"
	KindOrderItem         Kind = "order_item"
	KindInvoice           Kind = "invoice"
	KindProductionOrder   Kind = "production_order"
	KindShipment          Kind = "shipment"
	KindPaymentAllocation Kind = "payment_allocation"
	KindTask              Kind = "task"
)

//go:embed graph.yaml
var defaultGraphYAML []byte

// Dependency names a parent kind and the column that references it. In YAML
// it may be written as a bare kind name, in which case the column defaults
// to <kind>_id.
type Dependency struct {
	Kind   Kind
	Column string
}

func (d *Dependency) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var kind string
		if err := value.Decode(&kind); err != nil {
			return err
		}
		d.Kind = Kind(kind)
		return nil
	case yaml.MappingNode:
		var raw struct {
			Kind   string `yaml:"kind"`
			Column string `yaml:"column"`
		}
		if err := value.Decode(&raw); err != nil {
			return err
		}
		d.Kind = Kind(raw.Kind)
		d.Column = raw.Column
		return nil
	default:
		return fmt.Errorf("dependency must be a kind name or a mapping (line %d)", value.Line)
	}
}

// FKColumn is the foreign key column holding the parent's id.
func (d Dependency) FKColumn() string {
	if d.Column != "" {
		return d.Column
	}
	return string(d.Kind) + "_id"
}

// Marker is a column/pattern pair that identifies synthetic rows in a table.
type Marker struct {
	Column  string `yaml:"column"`
	Pattern string `yaml:"pattern"`
}

// SweepRule tells the sweeper how to find leftover rows: either by marker
// columns on the table itself, or via a parent kind whose swept ids the
// rows reference.
type SweepRule struct {
	Markers []Marker `yaml:"markers"`
	Via     Kind     `yaml:"via"`
}

// Node is one declared entity kind.
type Node struct {
	Kind     Kind         `yaml:"kind"`
	Router   string       `yaml:"router"`
	Table    string       `yaml:"table"`
	Requires []Dependency `yaml:"requires"`
	Sweep    SweepRule    `yaml:"sweep"`
}

// CreateProcedure is the RPC procedure that creates this kind.
func (n *Node) CreateProcedure() string { return n.Router + ".create" }

// DeleteProcedure is the RPC procedure that deletes this kind by id.
func (n *Node) DeleteProcedure() string { return n.Router + ".delete" }

// Graph is a validated entity graph with a fixed topological order.
type Graph struct {
	nodes map[Kind]*Node
	order []Kind
}

type graphFile struct {
	Kinds []*Node `yaml:"kinds"`
}

// DefaultGraph returns the graph baked into the binary. It panics only if
// the embedded declaration is broken, which a unit test catches.
func DefaultGraph() *Graph {
	g, err := ParseGraph(defaultGraphYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded entity graph invalid: %v", err))
	}
	return g
}

// LoadGraph reads a graph declaration from disk, for installations whose
// schema diverges from the default.
func LoadGraph(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entity graph: %w", err)
	}
	g, err := ParseGraph(data)
	if err != nil {
		return nil, fmt.Errorf("parse entity graph %s: %w", path, err)
	}
	return g, nil
}

// ParseGraph parses and validates a YAML graph declaration.
func ParseGraph(data []byte) (*Graph, error) {
	var file graphFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal entity graph: %w", err)
	}
	if len(file.Kinds) == 0 {
		return nil, fmt.Errorf("entity graph declares no kinds")
	}

	nodes := make(map[Kind]*Node, len(file.Kinds))
	for _, n := range file.Kinds {
		if n.Kind == "" {
			return nil, fmt.Errorf("entity graph entry missing kind")
		}
		if n.Router == "" || n.Table == "" {
			return nil, fmt.Errorf("kind %q missing router or table", n.Kind)
		}
		if _, dup := nodes[n.Kind]; dup {
			return nil, fmt.Errorf("kind %q declared twice", n.Kind)
		}
		nodes[n.Kind] = n
	}

	for _, n := range nodes {
		for _, dep := range n.Requires {
			if _, ok := nodes[dep.Kind]; !ok {
				return nil, fmt.Errorf("kind %q requires unknown kind %q", n.Kind, dep.Kind)
			}
		}
		if n.Sweep.Via != "" {
			if _, ok := nodes[n.Sweep.Via]; !ok {
				return nil, fmt.Errorf("kind %q sweeps via unknown kind %q", n.Kind, n.Sweep.Via)
			}
			via := nodes[n.Sweep.Via]
			if len(via.Sweep.Markers) == 0 {
				return nil, fmt.Errorf("kind %q sweeps via %q which has no markers", n.Kind, n.Sweep.Via)
			}
			if !dependsOn(n, n.Sweep.Via) {
				return nil, fmt.Errorf("kind %q sweeps via %q but does not depend on it", n.Kind, n.Sweep.Via)
			}
		}
	}

	order, err := topoSort(nodes)
	if err != nil {
		return nil, err
	}
	return &Graph{nodes: nodes, order: order}, nil
}

func dependsOn(n *Node, kind Kind) bool {
	for _, dep := range n.Requires {
		if dep.Kind == kind {
			return true
		}
	}
	return false
}

// topoSort orders kinds so every parent precedes its children. Ties break
// alphabetically, so the order is stable across runs.
func topoSort(nodes map[Kind]*Node) ([]Kind, error) {
	indegree := make(map[Kind]int, len(nodes))
	children := make(map[Kind][]Kind, len(nodes))
	for kind, n := range nodes {
		if _, ok := indegree[kind]; !ok {
			indegree[kind] = 0
		}
		for _, dep := range n.Requires {
			indegree[kind]++
			children[dep.Kind] = append(children[dep.Kind], kind)
		}
	}

	var ready []Kind
	for kind, deg := range indegree {
		if deg == 0 {
			ready = append(ready, kind)
		}
	}
	sortKinds(ready)

	order := make([]Kind, 0, len(nodes))
	for len(ready) > 0 {
		kind := ready[0]
		ready = ready[1:]
		order = append(order, kind)
		for _, child := range children[kind] {
			indegree[child]--
			if indegree[child] == 0 {
				ready = append(ready, child)
			}
		}
		sortKinds(ready)
	}

	if len(order) != len(nodes) {
		var stuck []Kind
		for kind, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, kind)
			}
		}
		sortKinds(stuck)
		return nil, fmt.Errorf("entity graph has a dependency cycle involving %v", stuck)
	}
	return order, nil
}

func sortKinds(kinds []Kind) {
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
}

// Node looks up a declared kind.
func (g *Graph) Node(kind Kind) (*Node, error) {
	n, ok := g.nodes[kind]
	if !ok {
		return nil, fmt.Errorf("kind %q not declared in entity graph: %w", kind, sentinel.ErrNotFound)
	}
	return n, nil
}

// Has reports whether the kind is declared.
func (g *Graph) Has(kind Kind) bool {
	_, ok := g.nodes[kind]
	return ok
}

// CreationOrder returns all kinds, parents before children.
func (g *Graph) CreationOrder() []Kind {
	out := make([]Kind, len(g.order))
	copy(out, g.order)
	return out
}

// TeardownOrder returns all kinds, children before parents.
func (g *Graph) TeardownOrder() []Kind {
	out := make([]Kind, len(g.order))
	for i, kind := range g.order {
		out[len(g.order)-1-i] = kind
	}
	return out
}

// Parents returns the declared dependencies of a kind.
func (g *Graph) Parents(kind Kind) []Dependency {
	n, ok := g.nodes[kind]
	if !ok {
		return nil
	}
	out := make([]Dependency, len(n.Requires))
	copy(out, n.Requires)
	return out
}
