package fixture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundtruth/pkg/platform/sentinel"
)

func TestDefaultGraph(t *testing.T) {
	g := DefaultGraph()

	order := g.CreationOrder()
	require.Len(t, order, 9)

	position := make(map[Kind]int, len(order))
	for i, kind := range order {
		position[kind] = i
	}

	for _, kind := range order {
		for _, dep := range g.Parents(kind) {
			assert.Less(t, position[dep.Kind], position[kind],
				"%s must be created before %s", dep.Kind, kind)
		}
	}

	teardown := g.TeardownOrder()
	require.Len(t, teardown, len(order))
	for i := range order {
		assert.Equal(t, order[len(order)-1-i], teardown[i])
	}

	t.Run("stable across parses", func(t *testing.T) {
		assert.Equal(t, order, DefaultGraph().CreationOrder())
	})
}

func TestParseGraphDependencyForms(t *testing.T) {
	g, err := ParseGraph([]byte(`
kinds:
  - kind: account
    router: accounts
    table: accounts
  - kind: note
    router: notes
    table: notes
    requires:
      - account
  - kind: reminder
    router: reminders
    table: reminders
    requires:
      - kind: account
        column: owner_id
`))
	require.NoError(t, err)

	noteDeps := g.Parents("note")
	require.Len(t, noteDeps, 1)
	assert.Equal(t, "account_id", noteDeps[0].FKColumn(), "bare dependency defaults the column")

	reminderDeps := g.Parents("reminder")
	require.Len(t, reminderDeps, 1)
	assert.Equal(t, "owner_id", reminderDeps[0].FKColumn())
}

func TestParseGraphRejects(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no kinds",
			yaml:    `kinds: []`,
			wantErr: "no kinds",
		},
		{
			name: "duplicate kind",
			yaml: `
kinds:
  - {kind: a, router: as, table: as}
  - {kind: a, router: as, table: as}
`,
			wantErr: "declared twice",
		},
		{
			name: "unknown dependency",
			yaml: `
kinds:
  - kind: a
    router: as
    table: as
    requires: [ghost]
`,
			wantErr: "unknown kind",
		},
		{
			name: "cycle",
			yaml: `
kinds:
  - {kind: a, router: as, table: as, requires: [b]}
  - {kind: b, router: bs, table: bs, requires: [a]}
`,
			wantErr: "cycle",
		},
		{
			name: "missing table",
			yaml: `
kinds:
  - {kind: a, router: as}
`,
			wantErr: "missing router or table",
		},
		{
			name: "sweep via a kind without markers",
			yaml: `
kinds:
  - {kind: a, router: as, table: as}
  - kind: b
    router: bs
    table: bs
    requires: [a]
    sweep:
      via: a
`,
			wantErr: "no markers",
		},
		{
			name: "sweep via a kind that is not a dependency",
			yaml: `
kinds:
  - kind: a
    router: as
    table: as
    sweep:
      markers:
        - {column: name, pattern: "TEST-%"}
  - kind: b
    router: bs
    table: bs
    sweep:
      via: a
`,
			wantErr: "does not depend",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGraph([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGraphNodeLookup(t *testing.T) {
	g := DefaultGraph()

	n, err := g.Node(KindOrder)
	require.NoError(t, err)
	assert.Equal(t, "orders.create", n.CreateProcedure())
	assert.Equal(t, "orders.delete", n.DeleteProcedure())

	_, err = g.Node("warehouse")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.False(t, g.Has("warehouse"))
}
