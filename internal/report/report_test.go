package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"groundtruth/internal/journal"
)

func sampleEvents(base time.Time) []journal.Event {
	at := func(d time.Duration) time.Time { return base.Add(d) }
	return []journal.Event{
		{Time: at(0), Type: journal.TypeSessionLogin, Role: "admin"},
		{Time: at(1 * time.Second), Type: journal.TypeSessionReused, Role: "admin"},
		{Time: at(1 * time.Second), Type: journal.TypeSessionReused, Role: "admin"},
		{Time: at(2 * time.Second), Type: journal.TypeSessionLogin, Role: "member"},
		{Time: at(3 * time.Second), Type: journal.TypeFixtureCreated, Role: "admin", Kind: "customer", EntityID: "c-1"},
		{Time: at(4 * time.Second), Type: journal.TypeFixtureCreated, Role: "admin", Kind: "order", EntityID: "o-1"},
		{Time: at(5 * time.Second), Type: journal.TypeVerifyPass, Table: "orders",
			Detail: map[string]string{"column": "status", "expected": "open", "got": "open"}},
		{Time: at(6 * time.Second), Type: journal.TypeVerifyFail, Table: "orders",
			Detail: map[string]string{"column": "total_amount", "expected": "800.00", "got": "799.99"}},
		{Time: at(7 * time.Second), Type: journal.TypeFixtureDeleted, Role: "admin", Kind: "order", EntityID: "o-1"},
		{Time: at(8 * time.Second), Type: journal.TypeFixtureDeleted, Role: "admin", Kind: "customer", EntityID: "c-1"},
		{Time: at(9 * time.Second), Type: journal.TypeTeardownSkipped, Role: "admin", Kind: "task", EntityID: "t-1"},
		{Time: at(10 * time.Second), Type: journal.TypeSessionInvalidated, Role: "member"},
		{Time: at(11 * time.Second), Type: journal.TypeRateLimited, Role: "member",
			Detail: map[string]string{"procedure": "customers.list", "retry_after": "7s"}},
		{Time: at(42 * time.Second), Type: journal.TypeSweepDeleted, Table: "orders",
			Detail: map[string]string{"rows": "2"}},
		{Time: at(42 * time.Second), Type: journal.TypeSweepDeleted, Table: "customers",
			Detail: map[string]string{"rows": "1"}},
	}
}

func sampleSummary() Summary {
	base := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	return Build("run-0001", sampleEvents(base))
}

func TestBuildAggregates(t *testing.T) {
	s := sampleSummary()

	require.Equal(t, "run-0001", s.RunID)
	require.Equal(t, 15, s.Events)
	require.Equal(t, 42*time.Second, s.End.Sub(s.Start))

	require.Equal(t, 2, s.Sessions.Logins)
	require.Equal(t, 2, s.Sessions.Reused)
	require.Equal(t, 1, s.Sessions.Invalidated)
	require.Equal(t, []RoleActivity{
		{Role: "admin", Logins: 1, Reused: 2},
		{Role: "member", Logins: 1, Reused: 0},
	}, s.Sessions.Roles)

	require.Equal(t, 2, s.Fixtures.Created)
	require.Equal(t, 2, s.Fixtures.Deleted)
	require.Equal(t, 1, s.Fixtures.Skipped)
	require.Equal(t, []KindActivity{
		{Kind: "customer", Created: 1, Deleted: 1},
		{Kind: "order", Created: 1, Deleted: 1},
	}, s.Fixtures.Kinds, "the skipped task never made the table, it was only skipped")

	require.Equal(t, 1, s.Checks.Passed)
	require.Equal(t, 1, s.Checks.Failed)
	require.Equal(t, []CheckFailure{
		{Table: "orders", Column: "total_amount", Expected: "800.00", Got: "799.99"},
	}, s.Checks.Failures)

	require.Equal(t, 3, s.Sweep.Rows)
	require.Equal(t, []TableActivity{
		{Table: "customers", Rows: 1},
		{Table: "orders", Rows: 2},
	}, s.Sweep.Tables)

	require.Equal(t, 1, s.RateLimited)
}

func TestBuildEmptyRun(t *testing.T) {
	s := Build("run-empty", nil)

	require.Equal(t, 0, s.Events)
	require.True(t, s.Start.IsZero())
	require.Empty(t, s.Sessions.Roles)
	require.Empty(t, s.Checks.Failures)

	require.Contains(t, string(Markdown(s)), "No events recorded.")
}

func TestBuildSumsRepeatedSweepTables(t *testing.T) {
	now := time.Now()
	s := Build("run-2", []journal.Event{
		{Time: now, Type: journal.TypeSweepDeleted, Table: "tasks", Detail: map[string]string{"rows": "3"}},
		{Time: now, Type: journal.TypeSweepDeleted, Table: "tasks", Detail: map[string]string{"rows": "4"}},
		{Time: now, Type: journal.TypeSweepDeleted, Table: "users", Detail: map[string]string{"rows": "bogus"}},
	})

	require.Equal(t, 7, s.Sweep.Rows)
	require.Equal(t, []TableActivity{{Table: "tasks", Rows: 7}}, s.Sweep.Tables,
		"unparseable row counts are dropped, not guessed")
}

func TestMarkdownGolden(t *testing.T) {
	g := goldie.New(t)
	g.Assert(t, "run_markdown", Markdown(sampleSummary()))
}

func TestJSONGolden(t *testing.T) {
	out, err := JSON(sampleSummary())
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "run_json", out)
}

func TestFromSQLiteReadsRunsBack(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	sink, err := journal.NewSQLiteSink(path)
	require.NoError(t, err)
	now := time.Now().UTC().Truncate(time.Second)
	for _, e := range []journal.Event{
		{RunID: "run-a", Time: now, Type: journal.TypeSessionLogin, Role: "admin"},
		{RunID: "run-a", Time: now.Add(time.Second), Type: journal.TypeSessionReused, Role: "admin"},
		{RunID: "run-b", Time: now.Add(2 * time.Second), Type: journal.TypeSessionLogin, Role: "viewer"},
	} {
		require.NoError(t, sink.Append(ctx, e))
	}
	require.NoError(t, sink.Close())

	last, err := FromSQLite(ctx, path, "")
	require.NoError(t, err)
	require.Equal(t, "run-b", last.RunID)
	require.Equal(t, 1, last.Sessions.Logins)

	first, err := FromSQLite(ctx, path, "run-a")
	require.NoError(t, err)
	require.Equal(t, 2, first.Events)
	require.Equal(t, 1, first.Sessions.Reused)

	_, err = FromSQLite(ctx, path, "run-c")
	require.ErrorContains(t, err, "run-c not found")
}
