// Package report condenses a run's journal into something a human reads
// after the fact: how sessions were spent, what fixtures existed, how
// verification went and what the sweeper removed. It aggregates events, it
// never re-derives state from the application.
package report

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/samber/lo"

	"groundtruth/internal/journal"
)

// Summary is one run, aggregated. Slices are sorted so rendering the same
// run twice produces identical bytes.
type Summary struct {
	RunID  string    `json:"run_id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Events int       `json:"events"`

	Sessions    SessionSummary `json:"sessions"`
	Fixtures    FixtureSummary `json:"fixtures"`
	Checks      CheckSummary   `json:"checks"`
	Sweep       SweepSummary   `json:"sweep"`
	RateLimited int            `json:"rate_limited"`
}

type SessionSummary struct {
	Logins      int            `json:"logins"`
	Reused      int            `json:"reused"`
	Invalidated int            `json:"invalidated"`
	Roles       []RoleActivity `json:"roles,omitempty"`
}

// RoleActivity is the cache economics per role: every reuse is a login the
// run did not pay for.
type RoleActivity struct {
	Role   string `json:"role"`
	Logins int    `json:"logins"`
	Reused int    `json:"reused"`
}

type FixtureSummary struct {
	Created int            `json:"created"`
	Deleted int            `json:"deleted"`
	Skipped int            `json:"skipped"`
	Kinds   []KindActivity `json:"kinds,omitempty"`
}

type KindActivity struct {
	Kind    string `json:"kind"`
	Created int    `json:"created"`
	Deleted int    `json:"deleted"`
}

type CheckSummary struct {
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Failures []CheckFailure `json:"failures,omitempty"`
}

// CheckFailure carries a failed comparison in the journal's own words.
type CheckFailure struct {
	Table    string `json:"table"`
	Column   string `json:"column"`
	Expected string `json:"expected"`
	Got      string `json:"got"`
}

type SweepSummary struct {
	Rows   int             `json:"rows"`
	Tables []TableActivity `json:"tables,omitempty"`
}

type TableActivity struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
}

// Build aggregates a run's events into a Summary. Events are taken as the
// journal recorded them; order only matters for the failure list.
func Build(runID string, events []journal.Event) Summary {
	s := Summary{RunID: runID, Events: len(events)}
	for i, e := range events {
		if i == 0 || e.Time.Before(s.Start) {
			s.Start = e.Time
		}
		if i == 0 || e.Time.After(s.End) {
			s.End = e.Time
		}
	}

	counts := lo.CountValuesBy(events, func(e journal.Event) string { return e.Type })
	s.Sessions.Logins = counts[journal.TypeSessionLogin]
	s.Sessions.Reused = counts[journal.TypeSessionReused]
	s.Sessions.Invalidated = counts[journal.TypeSessionInvalidated]
	s.Fixtures.Created = counts[journal.TypeFixtureCreated]
	s.Fixtures.Deleted = counts[journal.TypeFixtureDeleted]
	s.Fixtures.Skipped = counts[journal.TypeTeardownSkipped]
	s.Checks.Passed = counts[journal.TypeVerifyPass]
	s.Checks.Failed = counts[journal.TypeVerifyFail]
	s.RateLimited = counts[journal.TypeRateLimited]

	sessionEvents := lo.Filter(events, func(e journal.Event, _ int) bool {
		return e.Role != "" &&
			(e.Type == journal.TypeSessionLogin || e.Type == journal.TypeSessionReused)
	})
	for role, evts := range lo.GroupBy(sessionEvents, func(e journal.Event) string { return e.Role }) {
		s.Sessions.Roles = append(s.Sessions.Roles, RoleActivity{
			Role:   role,
			Logins: lo.CountBy(evts, func(e journal.Event) bool { return e.Type == journal.TypeSessionLogin }),
			Reused: lo.CountBy(evts, func(e journal.Event) bool { return e.Type == journal.TypeSessionReused }),
		})
	}
	sort.Slice(s.Sessions.Roles, func(i, j int) bool {
		return s.Sessions.Roles[i].Role < s.Sessions.Roles[j].Role
	})

	fixtureEvents := lo.Filter(events, func(e journal.Event, _ int) bool {
		return e.Kind != "" &&
			(e.Type == journal.TypeFixtureCreated || e.Type == journal.TypeFixtureDeleted)
	})
	for kind, evts := range lo.GroupBy(fixtureEvents, func(e journal.Event) string { return e.Kind }) {
		s.Fixtures.Kinds = append(s.Fixtures.Kinds, KindActivity{
			Kind:    kind,
			Created: lo.CountBy(evts, func(e journal.Event) bool { return e.Type == journal.TypeFixtureCreated }),
			Deleted: lo.CountBy(evts, func(e journal.Event) bool { return e.Type == journal.TypeFixtureDeleted }),
		})
	}
	sort.Slice(s.Fixtures.Kinds, func(i, j int) bool {
		return s.Fixtures.Kinds[i].Kind < s.Fixtures.Kinds[j].Kind
	})

	s.Checks.Failures = lo.FilterMap(events, func(e journal.Event, _ int) (CheckFailure, bool) {
		if e.Type != journal.TypeVerifyFail {
			return CheckFailure{}, false
		}
		return CheckFailure{
			Table:    e.Table,
			Column:   e.Detail["column"],
			Expected: e.Detail["expected"],
			Got:      e.Detail["got"],
		}, true
	})

	perTable := make(map[string]int)
	for _, e := range events {
		if e.Type != journal.TypeSweepDeleted {
			continue
		}
		rows, err := strconv.Atoi(e.Detail["rows"])
		if err != nil {
			continue
		}
		perTable[e.Table] += rows
		s.Sweep.Rows += rows
	}
	for table, rows := range perTable {
		s.Sweep.Tables = append(s.Sweep.Tables, TableActivity{Table: table, Rows: rows})
	}
	sort.Slice(s.Sweep.Tables, func(i, j int) bool {
		return s.Sweep.Tables[i].Table < s.Sweep.Tables[j].Table
	})

	return s
}

// FromSQLite loads a run from the journal history database and aggregates
// it. An empty runID means the most recent run.
func FromSQLite(ctx context.Context, path, runID string) (Summary, error) {
	sink, err := journal.NewSQLiteSink(path)
	if err != nil {
		return Summary{}, err
	}
	defer sink.Close()

	if runID == "" {
		runID, err = sink.LastRunID(ctx)
		if err != nil {
			return Summary{}, err
		}
	}
	events, err := sink.ListRun(ctx, runID)
	if err != nil {
		return Summary{}, err
	}
	if len(events) == 0 {
		return Summary{}, fmt.Errorf("run %s not found in journal", runID)
	}
	return Build(runID, events), nil
}
