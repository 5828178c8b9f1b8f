package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteSink(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	sink, err := NewSQLiteSink(path)
	require.NoError(t, err)
	defer sink.Close()

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{Time: at, RunID: "run-1", Type: TypeSessionLogin, Role: "admin"},
		{Time: at.Add(time.Second), RunID: "run-1", Type: TypeFixtureCreated, Kind: "customer", EntityID: "c-1",
			Detail: map[string]string{"namespace": "TEST-abc123"}},
		{Time: at.Add(2 * time.Second), RunID: "run-2", Type: TypeVerifyPass, Table: "customers"},
	}
	for _, e := range events {
		require.NoError(t, sink.Append(ctx, e))
	}

	t.Run("ListRun returns one run in order", func(t *testing.T) {
		got, err := sink.ListRun(ctx, "run-1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, TypeSessionLogin, got[0].Type)
		assert.Equal(t, "admin", got[0].Role)
		assert.True(t, got[0].Time.Equal(at))
		assert.Equal(t, "TEST-abc123", got[1].Detail["namespace"])
	})

	t.Run("LastRunID tracks the newest write", func(t *testing.T) {
		last, err := sink.LastRunID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "run-2", last)
	})

	t.Run("empty journal reports a clear error", func(t *testing.T) {
		empty, err := NewSQLiteSink(filepath.Join(t.TempDir(), "empty.db"))
		require.NoError(t, err)
		defer empty.Close()

		_, err = empty.LastRunID(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty")
	})
}
