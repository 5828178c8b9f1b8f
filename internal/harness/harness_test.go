package harness_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"groundtruth/internal/harness"
	"groundtruth/internal/identity"
	"groundtruth/internal/journal"
	"groundtruth/internal/platform/config"
	"groundtruth/internal/platform/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testRoster(t *testing.T) *identity.Roster {
	t.Helper()
	roster, err := identity.Parse([]byte(`identities:
  - role: admin
    email: admin@groundtruth.dev
    password: admin-pass-1
`))
	require.NoError(t, err)
	return roster
}

func unitConfig() config.Config {
	return config.Config{
		AppBaseURL:   "http://127.0.0.1:1",
		CacheBackend: "memory",
		SessionTTL:   config.DefaultSessionTTL,
		Workers:      config.MaxWorkers,
		StepTimeout:  5 * time.Second,
	}
}

func TestNewWiresEverythingWithoutDatabase(t *testing.T) {
	h, err := harness.New(context.Background(), unitConfig(), logger.Discard(),
		harness.WithRoster(testRoster(t)),
		harness.WithoutDatabase(),
	)
	require.NoError(t, err)

	require.NotEmpty(t, h.RunID)
	require.NotNil(t, h.Journal)
	require.NotNil(t, h.Sessions)
	require.NotNil(t, h.Client)
	require.NotNil(t, h.Graph)
	require.NotNil(t, h.Builder)
	require.NotNil(t, h.Teardown)

	require.Nil(t, h.Contract)
	require.Nil(t, h.Bridge)
	require.Nil(t, h.Sweeper)
	require.Nil(t, h.DB())

	require.NoError(t, h.Close())
	require.NoError(t, h.Close(), "closing twice must be harmless")
}

func TestNewRejectsUnknownCacheBackend(t *testing.T) {
	cfg := unitConfig()
	cfg.CacheBackend = "etcd"

	_, err := harness.New(context.Background(), cfg, logger.Discard(),
		harness.WithRoster(testRoster(t)),
		harness.WithoutDatabase(),
	)
	require.ErrorContains(t, err, `unknown cache backend "etcd"`)
}

func TestRedisBackendNeedsAnAddress(t *testing.T) {
	cfg := unitConfig()
	cfg.CacheBackend = "redis"

	_, err := harness.New(context.Background(), cfg, logger.Discard(),
		harness.WithRoster(testRoster(t)),
		harness.WithoutDatabase(),
	)
	require.ErrorContains(t, err, "GROUNDTRUTH_REDIS_URL")
}

func TestNewFailsWhenRosterFileMissing(t *testing.T) {
	cfg := unitConfig()
	cfg.IdentitiesFile = filepath.Join(t.TempDir(), "absent.yaml")

	_, err := harness.New(context.Background(), cfg, logger.Discard(),
		harness.WithoutDatabase(),
	)
	require.ErrorContains(t, err, "read roster")
}

func TestFileBackendStoresSessionsUnderCacheDir(t *testing.T) {
	cfg := unitConfig()
	cfg.CacheBackend = "file"
	cfg.CacheDir = filepath.Join(t.TempDir(), "cache")

	h, err := harness.New(context.Background(), cfg, logger.Discard(),
		harness.WithRoster(testRoster(t)),
		harness.WithoutDatabase(),
	)
	require.NoError(t, err)
	require.NoError(t, h.Close())
}

func TestJournalFlowsToSinkOnClose(t *testing.T) {
	sink := journal.NewMemorySink()
	h, err := harness.New(context.Background(), unitConfig(), logger.Discard(),
		harness.WithRoster(testRoster(t)),
		harness.WithoutDatabase(),
		harness.WithSink(sink),
	)
	require.NoError(t, err)

	h.Journal.Emit(journal.Event{Type: journal.TypeFixtureCreated, Kind: "customer"})
	require.NoError(t, h.Close())

	events := sink.Events()
	require.Len(t, events, 1)
	require.Equal(t, journal.TypeFixtureCreated, events[0].Type)
	require.Equal(t, h.RunID, events[0].RunID, "the publisher stamps its run onto every event")
	require.False(t, events[0].Time.IsZero())
}
