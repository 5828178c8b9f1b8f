package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"groundtruth/pkg/platform/sentinel"
)

var sessionGetDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "groundtruth_session_cache_get_duration_ms",
	Help:    "Latency of Redis session cache reads in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const sessionKeyPrefix = "groundtruth:session:"

// RedisStore shares cached sessions across machines, the backend for CI
// where parallel jobs act as the same roles. Entries carry a server-side TTL
// so a dead run cannot leave immortal sessions behind.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps client. ttl is the server-side expiry for entries,
// normally the same freshness window the Manager applies.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(role string) string {
	return sessionKeyPrefix + role
}

func (s *RedisStore) Get(ctx context.Context, role string) (Record, error) {
	start := time.Now()
	defer func() {
		sessionGetDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	raw, err := s.client.Get(ctx, s.key(role)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, fmt.Errorf("session for role %q: %w", role, sentinel.ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("redis get session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		// Same policy as the file backend: a corrupt entry is a miss.
		_ = s.client.Del(ctx, s.key(role)).Err()
		return Record{}, fmt.Errorf("corrupt session entry for %q discarded: %w", role, sentinel.ErrNotFound)
	}
	return rec, nil
}

func (s *RedisStore) Put(ctx context.Context, record Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	ttl := s.ttl
	if !record.ExpiresAt.IsZero() {
		if until := time.Until(record.ExpiresAt); until > 0 && until < ttl {
			ttl = until
		}
	}
	if err := s.client.Set(ctx, s.key(record.Role), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (s *RedisStore) Invalidate(ctx context.Context, role string) error {
	if err := s.client.Del(ctx, s.key(role)).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

// Close is a no-op; the shared client is owned by the caller.
func (s *RedisStore) Close() error {
	return nil
}
