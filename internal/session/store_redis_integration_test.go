//go:build integration

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"groundtruth/internal/session"
	"groundtruth/pkg/platform/sentinel"
	"groundtruth/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *session.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.store = session.NewRedisStore(s.redis.Client, 45*time.Minute)
}

func record(role string) session.Record {
	now := time.Now().UTC().Truncate(time.Second)
	return session.Record{
		Role:        role,
		Email:       role + "@groundtruth.test",
		BaseURL:     "http://localhost:3000",
		BearerToken: "tok-" + role,
		CreatedAt:   now,
		ExpiresAt:   now.Add(45 * time.Minute),
	}
}

func (s *RedisStoreSuite) TestRoundTrip() {
	ctx := context.Background()

	rec := record("admin")
	s.Require().NoError(s.store.Put(ctx, rec))

	got, err := s.store.Get(ctx, "admin")
	s.Require().NoError(err)
	s.Equal(rec.BearerToken, got.BearerToken)
	s.True(rec.CreatedAt.Equal(got.CreatedAt))

	_, err = s.store.Get(ctx, "missing")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.Invalidate(ctx, "admin"))
	_, err = s.store.Get(ctx, "admin")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestServerSideExpiry() {
	ctx := context.Background()

	// Token expiry sooner than the store TTL drives the entry's lifetime.
	rec := record("admin")
	rec.ExpiresAt = time.Now().Add(1 * time.Second)
	s.Require().NoError(s.store.Put(ctx, rec))

	_, err := s.store.Get(ctx, "admin")
	s.Require().NoError(err)

	time.Sleep(1500 * time.Millisecond)

	_, err = s.store.Get(ctx, "admin")
	s.Require().ErrorIs(err, sentinel.ErrNotFound, "entry should lapse server-side")
}

func (s *RedisStoreSuite) TestCorruptEntryIsAMiss() {
	ctx := context.Background()
	s.Require().NoError(s.redis.Client.Set(ctx, "groundtruth:session:admin", "{broken", time.Minute).Err())

	_, err := s.store.Get(ctx, "admin")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	exists, err := s.redis.Client.Exists(ctx, "groundtruth:session:admin").Result()
	s.Require().NoError(err)
	s.Zero(exists, "corrupt entry should be discarded")
}
