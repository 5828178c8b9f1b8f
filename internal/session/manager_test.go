package session_test

//go:generate mockgen -source=manager.go -destination=mocks/manager_mocks.go -package=mocks LoginFlow
//go:generate mockgen -source=store.go -destination=mocks/store_mocks.go -package=mocks Store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"groundtruth/internal/identity"
	"groundtruth/internal/journal"
	"groundtruth/internal/platform/logger"
	"groundtruth/internal/session"
	"groundtruth/internal/session/mocks"
	"groundtruth/pkg/platform/sentinel"
)

const managerRoster = `
identities:
  - role: admin
    email: admin@groundtruth.test
    password: admin-secret
  - role: sales
    email: sales@groundtruth.test
    password: sales-secret
  - role: warehouse
    email: warehouse@groundtruth.test
    password: warehouse-secret
  - role: viewer
    email: viewer@groundtruth.test
    password: viewer-secret
`

type ManagerSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	login  *mocks.MockLoginFlow
	store  *session.MemoryStore
	roster *identity.Roster
	now    time.Time
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.login = mocks.NewMockLoginFlow(s.ctrl)
	s.store = session.NewMemoryStore()

	roster, err := identity.Parse([]byte(managerRoster))
	s.Require().NoError(err)
	s.roster = roster

	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *ManagerSuite) manager(opts ...session.ManagerOption) *session.Manager {
	base := []session.ManagerOption{session.WithClock(func() time.Time { return s.now })}
	return session.NewManager(s.store, s.login, s.roster, logger.Discard(), append(base, opts...)...)
}

func (s *ManagerSuite) TestLoginOnMissThenReuse() {
	ctx := context.Background()
	m := s.manager()

	s.login.EXPECT().
		Login(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ident identity.Identity) (session.Record, error) {
			s.Equal("admin@groundtruth.test", ident.Email)
			s.Equal("admin-secret", ident.Password)
			return session.Record{BearerToken: "tok-1"}, nil
		}).
		Times(1)

	first, err := m.Session(ctx, "admin")
	s.Require().NoError(err)
	s.Equal("tok-1", first.BearerToken)
	s.Equal("admin", first.Role)
	s.True(first.CreatedAt.Equal(s.now), "login stamps CreatedAt from the clock")
	s.True(first.ExpiresAt.Equal(s.now.Add(45*time.Minute)), "default TTL fills missing expiry")

	// Second call inside the freshness window must not log in again;
	// Times(1) above enforces it.
	second, err := m.Session(ctx, "admin")
	s.Require().NoError(err)
	s.Equal("tok-1", second.BearerToken)
}

func (s *ManagerSuite) TestStaleRecordTriggersReLogin() {
	ctx := context.Background()
	m := s.manager()

	stale := session.Record{
		Role:        "admin",
		BearerToken: "tok-old",
		CreatedAt:   s.now.Add(-46 * time.Minute),
		ExpiresAt:   s.now.Add(-1 * time.Minute),
	}
	s.Require().NoError(s.store.Put(ctx, stale))

	s.login.EXPECT().Login(gomock.Any(), gomock.Any()).
		Return(session.Record{BearerToken: "tok-new"}, nil).Times(1)

	got, err := m.Session(ctx, "admin")
	s.Require().NoError(err)
	s.Equal("tok-new", got.BearerToken)
}

func (s *ManagerSuite) TestTokenExpiryBeatsTTL() {
	ctx := context.Background()
	m := s.manager()

	// Fresh by age, but the token itself has lapsed.
	rec := session.Record{
		Role:        "admin",
		BearerToken: "tok-old",
		CreatedAt:   s.now.Add(-5 * time.Minute),
		ExpiresAt:   s.now.Add(-1 * time.Second),
	}
	s.Require().NoError(s.store.Put(ctx, rec))

	s.login.EXPECT().Login(gomock.Any(), gomock.Any()).
		Return(session.Record{BearerToken: "tok-new"}, nil).Times(1)

	got, err := m.Session(ctx, "admin")
	s.Require().NoError(err)
	s.Equal("tok-new", got.BearerToken)
}

func (s *ManagerSuite) TestLoginFailureSurfacesImmediately() {
	ctx := context.Background()
	m := s.manager()

	cause := errors.New("UNAUTHORIZED: Invalid email or password")
	s.login.EXPECT().Login(gomock.Any(), gomock.Any()).Return(session.Record{}, cause).Times(1)

	_, err := m.Session(ctx, "admin")
	s.Require().Error(err)
	s.ErrorIs(err, cause)
	s.Contains(err.Error(), `login as "admin"`)

	_, err = m.Cached(ctx, "admin")
	s.ErrorIs(err, sentinel.ErrNotFound, "failed login must not cache anything")
}

func (s *ManagerSuite) TestBreakerStopsRepeatedLoginAttempts() {
	ctx := context.Background()
	m := s.manager()

	s.login.EXPECT().Login(gomock.Any(), gomock.Any()).
		Return(session.Record{}, errors.New("boom")).Times(3)

	for i := 0; i < 3; i++ {
		_, err := m.Session(ctx, "admin")
		s.Require().Error(err)
	}

	// Breaker is open now: no fourth login attempt reaches the flow.
	_, err := m.Session(ctx, "admin")
	s.Require().ErrorIs(err, sentinel.ErrUnavailable)
	s.Contains(err.Error(), "breaker open")
}

func (s *ManagerSuite) TestCached() {
	ctx := context.Background()
	m := s.manager()

	s.Run("absent role is ErrNotFound", func() {
		_, err := m.Cached(ctx, "admin")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("stale record is a typed ExpiredError", func() {
		rec := session.Record{Role: "admin", CreatedAt: s.now.Add(-50 * time.Minute)}
		s.Require().NoError(s.store.Put(ctx, rec))

		_, err := m.Cached(ctx, "admin")
		var expired *session.ExpiredError
		s.Require().ErrorAs(err, &expired)
		s.Equal("admin", expired.Role)
		s.Equal(50*time.Minute, expired.Age)
		s.ErrorIs(err, sentinel.ErrExpired)
	})

	s.Run("fresh record comes back as-is", func() {
		rec := session.Record{Role: "sales", BearerToken: "tok", CreatedAt: s.now.Add(-1 * time.Minute)}
		s.Require().NoError(s.store.Put(ctx, rec))

		got, err := m.Cached(ctx, "sales")
		s.Require().NoError(err)
		s.Equal("tok", got.BearerToken)
	})
}

func (s *ManagerSuite) TestInvalidateForcesReLogin() {
	ctx := context.Background()
	m := s.manager()

	gomock.InOrder(
		s.login.EXPECT().Login(gomock.Any(), gomock.Any()).Return(session.Record{BearerToken: "tok-1"}, nil),
		s.login.EXPECT().Login(gomock.Any(), gomock.Any()).Return(session.Record{BearerToken: "tok-2"}, nil),
	)

	first, err := m.Session(ctx, "admin")
	s.Require().NoError(err)
	s.Equal("tok-1", first.BearerToken)

	s.Require().NoError(m.Invalidate(ctx, "admin"))

	second, err := m.Session(ctx, "admin")
	s.Require().NoError(err)
	s.Equal("tok-2", second.BearerToken)
}

func (s *ManagerSuite) TestConcurrentSessionSingleFlight() {
	ctx := context.Background()
	m := s.manager()

	s.login.EXPECT().Login(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, identity.Identity) (session.Record, error) {
			time.Sleep(30 * time.Millisecond)
			return session.Record{BearerToken: "tok-1"}, nil
		}).
		Times(1)

	var wg sync.WaitGroup
	tokens := make([]string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := m.Session(ctx, "admin")
			s.NoError(err)
			tokens[i] = rec.BearerToken
		}(i)
	}
	wg.Wait()

	s.Equal("tok-1", tokens[0])
	s.Equal("tok-1", tokens[1])
}

func (s *ManagerSuite) TestWarmRunsAtMostTwoLogins() {
	ctx := context.Background()
	m := s.manager()

	var inFlight, peak atomic.Int32
	s.login.EXPECT().Login(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ident identity.Identity) (session.Record, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			return session.Record{BearerToken: "tok-" + ident.Role}, nil
		}).
		Times(4)

	s.Require().NoError(m.Warm(ctx, "admin", "sales", "warehouse", "viewer"))
	s.LessOrEqual(peak.Load(), int32(2), "warmup must not exceed the worker ceiling")

	for _, role := range []string{"admin", "sales", "warehouse", "viewer"} {
		rec, err := m.Cached(ctx, role)
		s.Require().NoError(err)
		s.Equal("tok-"+role, rec.BearerToken)
	}
}

func (s *ManagerSuite) TestWarmStopsOnFirstFailure() {
	ctx := context.Background()
	m := s.manager()

	s.login.EXPECT().Login(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ident identity.Identity) (session.Record, error) {
			if ident.Role == "sales" {
				return session.Record{}, errors.New("boom")
			}
			return session.Record{BearerToken: "tok"}, nil
		}).
		MinTimes(1).MaxTimes(4)

	err := m.Warm(ctx, "admin", "sales", "warehouse", "viewer")
	s.Require().Error(err)
	s.Contains(err.Error(), `warm "sales"`)
}

func (s *ManagerSuite) TestStepTimeoutIsClamped() {
	ctx := context.Background()
	m := s.manager(session.WithStepTimeout(20 * time.Second))

	s.login.EXPECT().Login(gomock.Any(), gomock.Any()).
		DoAndReturn(func(loginCtx context.Context, _ identity.Identity) (session.Record, error) {
			deadline, ok := loginCtx.Deadline()
			s.True(ok, "login context must carry a deadline")
			s.LessOrEqual(time.Until(deadline), 15*time.Second+500*time.Millisecond)
			return session.Record{BearerToken: "tok"}, nil
		}).
		Times(1)

	_, err := m.Session(ctx, "admin")
	s.Require().NoError(err)
}

func (s *ManagerSuite) TestStoreReadErrorSurfaces() {
	ctx := context.Background()
	badStore := mocks.NewMockStore(s.ctrl)
	badStore.EXPECT().Get(gomock.Any(), "admin").Return(session.Record{}, fmt.Errorf("disk on fire"))

	m := session.NewManager(badStore, s.login, s.roster, logger.Discard(),
		session.WithClock(func() time.Time { return s.now }))

	_, err := m.Session(ctx, "admin")
	s.Require().Error(err)
	s.Contains(err.Error(), "read session cache")
}

func (s *ManagerSuite) TestJournalTrail() {
	ctx := context.Background()

	sink := journal.NewMemorySink()
	pub := journal.NewPublisher("run-j", logger.Discard())
	worker := journal.NewWorker(pub.Inbox(), logger.Discard(), sink)
	done := make(chan error, 1)
	go func() { done <- worker.Run(context.Background()) }()

	m := s.manager(session.WithJournal(pub))

	s.login.EXPECT().Login(gomock.Any(), gomock.Any()).
		Return(session.Record{BearerToken: "tok"}, nil).Times(2)

	_, err := m.Session(ctx, "admin")
	s.Require().NoError(err)
	_, err = m.Session(ctx, "admin")
	s.Require().NoError(err)
	s.Require().NoError(m.Invalidate(ctx, "admin"))
	_, err = m.Session(ctx, "admin")
	s.Require().NoError(err)

	pub.Close()
	s.Require().NoError(<-done)

	var types []string
	for _, e := range sink.Events() {
		types = append(types, e.Type)
	}
	s.Equal([]string{
		journal.TypeSessionLogin,
		journal.TypeSessionReused,
		journal.TypeSessionInvalidated,
		journal.TypeSessionLogin,
	}, types)
}
