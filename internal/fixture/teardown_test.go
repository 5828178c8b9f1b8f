package fixture_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"groundtruth/internal/fixture"
	"groundtruth/internal/fixture/mocks"
	"groundtruth/internal/journal"
	"groundtruth/internal/platform/logger"
	"groundtruth/internal/rpcwire"
)

type TeardownSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	caller  *mocks.MockCaller
	graph   *fixture.Graph
	tracker *fixture.Tracker
}

func TestTeardownSuite(t *testing.T) {
	suite.Run(t, new(TeardownSuite))
}

func (s *TeardownSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.caller = mocks.NewMockCaller(s.ctrl)
	s.graph = fixture.DefaultGraph()
	s.tracker = fixture.NewTracker()
}

func (s *TeardownSuite) teardown(opts ...fixture.TeardownOption) *fixture.Teardown {
	return fixture.NewTeardown(s.graph, s.caller, s.tracker, logger.Discard(), opts...)
}

func (s *TeardownSuite) expectDelete(procedure, id string) *gomock.Call {
	return s.caller.EXPECT().
		Mutate(gomock.Any(), "admin", procedure, gomock.Eq(map[string]any{"id": id}), gomock.Nil()).
		Return(nil)
}

func (s *TeardownSuite) TestRunDeletesChildrenFirst() {
	s.tracker.Add(fixture.Handle{Kind: fixture.KindCustomer, ID: "c-1"})
	s.tracker.Add(fixture.Handle{Kind: fixture.KindOrder, ID: "o-1"})
	s.tracker.Add(fixture.Handle{Kind: fixture.KindOrderItem, ID: "i-1"})
	s.tracker.Add(fixture.Handle{Kind: fixture.KindOrderItem, ID: "i-2"})

	gomock.InOrder(
		s.expectDelete("orderItems.delete", "i-2"),
		s.expectDelete("orderItems.delete", "i-1"),
		s.expectDelete("orders.delete", "o-1"),
		s.expectDelete("customers.delete", "c-1"),
	)

	s.Require().NoError(s.teardown().Run(context.Background()))
	s.Equal(0, s.tracker.Len())
}

func (s *TeardownSuite) TestAlreadyGoneIsSkippedNotFailed() {
	s.tracker.Add(fixture.Handle{Kind: fixture.KindCustomer, ID: "c-1"})
	s.tracker.Add(fixture.Handle{Kind: fixture.KindOrder, ID: "o-1"})

	gomock.InOrder(
		s.caller.EXPECT().
			Mutate(gomock.Any(), "admin", "orders.delete", gomock.Eq(map[string]any{"id": "o-1"}), gomock.Nil()).
			Return(&rpcwire.CallError{Status: 404, Code: rpcwire.CodeNotFound, Message: "Order not found"}),
		s.expectDelete("customers.delete", "c-1"),
	)

	pub := journal.NewPublisher("run-1", logger.Discard())
	sink := journal.NewMemorySink()
	worker := journal.NewWorker(pub.Inbox(), logger.Discard(), sink)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(context.Background())
	}()

	err := s.teardown(fixture.WithTeardownJournal(pub)).Run(context.Background())
	s.Require().NoError(err, "a record that is already gone must not fail the pass")
	s.Equal(0, s.tracker.Len())

	pub.Close()
	<-done

	var skips int
	for _, ev := range sink.Events() {
		if ev.Type == journal.TypeTeardownSkipped {
			skips++
			s.Equal("o-1", ev.EntityID)
		}
	}
	s.Equal(1, skips)
}

func (s *TeardownSuite) TestForeignKeyViolationHaltsAndSurfaces() {
	raw := `pq: update or delete on table "customers" violates foreign key constraint "orders_customer_id_fkey" on table "orders"`

	s.tracker.Add(fixture.Handle{Kind: fixture.KindCustomer, ID: "c-1"})

	s.caller.EXPECT().
		Mutate(gomock.Any(), "admin", "customers.delete", gomock.Eq(map[string]any{"id": "c-1"}), gomock.Nil()).
		Return(&rpcwire.CallError{
			Status:  409,
			Code:    rpcwire.CodeConflict,
			Message: raw,
			Data: rpcwire.ErrorData{
				SQLState:   "23503",
				Constraint: "orders_customer_id_fkey",
				Table:      "orders",
			},
		})

	err := s.teardown().Run(context.Background())
	s.Require().Error(err)

	var cerr *fixture.ConstraintError
	s.Require().ErrorAs(err, &cerr)
	s.True(cerr.ForeignKey())
	s.Equal(raw, cerr.Message, "the driver text must come through untouched")
	s.Equal("orders_customer_id_fkey", cerr.Constraint)
	s.Equal(1, s.tracker.Len(), "the blocked handle stays tracked")
}

func (s *TeardownSuite) TestHaltStopsLaterDeletes() {
	s.tracker.Add(fixture.Handle{Kind: fixture.KindCustomer, ID: "c-1"})
	s.tracker.Add(fixture.Handle{Kind: fixture.KindCustomer, ID: "c-2"})

	// Only the first delete runs; the pass stops before c-1.
	s.caller.EXPECT().
		Mutate(gomock.Any(), "admin", "customers.delete", gomock.Eq(map[string]any{"id": "c-2"}), gomock.Nil()).
		Return(&rpcwire.CallError{
			Status:  409,
			Code:    rpcwire.CodeConflict,
			Message: "pq: blocked",
			Data:    rpcwire.ErrorData{SQLState: "23503"},
		})

	err := s.teardown().Run(context.Background())
	s.Require().Error(err)
	s.Equal(2, s.tracker.Len())
}

func (s *TeardownSuite) TestDeleteAsConfiguredRole() {
	s.tracker.Add(fixture.Handle{Kind: fixture.KindCustomer, ID: "c-1"})

	s.caller.EXPECT().
		Mutate(gomock.Any(), "ops", "customers.delete", gomock.Eq(map[string]any{"id": "c-1"}), gomock.Nil()).
		Return(nil)

	s.Require().NoError(s.teardown(fixture.WithTeardownRole("ops")).Run(context.Background()))
}

func (s *TeardownSuite) TestDeleteUnknownKind() {
	err := s.teardown().Delete(context.Background(), fixture.Handle{Kind: "spaceship", ID: "x"})
	s.Require().Error(err)
	s.Contains(err.Error(), "not declared")
}
