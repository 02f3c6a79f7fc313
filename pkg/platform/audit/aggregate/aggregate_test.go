package aggregate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vigil/pkg/platform/audit"
	auditmem "vigil/pkg/platform/audit/store/memory"
	"vigil/pkg/testutil"
)

type capturingAlerter struct {
	mu     sync.Mutex
	alerts []audit.SecurityAlert
}

func (c *capturingAlerter) Raise(_ context.Context, alert audit.SecurityAlert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, alert)
}

func (c *capturingAlerter) raised() []audit.SecurityAlert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audit.SecurityAlert(nil), c.alerts...)
}

type AggregateSuite struct {
	suite.Suite
	store *auditmem.InMemoryStore
	now   time.Time
	ctx   context.Context
}

func TestAggregateSuite(t *testing.T) {
	suite.Run(t, new(AggregateSuite))
}

func (s *AggregateSuite) SetupTest() {
	s.store = auditmem.NewInMemoryStore()
	s.now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s.ctx = testutil.ContextAt(s.now)
}

func (s *AggregateSuite) append(actor, action string, outcome audit.Outcome, age time.Duration) {
	err := s.store.Append(s.ctx, audit.Record{
		Actor:     actor,
		Action:    action,
		Outcome:   outcome,
		Timestamp: s.now.Add(-age),
	})
	s.Require().NoError(err)
}

func (s *AggregateSuite) TestSnapshotCountsAndRate() {
	s.append("alice", audit.ActionLogin, audit.OutcomeSuccess, time.Minute)
	s.append("alice", audit.ActionLogin, audit.OutcomeFailure, time.Minute)
	s.append("bob", audit.ActionTokenRefreshed, audit.OutcomeSuccess, time.Minute)
	s.append("bob", audit.ActionTokenRefreshed, audit.OutcomeSuccess, time.Minute)

	agg := New(s.store, 10, 5)
	snap, err := agg.Snapshot(s.ctx, time.Hour)
	s.Require().NoError(err)

	s.Equal(4, snap.Total)
	s.Equal(3, snap.SuccessCount)
	s.Equal(1, snap.FailureCount)
	s.InDelta(0.75, snap.SuccessRate, 1e-9)
}

func (s *AggregateSuite) TestSnapshotEmptyLog() {
	agg := New(s.store, 10, 5)
	snap, err := agg.Snapshot(s.ctx, time.Hour)
	s.Require().NoError(err)

	s.Zero(snap.Total)
	s.Zero(snap.SuccessRate)
	s.Empty(snap.TopActions)
	s.Empty(snap.TopActors)
}

func (s *AggregateSuite) TestSnapshotWindowExcludesOldRecords() {
	s.append("alice", audit.ActionLogin, audit.OutcomeSuccess, 2*time.Hour)
	s.append("bob", audit.ActionLogin, audit.OutcomeSuccess, time.Minute)

	agg := New(s.store, 10, 5)
	snap, err := agg.Snapshot(s.ctx, time.Hour)
	s.Require().NoError(err)

	s.Equal(1, snap.Total)
	s.Equal([]Entry{{Name: "bob", Count: 1}}, snap.TopActors)
}

func (s *AggregateSuite) TestSnapshotZeroWindowScansEverything() {
	s.append("alice", audit.ActionLogin, audit.OutcomeSuccess, 30*24*time.Hour)
	s.append("bob", audit.ActionLogin, audit.OutcomeSuccess, time.Minute)

	agg := New(s.store, 10, 5)
	snap, err := agg.Snapshot(s.ctx, 0)
	s.Require().NoError(err)
	s.Equal(2, snap.Total)
}

func (s *AggregateSuite) TestTopNRankingAndTieBreak() {
	// carol appears first with 2, then alice and bob tie at 2 in that
	// discovery order, then dave with 1.
	s.append("carol", audit.ActionLogin, audit.OutcomeSuccess, 10*time.Minute)
	s.append("alice", audit.ActionLogin, audit.OutcomeSuccess, 9*time.Minute)
	s.append("bob", audit.ActionLogin, audit.OutcomeSuccess, 8*time.Minute)
	s.append("carol", audit.ActionLogin, audit.OutcomeSuccess, 7*time.Minute)
	s.append("alice", audit.ActionLogin, audit.OutcomeSuccess, 6*time.Minute)
	s.append("bob", audit.ActionLogin, audit.OutcomeSuccess, 5*time.Minute)
	s.append("dave", audit.ActionLogin, audit.OutcomeSuccess, 4*time.Minute)

	agg := New(s.store, 3, 5)
	snap, err := agg.Snapshot(s.ctx, time.Hour)
	s.Require().NoError(err)

	s.Equal([]Entry{
		{Name: "carol", Count: 2},
		{Name: "alice", Count: 2},
		{Name: "bob", Count: 2},
	}, snap.TopActors)

	// Repeat calls over the same records stay identical.
	again, err := agg.Snapshot(s.ctx, time.Hour)
	s.Require().NoError(err)
	s.Equal(snap.TopActors, again.TopActors)
}

func (s *AggregateSuite) TestSuspiciousThresholdBoundary() {
	for i := 0; i < 6; i++ {
		s.append("alice", audit.ActionLogin, audit.OutcomeFailure, time.Minute)
	}
	for i := 0; i < 5; i++ {
		s.append("bob", audit.ActionLogin, audit.OutcomeFailure, time.Minute)
	}
	s.append("carol", audit.ActionLogin, audit.OutcomeSuccess, time.Minute)

	// threshold 5: alice (6 failures) is flagged, bob (exactly 5) is not.
	agg := New(s.store, 10, 5)
	flagged, err := agg.Suspicious(s.ctx, 10*time.Minute)
	s.Require().NoError(err)
	s.Equal([]string{"alice"}, flagged)

	// threshold 10: nobody qualifies.
	strict := New(s.store, 10, 10)
	flagged, err = strict.Suspicious(s.ctx, 10*time.Minute)
	s.Require().NoError(err)
	s.Empty(flagged)
}

func (s *AggregateSuite) TestSuspiciousIgnoresFailuresOutsideWindow() {
	for i := 0; i < 6; i++ {
		s.append("alice", audit.ActionLogin, audit.OutcomeFailure, time.Hour)
	}

	agg := New(s.store, 10, 5)
	flagged, err := agg.Suspicious(s.ctx, 10*time.Minute)
	s.Require().NoError(err)
	s.Empty(flagged)
}

func (s *AggregateSuite) TestSuspiciousStatelessAcrossCalls() {
	for i := 0; i < 6; i++ {
		s.append("alice", audit.ActionLogin, audit.OutcomeFailure, time.Minute)
	}

	agg := New(s.store, 10, 5)
	for i := 0; i < 3; i++ {
		flagged, err := agg.Suspicious(s.ctx, 10*time.Minute)
		s.Require().NoError(err)
		s.Equal([]string{"alice"}, flagged)
	}
}

func (s *AggregateSuite) TestSuspiciousRaisesAlerts() {
	for i := 0; i < 6; i++ {
		s.append("alice", audit.ActionLogin, audit.OutcomeFailure, time.Minute)
	}
	for i := 0; i < 7; i++ {
		s.append("bob", audit.ActionLogin, audit.OutcomeFailure, time.Minute)
	}

	alerter := &capturingAlerter{}
	agg := New(s.store, 10, 5, WithAlerter(alerter))
	flagged, err := agg.Suspicious(s.ctx, 10*time.Minute)
	s.Require().NoError(err)
	s.Equal([]string{"alice", "bob"}, flagged)

	alerts := alerter.raised()
	s.Require().Len(alerts, 2)
	s.Equal("alice", alerts[0].Actor)
	s.Equal(audit.ReasonThresholdExceeded, alerts[0].Reason)
	s.Equal("bob", alerts[1].Actor)
}
