package service

import (
	"sync"
	"time"

	"go.uber.org/mock/gomock"

	"vigil/internal/auth/models"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/audit"
	"vigil/pkg/requestcontext"
)

const firefoxUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"

func (s *ServiceSuite) issueFor(username string) *models.TokenPair {
	s.resolver.EXPECT().Resolve(gomock.Any(), username).Return(s.identity(username), nil)
	pair, err := s.service.Issue(s.ctx, username)
	s.Require().NoError(err)
	return pair
}

func (s *ServiceSuite) TestRefreshRotatesChain() {
	pair := s.issueFor("alice")

	refreshed, err := s.service.Refresh(s.at(time.Minute), pair.RefreshToken)
	s.Require().NoError(err)
	s.NotEqual(pair.RefreshToken, refreshed.RefreshToken)
	s.NotEqual(pair.AccessToken, refreshed.AccessToken)

	// The spent record is terminal and linked to its successor.
	old, err := s.store.Find(s.ctx, pair.RefreshToken)
	s.Require().NoError(err)
	s.Equal(models.TokenStateRotated, old.State)
	s.Equal(refreshed.RefreshToken, old.ReplacedBy)

	// The successor carries the original identity.
	identity, err := s.service.ValidateAccess(s.at(time.Minute), refreshed.AccessToken)
	s.Require().NoError(err)
	s.Equal("alice", identity.Username)

	events := s.recorder.byAction(audit.ActionTokenRefreshed)
	s.Require().Len(events, 1)
	s.Equal(audit.OutcomeSuccess, events[0].Outcome)
}

func (s *ServiceSuite) TestRefreshRequiresToken() {
	_, err := s.service.Refresh(s.ctx, "")
	s.True(dErrors.Is(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestRefreshUnknownToken() {
	_, err := s.service.Refresh(s.ctx, "rt_does-not-exist")
	s.True(dErrors.Is(err, dErrors.CodeUnauthorized))

	// Unknown tokens are not a theft signal.
	s.Empty(s.recorder.byAction(audit.ActionTokenReuse))
}

func (s *ServiceSuite) TestRefreshExpiredToken() {
	pair := s.issueFor("alice")

	_, err := s.service.Refresh(s.at(31*24*time.Hour), pair.RefreshToken)
	s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
	s.Empty(s.recorder.byAction(audit.ActionTokenReuse))

	// The record stayed in its original state; expiry is derived, never
	// written back.
	rec, err := s.store.Find(s.ctx, pair.RefreshToken)
	s.Require().NoError(err)
	s.Equal(models.TokenStateActive, rec.State)
}

func (s *ServiceSuite) TestRefreshRevokedTokenIsNotTheft() {
	pair := s.issueFor("alice")
	s.Require().NoError(s.service.Revoke(s.ctx, pair.RefreshToken))

	_, err := s.service.Refresh(s.at(time.Minute), pair.RefreshToken)
	s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
	s.Empty(s.recorder.byAction(audit.ActionTokenReuse))
}

func (s *ServiceSuite) TestRefreshFromDifferentDeviceRecordsMismatch() {
	pair := s.issueFor("alice")

	otherDevice := requestcontext.WithUserAgent(s.at(time.Minute), firefoxUserAgent)
	refreshed, err := s.service.Refresh(otherDevice, pair.RefreshToken)
	s.Require().NoError(err)
	s.NotNil(refreshed)

	mismatches := s.recorder.byAction(audit.ActionDeviceMismatch)
	s.Require().Len(mismatches, 1)
	s.Equal("alice", mismatches[0].Actor)
	s.Equal(audit.SeverityWarning, mismatches[0].Severity)
}

func (s *ServiceSuite) TestRefreshNoDoubleSpend() {
	pair := s.issueFor("alice")

	// Losers of the race read as replays and trigger the theft response,
	// so the alerter may fire.
	s.alerter.EXPECT().Raise(gomock.Any(), gomock.Any()).AnyTimes()

	const callers = 4
	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, results[n] = s.service.Refresh(s.at(time.Minute), pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
		}
	}
	s.Equal(1, succeeded, "a refresh token value must be spendable exactly once")
}
