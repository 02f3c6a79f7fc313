package service

import (
	"errors"
	"time"

	"go.uber.org/mock/gomock"

	"vigil/internal/auth/models"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/audit"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/requestcontext"
)

func (s *ServiceSuite) TestRevokeSingleSession() {
	pair := s.issueFor("alice")

	s.Require().NoError(s.service.Revoke(s.ctx, pair.RefreshToken))

	rec, err := s.store.Find(s.ctx, pair.RefreshToken)
	s.Require().NoError(err)
	s.Equal(models.TokenStateRevoked, rec.State)

	events := s.recorder.byAction(audit.ActionSessionRevoked)
	s.Require().Len(events, 1)
	s.Equal("alice", events[0].Actor)
}

func (s *ServiceSuite) TestRevokeIsIdempotent() {
	pair := s.issueFor("alice")

	s.Require().NoError(s.service.Revoke(s.ctx, pair.RefreshToken))
	s.Require().NoError(s.service.Revoke(s.ctx, pair.RefreshToken))
	s.Require().NoError(s.service.Revoke(s.ctx, "rt_never-issued"))
}

func (s *ServiceSuite) TestRevokeAllCountsSessions() {
	pair := s.issueFor("alice")
	s.issueFor("alice")
	s.issueFor("alice")

	rec, err := s.store.Find(s.ctx, pair.RefreshToken)
	s.Require().NoError(err)

	result, err := s.service.RevokeAll(s.ctx, rec.UserID)
	s.Require().NoError(err)
	s.Equal(3, result.RevokedCount)

	// Second pass finds nothing left to revoke.
	result, err = s.service.RevokeAll(s.ctx, rec.UserID)
	s.Require().NoError(err)
	s.Zero(result.RevokedCount)

	s.Require().Len(s.recorder.byAction(audit.ActionLogoutAll), 2)
}

func (s *ServiceSuite) TestRevokeDeviceLeavesOtherDevicesActive() {
	chrome := s.issueFor("alice")

	otherDevice := requestcontext.WithUserAgent(s.ctx, firefoxUserAgent)
	s.resolver.EXPECT().Resolve(gomock.Any(), "alice").Return(s.identity("alice"), nil)
	firefox, err := s.service.Issue(otherDevice, "alice")
	s.Require().NoError(err)

	chromeRec, err := s.store.Find(s.ctx, chrome.RefreshToken)
	s.Require().NoError(err)

	result, err := s.service.RevokeDevice(s.ctx, chromeRec.UserID, chromeRec.DeviceFingerprint)
	s.Require().NoError(err)
	s.Equal(1, result.RevokedCount)

	_, err = s.service.Refresh(s.at(time.Minute), chrome.RefreshToken)
	s.True(dErrors.Is(err, dErrors.CodeUnauthorized))

	_, err = s.service.Refresh(requestcontext.WithUserAgent(s.at(time.Minute), firefoxUserAgent), firefox.RefreshToken)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestListSessionsNewestFirstWithCurrentFlag() {
	alice := s.identity("alice")
	s.resolver.EXPECT().Resolve(gomock.Any(), "alice").Return(alice, nil).Times(2)

	older, err := s.service.Issue(s.ctx, "alice")
	s.Require().NoError(err)
	newer, err := s.service.Issue(requestcontext.WithUserAgent(s.at(time.Hour), firefoxUserAgent), "alice")
	s.Require().NoError(err)

	result, err := s.service.ListSessions(s.at(2*time.Hour), alice.ID, older.RefreshToken)
	s.Require().NoError(err)
	s.Require().Len(result.Sessions, 2)

	s.Equal(s.now.Add(time.Hour), result.Sessions[0].CreatedAt)
	s.False(result.Sessions[0].IsCurrent)
	s.True(result.Sessions[1].IsCurrent)
	s.NotEqual(result.Sessions[0].Device, result.Sessions[1].Device)

	// Sessions drop out of the listing once revoked.
	s.Require().NoError(s.service.Revoke(s.ctx, newer.RefreshToken))
	result, err = s.service.ListSessions(s.at(2*time.Hour), alice.ID, older.RefreshToken)
	s.Require().NoError(err)
	s.Require().Len(result.Sessions, 1)
}

func (s *ServiceSuite) TestPurgeExpiredHonorsGrace() {
	pair := s.issueFor("alice")

	// Expired but inside the 24h grace: kept, so replays still classify.
	deleted, err := s.service.PurgeExpired(s.at(30*24*time.Hour + time.Hour))
	s.Require().NoError(err)
	s.Zero(deleted)

	deleted, err = s.service.PurgeExpired(s.at(30*24*time.Hour + 25*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, deleted)

	_, err = s.store.Find(s.ctx, pair.RefreshToken)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}
