package service

import (
	"context"
	"errors"

	"vigil/internal/auth/models"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/audit"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/requestcontext"
)

// Revoke invalidates a single refresh token (logout for one device).
// Idempotent: revoking an already-revoked or unknown token succeeds, since
// the caller's goal state already holds.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return dErrors.New(dErrors.CodeBadRequest, "refresh token required")
	}

	now := requestcontext.Now(ctx)
	rec, err := s.store.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load refresh token")
	}

	if err := s.store.Revoke(ctx, refreshToken, now); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke refresh token")
	}

	if s.metrics != nil {
		s.metrics.SessionsRevoked.Inc()
	}
	s.record(ctx, audit.Record{
		Actor:        rec.Username,
		Action:       audit.ActionSessionRevoked,
		ResourceType: "refresh_token",
		ResourceID:   rec.ID.String(),
		Outcome:      audit.OutcomeSuccess,
		Severity:     audit.SeverityInfo,
	})
	return nil
}

// RevokeAll invalidates every refresh record the user owns (logout from all
// devices) and reports how many sessions changed state. Idempotent.
func (s *Service) RevokeAll(ctx context.Context, userID id.UserID) (*models.RevokeAllResult, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user ID required")
	}

	now := requestcontext.Now(ctx)
	revoked, err := s.store.RevokeAllForUser(ctx, userID, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke user sessions")
	}

	if s.metrics != nil {
		s.metrics.SessionsRevoked.Add(float64(revoked))
	}
	s.record(ctx, audit.Record{
		Actor:        requestcontext.Username(ctx),
		Action:       audit.ActionLogoutAll,
		ResourceType: "user",
		ResourceID:   userID.String(),
		Outcome:      audit.OutcomeSuccess,
		Severity:     audit.SeverityInfo,
	})
	s.logger.InfoContext(ctx, "all user sessions revoked",
		"user_id", userID.String(),
		"sessions_revoked", revoked,
	)
	return &models.RevokeAllResult{RevokedCount: revoked}, nil
}

// RevokeDevice invalidates the user's refresh records bound to one device
// fingerprint. Idempotent.
func (s *Service) RevokeDevice(ctx context.Context, userID id.UserID, fingerprint string) (*models.RevokeAllResult, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user ID required")
	}
	if fingerprint == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "device fingerprint required")
	}

	now := requestcontext.Now(ctx)
	revoked, err := s.store.RevokeDevice(ctx, userID, fingerprint, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke device sessions")
	}

	if s.metrics != nil {
		s.metrics.SessionsRevoked.Add(float64(revoked))
	}
	s.record(ctx, audit.Record{
		Actor:        requestcontext.Username(ctx),
		Action:       audit.ActionSessionRevoked,
		ResourceType: "user",
		ResourceID:   userID.String(),
		Outcome:      audit.OutcomeSuccess,
		Severity:     audit.SeverityInfo,
		Detail:       "device sessions revoked",
	})
	return &models.RevokeAllResult{RevokedCount: revoked}, nil
}
