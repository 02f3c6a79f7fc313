package service

import (
	"context"
	"errors"
	"time"

	"vigil/internal/auth/models"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/audit"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/requestcontext"
)

// Refresh metric reasons.
const (
	refreshFailNotFound = "not_found"
	refreshFailExpired  = "expired"
	refreshFailRevoked  = "revoked"
	refreshFailReuse    = "reuse"
	refreshFailInternal = "internal"
)

// Refresh spends a refresh token for a new pair. Rotation is mandatory: the
// presented record transitions to rotated and is linked to its successor in
// one atomic store operation, so a given token value can be spent once.
//
// Presenting a token that was already rotated is treated as theft: every
// refresh record the owner holds is revoked, a TOKEN_REUSE alert is raised,
// and the caller gets a revocation error. A merely revoked or expired token
// fails without the theft response.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "session.Refresh")
	defer span.End()

	if refreshToken == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "refresh token required")
	}

	now := requestcontext.Now(ctx)
	start := time.Now()

	current, err := s.store.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.countRefreshFailure(refreshFailNotFound)
			s.record(ctx, audit.Record{
				Action:   audit.ActionTokenRefreshed,
				Outcome:  audit.OutcomeFailure,
				Severity: audit.SeverityWarning,
				Detail:   "unknown refresh token",
			})
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token")
		}
		s.countRefreshFailure(refreshFailInternal)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load refresh token")
	}

	s.checkDeviceBinding(ctx, current)

	identity := models.Identity{ID: current.UserID, Username: current.Username, Roles: current.Roles}
	pair, successor, err := s.mintPair(ctx, identity, now)
	if err != nil {
		s.countRefreshFailure(refreshFailInternal)
		return nil, err
	}

	rotated, err := s.store.Rotate(ctx, refreshToken, successor, now)
	if err != nil {
		return nil, s.refreshFailure(ctx, rotated, err)
	}

	if s.metrics != nil {
		s.metrics.TokensRefreshed.Inc()
		s.metrics.RefreshDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	}
	s.record(ctx, audit.Record{
		Actor:        rotated.Username,
		Action:       audit.ActionTokenRefreshed,
		ResourceType: "refresh_token",
		ResourceID:   successor.ID.String(),
		Outcome:      audit.OutcomeSuccess,
		Severity:     audit.SeverityInfo,
	})
	return pair, nil
}

// refreshFailure maps a rotation error onto the error taxonomy and fires
// the theft response when the failure is a rotated-token replay.
func (s *Service) refreshFailure(ctx context.Context, stale *models.RefreshTokenRecord, err error) error {
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		s.countRefreshFailure(refreshFailReuse)
		s.respondToTheft(ctx, stale)
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, "refresh token revoked")

	case errors.Is(err, sentinel.ErrRevoked):
		s.countRefreshFailure(refreshFailRevoked)
		s.record(ctx, audit.Record{
			Actor:    stale.Username,
			Action:   audit.ActionTokenRefreshed,
			Outcome:  audit.OutcomeFailure,
			Severity: audit.SeverityWarning,
			Detail:   "refresh token revoked",
		})
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, "refresh token revoked")

	case errors.Is(err, sentinel.ErrExpired):
		s.countRefreshFailure(refreshFailExpired)
		s.record(ctx, audit.Record{
			Actor:    stale.Username,
			Action:   audit.ActionTokenRefreshed,
			Outcome:  audit.OutcomeFailure,
			Severity: audit.SeverityInfo,
			Detail:   "refresh token expired",
		})
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, "refresh token expired")

	case errors.Is(err, sentinel.ErrNotFound):
		// Lost a race with a concurrent purge between Find and Rotate.
		s.countRefreshFailure(refreshFailNotFound)
		return dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token")

	default:
		s.countRefreshFailure(refreshFailInternal)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to rotate refresh token")
	}
}

// respondToTheft treats a rotated-token replay as credential theft: the
// original holder and the thief cannot be told apart, so every session the
// user owns is revoked and the user must re-authenticate.
func (s *Service) respondToTheft(ctx context.Context, stale *models.RefreshTokenRecord) {
	now := requestcontext.Now(ctx)
	revoked, err := s.store.RevokeAllForUser(ctx, stale.UserID, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "theft response: failed to revoke user sessions",
			"error", err,
			"user_id", stale.UserID.String(),
		)
	}

	if s.metrics != nil {
		s.metrics.TheftResponses.Inc()
		s.metrics.SessionsRevoked.Add(float64(revoked))
	}
	s.record(ctx, audit.Record{
		Actor:        stale.Username,
		Action:       audit.ActionTokenReuse,
		ResourceType: "refresh_token",
		ResourceID:   stale.ID.String(),
		Outcome:      audit.OutcomeFailure,
		Severity:     audit.SeverityCritical,
		Detail:       "rotated refresh token presented again",
	})
	s.raise(ctx, audit.SecurityAlert{
		Actor:  stale.Username,
		Reason: audit.ReasonTokenReuse,
		Detail: "rotated refresh token presented again; all sessions revoked",
	})
	s.logger.WarnContext(ctx, "rotated refresh token reused, all user sessions revoked",
		"user_id", stale.UserID.String(),
		"sessions_revoked", revoked,
	)
}

// checkDeviceBinding compares the presented device fingerprint with the one
// the record was bound to. A mismatch does not block the refresh but is
// recorded as a security event for the detector to weigh.
func (s *Service) checkDeviceBinding(ctx context.Context, current *models.RefreshTokenRecord) {
	presented := requestcontext.DeviceFingerprint(ctx)
	if presented == "" {
		if ua := requestcontext.UserAgent(ctx); ua != "" {
			presented = s.devices.ComputeFingerprint(ua)
		}
	}

	matched, _ := s.devices.CompareFingerprints(current.DeviceFingerprint, presented)
	if matched {
		return
	}
	s.record(ctx, audit.Record{
		Actor:        current.Username,
		Action:       audit.ActionDeviceMismatch,
		ResourceType: "refresh_token",
		ResourceID:   current.ID.String(),
		Outcome:      audit.OutcomeFailure,
		Severity:     audit.SeverityWarning,
		Detail:       "refresh presented from a different device than the one it was issued to",
	})
}
