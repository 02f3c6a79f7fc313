package service

import (
	"context"
	"time"

	"vigil/internal/auth/device"
	"vigil/internal/auth/models"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/audit"
	"vigil/pkg/requestcontext"
)

// Issue authenticates a username and mints a fresh token pair: a stateless
// access token plus a stored refresh record bound to the caller's device.
func (s *Service) Issue(ctx context.Context, username string) (*models.TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "session.Issue")
	defer span.End()

	if username == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "username required")
	}

	identity, err := s.resolver.Resolve(ctx, username)
	if err != nil {
		s.record(ctx, audit.Record{
			Actor:    username,
			Action:   audit.ActionLogin,
			Outcome:  audit.OutcomeFailure,
			Severity: audit.SeverityWarning,
			Detail:   "identity resolution failed",
		})
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid credentials")
	}

	now := requestcontext.Now(ctx)
	pair, rec, err := s.mintPair(ctx, identity, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist refresh token")
	}

	if s.metrics != nil {
		s.metrics.TokenPairsIssued.Inc()
	}
	s.record(ctx, audit.Record{
		Actor:        identity.Username,
		Action:       audit.ActionLogin,
		ResourceType: "refresh_token",
		ResourceID:   rec.ID.String(),
		Outcome:      audit.OutcomeSuccess,
		Severity:     audit.SeverityInfo,
	})
	s.logger.InfoContext(ctx, "token pair issued",
		"user_id", identity.ID.String(),
		"device", rec.DeviceName,
	)
	return pair, nil
}

// mintPair builds a signed access token plus a successor refresh record for
// the identity, stamping device and network facts from the request context.
func (s *Service) mintPair(ctx context.Context, identity models.Identity, now time.Time) (*models.TokenPair, *models.RefreshTokenRecord, error) {
	access, accessExp, _, err := s.codec.Issue(identity, now)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign access token")
	}

	fingerprint := requestcontext.DeviceFingerprint(ctx)
	deviceName := requestcontext.DeviceName(ctx)
	if ua := requestcontext.UserAgent(ctx); ua != "" {
		if fingerprint == "" {
			fingerprint = s.devices.ComputeFingerprint(ua)
		}
		if deviceName == "" {
			deviceName = device.ParseUserAgent(ua)
		}
	}

	rec := &models.RefreshTokenRecord{
		ID:                id.NewTokenID(),
		Token:             models.NewRefreshValue(),
		UserID:            identity.ID,
		Username:          identity.Username,
		Roles:             identity.Roles,
		DeviceFingerprint: fingerprint,
		DeviceName:        deviceName,
		IP:                requestcontext.ClientIP(ctx),
		State:             models.TokenStateActive,
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.refreshTTL),
	}

	pair := &models.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     rec.Token,
		RefreshExpiresAt: rec.ExpiresAt,
		TokenType:        "Bearer",
	}
	return pair, rec, nil
}
