package service

import (
	"context"
	"errors"

	"vigil/internal/auth/models"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/audit"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/requestcontext"
)

// ValidateAccess verifies an access token and returns the identity embedded
// in it. Validation is stateless: signature and expiry only, no store read,
// so revocation takes effect at the refresh boundary rather than here.
func (s *Service) ValidateAccess(ctx context.Context, accessToken string) (models.Identity, error) {
	if accessToken == "" {
		return models.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "access token required")
	}

	identity, err := s.codec.Verify(accessToken, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrExpired) {
			return models.Identity{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "access token expired")
		}
		// Malformed tokens feed the failure detector; expired ones are
		// routine and do not.
		s.record(ctx, audit.Record{
			Actor:    requestcontext.Username(ctx),
			Action:   audit.ActionTokenValidated,
			Outcome:  audit.OutcomeFailure,
			Severity: audit.SeverityWarning,
			Detail:   "malformed access token",
		})
		return models.Identity{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "malformed access token")
	}
	return identity, nil
}
