package service

import (
	"context"

	"vigil/internal/auth/models"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/requestcontext"
)

// ListSessions returns the user's active refresh chains, newest first.
// currentToken marks the chain the caller is on; pass "" when unknown.
func (s *Service) ListSessions(ctx context.Context, userID id.UserID, currentToken string) (*models.SessionsResult, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user ID required")
	}

	now := requestcontext.Now(ctx)
	records, err := s.store.ListActiveByUser(ctx, userID, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sessions")
	}

	result := &models.SessionsResult{Sessions: make([]models.SessionSummary, 0, len(records))}
	for _, rec := range records {
		lastActivity := rec.IssuedAt
		if rec.LastUsedAt != nil {
			lastActivity = *rec.LastUsedAt
		}
		result.Sessions = append(result.Sessions, models.SessionSummary{
			TokenID:      rec.ID.String(),
			Device:       rec.DeviceName,
			IPAddress:    rec.IP,
			CreatedAt:    rec.IssuedAt,
			LastActivity: lastActivity,
			ExpiresAt:    rec.ExpiresAt,
			IsCurrent:    currentToken != "" && rec.Token == currentToken,
		})
	}
	return result, nil
}
