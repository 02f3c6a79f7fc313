package service

import (
	"context"

	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/requestcontext"
)

// PurgeExpired hard-deletes refresh records whose expiry plus the retention
// grace has passed. Expired records are kept through the grace window so a
// late replay of a recently rotated token still reads as reuse rather than
// as an unknown token.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	deleted, err := s.store.DeleteExpired(ctx, now, s.retentionGrace)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge expired refresh tokens")
	}
	if deleted > 0 {
		s.logger.InfoContext(ctx, "purged expired refresh tokens", "deleted", deleted)
	}
	return deleted, nil
}
