// Package refresh persists refresh token records and enforces their state
// machine at the storage boundary.
//
// Error Contract:
// All store methods follow this pattern:
//   - Return sentinel.ErrNotFound when the requested record does not exist
//   - Return sentinel.ErrExpired / ErrAlreadyUsed / ErrRevoked when the
//     record cannot be rotated; Rotate returns the record alongside these
//     errors so the service can run replay detection on it
//   - Return nil for successful operations
//   - Return wrapped errors with context for infrastructure failures
package refresh

import (
	"context"
	"time"

	"vigil/internal/auth/models"
	id "vigil/pkg/domain"
)

// Store is the persistence contract for refresh token records. Writes are
// atomic per record; Rotate is the only multi-record operation and every
// implementation performs it atomically so a token value can never be spent
// twice.
type Store interface {
	// Create persists a fresh record in the active state.
	Create(ctx context.Context, rec *models.RefreshTokenRecord) error

	// Find returns the record for a presented token value.
	Find(ctx context.Context, token string) (*models.RefreshTokenRecord, error)

	// Rotate validates the presented record, marks it rotated, links it to
	// the successor, and persists the successor in one atomic step. On state
	// errors the stale record is still returned for replay detection.
	Rotate(ctx context.Context, token string, successor *models.RefreshTokenRecord, now time.Time) (*models.RefreshTokenRecord, error)

	// Revoke marks a single record revoked. Idempotent; revoking an
	// already-revoked record is not an error.
	Revoke(ctx context.Context, token string, now time.Time) error

	// RevokeAllForUser revokes every non-terminal record owned by the user
	// and returns how many records changed state. Idempotent.
	RevokeAllForUser(ctx context.Context, userID id.UserID, now time.Time) (int, error)

	// RevokeDevice revokes the user's records bound to one device
	// fingerprint. Idempotent.
	RevokeDevice(ctx context.Context, userID id.UserID, fingerprint string, now time.Time) (int, error)

	// ListActiveByUser returns the user's active records, newest first.
	ListActiveByUser(ctx context.Context, userID id.UserID, now time.Time) ([]*models.RefreshTokenRecord, error)

	// DeleteExpired hard-deletes records whose expiry plus the grace
	// retention period has passed. Returns the number of deleted records.
	DeleteExpired(ctx context.Context, now time.Time, grace time.Duration) (int, error)
}
