package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"vigil/internal/auth/models"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore is a Postgres-backed refresh token store.
//
// Expected schema:
//
//	CREATE TABLE refresh_tokens (
//	    id                 UUID PRIMARY KEY,
//	    token              TEXT NOT NULL UNIQUE,
//	    user_id            UUID NOT NULL,
//	    username           TEXT NOT NULL,
//	    roles              TEXT[] NOT NULL DEFAULT '{}',
//	    device_fingerprint TEXT NOT NULL DEFAULT '',
//	    device_name        TEXT NOT NULL DEFAULT '',
//	    ip                 TEXT NOT NULL DEFAULT '',
//	    state              TEXT NOT NULL,
//	    replaced_by        TEXT NOT NULL DEFAULT '',
//	    issued_at          TIMESTAMPTZ NOT NULL,
//	    expires_at         TIMESTAMPTZ NOT NULL,
//	    last_used_at       TIMESTAMPTZ,
//	    revoked_at         TIMESTAMPTZ
//	);
//	CREATE INDEX refresh_tokens_user_idx ON refresh_tokens (user_id);
type PostgresStore struct {
	db DB
}

// NewPostgresStore constructs a Postgres-backed refresh token store.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const refreshColumns = `id, token, user_id, username, roles, device_fingerprint, device_name, ip,
	state, replaced_by, issued_at, expires_at, last_used_at, revoked_at`

func (s *PostgresStore) Create(ctx context.Context, rec *models.RefreshTokenRecord) error {
	query := `
		INSERT INTO refresh_tokens (` + refreshColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.Exec(ctx, query,
		rec.ID.String(), rec.Token, rec.UserID.String(), rec.Username, rec.Roles,
		rec.DeviceFingerprint, rec.DeviceName, rec.IP,
		string(rec.State), rec.ReplacedBy, rec.IssuedAt, rec.ExpiresAt,
		rec.LastUsedAt, rec.RevokedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refresh record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, token string) (*models.RefreshTokenRecord, error) {
	row := s.db.QueryRow(ctx, `SELECT `+refreshColumns+` FROM refresh_tokens WHERE token = $1`, token)
	return scanRecord(row)
}

// Rotate relies on a conditional UPDATE as the single-spend guard: only one
// transaction can move a token out of the active state.
func (s *PostgresStore) Rotate(ctx context.Context, token string, successor *models.RefreshTokenRecord, now time.Time) (*models.RefreshTokenRecord, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin rotate tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE refresh_tokens
		SET state = $1, replaced_by = $2, last_used_at = $3
		WHERE token = $4 AND state = $5 AND expires_at > $3
		RETURNING `+refreshColumns,
		string(models.TokenStateRotated), successor.Token, now,
		token, string(models.TokenStateActive),
	)
	rotated, err := scanRecord(row)
	if errors.Is(err, sentinel.ErrNotFound) {
		// The guard did not match; re-read to classify why.
		stale, findErr := s.Find(ctx, token)
		if findErr != nil {
			return nil, findErr
		}
		if stateErr := stale.CanRotate(now); stateErr != nil {
			return stale, fmt.Errorf("refresh token %s: %w", stale.ID, stateErr)
		}
		return stale, fmt.Errorf("refresh token %s: %w", stale.ID, sentinel.ErrConflict)
	}
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO refresh_tokens (`+refreshColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		successor.ID.String(), successor.Token, successor.UserID.String(), successor.Username, successor.Roles,
		successor.DeviceFingerprint, successor.DeviceName, successor.IP,
		string(successor.State), successor.ReplacedBy, successor.IssuedAt, successor.ExpiresAt,
		successor.LastUsedAt, successor.RevokedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert successor record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit rotate tx: %w", err)
	}
	return rotated, nil
}

func (s *PostgresStore) Revoke(ctx context.Context, token string, now time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens
		SET state = $1, revoked_at = $2
		WHERE token = $3 AND state <> $1`,
		string(models.TokenStateRevoked), now, token,
	)
	if err != nil {
		return fmt.Errorf("revoke refresh record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either missing or already revoked; distinguish for the caller.
		if _, err := s.Find(ctx, token); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) RevokeAllForUser(ctx context.Context, userID id.UserID, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens
		SET state = $1, revoked_at = $2
		WHERE user_id = $3 AND state <> $1`,
		string(models.TokenStateRevoked), now, userID.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("revoke user refresh records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) RevokeDevice(ctx context.Context, userID id.UserID, fingerprint string, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens
		SET state = $1, revoked_at = $2
		WHERE user_id = $3 AND device_fingerprint = $4 AND state <> $1`,
		string(models.TokenStateRevoked), now, userID.String(), fingerprint,
	)
	if err != nil {
		return 0, fmt.Errorf("revoke device refresh records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ListActiveByUser(ctx context.Context, userID id.UserID, now time.Time) ([]*models.RefreshTokenRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+refreshColumns+` FROM refresh_tokens
		WHERE user_id = $1 AND state = $2 AND expires_at > $3
		ORDER BY issued_at DESC`,
		userID.String(), string(models.TokenStateActive), now,
	)
	if err != nil {
		return nil, fmt.Errorf("list active refresh records: %w", err)
	}
	defer rows.Close()

	var out []*models.RefreshTokenRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time, grace time.Duration) (int, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at + $1 < $2`,
		grace, now,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.RefreshTokenRecord, error) {
	var (
		rec              models.RefreshTokenRecord
		rawID, rawUserID string
		state            string
	)
	err := row.Scan(
		&rawID, &rec.Token, &rawUserID, &rec.Username, &rec.Roles,
		&rec.DeviceFingerprint, &rec.DeviceName, &rec.IP,
		&state, &rec.ReplacedBy, &rec.IssuedAt, &rec.ExpiresAt,
		&rec.LastUsedAt, &rec.RevokedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan refresh record: %w", err)
	}

	tokenID, err := id.ParseTokenID(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan refresh record id: %w", err)
	}
	userID, err := id.ParseUserID(rawUserID)
	if err != nil {
		return nil, fmt.Errorf("scan refresh record user id: %w", err)
	}
	rec.ID = tokenID
	rec.UserID = userID
	rec.State = models.TokenState(state)
	return &rec, nil
}
