// Package postgres persists the audit log in Postgres.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	audit "vigil/pkg/platform/audit"
)

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store implements audit.Log on Postgres.
//
// Expected schema:
//
//	CREATE TABLE audit_records (
//	    id            TEXT PRIMARY KEY,          -- ULID, sorts in append order
//	    ts            TIMESTAMPTZ NOT NULL,
//	    actor         TEXT NOT NULL,
//	    action        TEXT NOT NULL,
//	    resource_type TEXT NOT NULL DEFAULT '',
//	    resource_id   TEXT NOT NULL DEFAULT '',
//	    outcome       TEXT NOT NULL,
//	    detail        TEXT NOT NULL DEFAULT '',
//	    request_id    TEXT NOT NULL DEFAULT '',
//	    source_ip     TEXT NOT NULL DEFAULT '',
//	    severity      TEXT NOT NULL DEFAULT ''
//	);
//	CREATE INDEX audit_records_ts_idx ON audit_records (ts);
type Store struct {
	db DB
}

// New creates a new Postgres audit store.
func New(db DB) *Store {
	return &Store{db: db}
}

// Append inserts one audit record. Inserts are idempotent on record ID so a
// recorder retry after an ambiguous failure cannot duplicate an entry.
func (s *Store) Append(ctx context.Context, rec audit.Record) error {
	query := `
		INSERT INTO audit_records
			(id, ts, actor, action, resource_type, resource_id, outcome, detail, request_id, source_ip, severity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.Exec(ctx, query,
		rec.ID, rec.Timestamp, rec.Actor, rec.Action,
		rec.ResourceType, rec.ResourceID, string(rec.Outcome),
		rec.Detail, rec.RequestID, rec.SourceIP, string(rec.Severity),
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// ListSince returns records with ts >= since in append order. ULID ids sort
// chronologically, which keeps ordering stable for equal timestamps.
func (s *Store) ListSince(ctx context.Context, since time.Time) ([]audit.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, ts, actor, action, resource_type, resource_id, outcome, detail, request_id, source_ip, severity
		FROM audit_records
		WHERE $1::timestamptz IS NULL OR ts >= $1
		ORDER BY id`,
		nullableTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var rec audit.Record
		var outcome, severity string
		if err := rows.Scan(
			&rec.ID, &rec.Timestamp, &rec.Actor, &rec.Action,
			&rec.ResourceType, &rec.ResourceID, &outcome,
			&rec.Detail, &rec.RequestID, &rec.SourceIP, &severity,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.Outcome = audit.Outcome(outcome)
		rec.Severity = audit.Severity(severity)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
