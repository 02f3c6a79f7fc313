// Package models holds the session-core domain types: identities, token
// pairs, and the refresh token record with its lifecycle state machine.
package models

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

// Identity is a read-only snapshot of a user as known to the external
// identity store. The core embeds it in tokens and never mutates it.
type Identity struct {
	ID       id.UserID
	Username string
	Roles    []string
}

// TokenState is the lifecycle state of a refresh token record.
//
//	active -> rotated   (successful refresh; terminal for this record)
//	active -> revoked   (logout or security event; terminal)
//
// Expiry is derived from ExpiresAt rather than stored, so a record cannot be
// "un-expired" by a missed state transition.
type TokenState string

const (
	TokenStateActive  TokenState = "active"
	TokenStateRotated TokenState = "rotated"
	TokenStateRevoked TokenState = "revoked"
)

// RefreshTokenRecord is the server-side record for one refresh token.
// Records form a chain through ReplacedBy: rotating a token revokes it and
// links it to its successor. Presenting a rotated record again is the theft
// signal the session service acts on.
type RefreshTokenRecord struct {
	ID       id.TokenID
	Token    string
	UserID   id.UserID
	Username string
	Roles    []string

	DeviceFingerprint string
	DeviceName        string
	IP                string

	State      TokenState
	ReplacedBy string

	IssuedAt   time.Time
	ExpiresAt  time.Time
	LastUsedAt *time.Time
	RevokedAt  *time.Time
}

// Expired reports whether the record is past its expiry at the given time.
func (r *RefreshTokenRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Active reports whether the record can still mint a new pair at the given time.
func (r *RefreshTokenRecord) Active(now time.Time) bool {
	return r.State == TokenStateActive && !r.Expired(now)
}

// CanRotate validates the record for rotation. Expiry is checked before
// state so an expired-then-rotated record reads as expired, not as reuse.
func (r *RefreshTokenRecord) CanRotate(now time.Time) error {
	if r.Expired(now) {
		return sentinel.ErrExpired
	}
	switch r.State {
	case TokenStateActive:
		return nil
	case TokenStateRotated:
		return sentinel.ErrAlreadyUsed
	case TokenStateRevoked:
		return sentinel.ErrRevoked
	default:
		return sentinel.ErrInvalidState
	}
}

// MarkRotated transitions the record to rotated and links its successor.
func (r *RefreshTokenRecord) MarkRotated(successorToken string, now time.Time) {
	r.State = TokenStateRotated
	r.ReplacedBy = successorToken
	t := now
	r.LastUsedAt = &t
}

// MarkRevoked transitions the record to revoked. Idempotent.
func (r *RefreshTokenRecord) MarkRevoked(now time.Time) {
	if r.State == TokenStateRevoked {
		return
	}
	r.State = TokenStateRevoked
	t := now
	r.RevokedAt = &t
}

// TokenPair is the result of a successful issue or refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	TokenType        string    `json:"token_type"`
}

// SessionSummary describes one active refresh chain for session listings.
type SessionSummary struct {
	TokenID      string    `json:"token_id"`
	Device       string    `json:"device"`
	IPAddress    string    `json:"ip_address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsCurrent    bool      `json:"is_current"`
}

// SessionsResult wraps a session listing response.
type SessionsResult struct {
	Sessions []SessionSummary `json:"sessions"`
}

// RevokeAllResult reports the outcome of a logout-all operation.
type RevokeAllResult struct {
	RevokedCount int `json:"revoked_count"`
}

const refreshTokenPrefix = "rt_"

// NewRefreshValue generates an opaque refresh token value: 32 bytes of
// crypto/rand entropy, base64url-encoded, with a recognizable prefix.
func NewRefreshValue() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure means the process has no usable entropy
		// source; nothing sensible can be issued.
		panic("refresh token entropy unavailable: " + err.Error())
	}
	return refreshTokenPrefix + base64.RawURLEncoding.EncodeToString(buf)
}
