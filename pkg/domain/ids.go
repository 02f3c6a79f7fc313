// Package domain holds typed identifiers shared across the module.
//
// IDs are distinct named types over uuid.UUID so the compiler rejects
// cross-type assignment (a TokenID can never be passed where a UserID is
// expected). Parsing enforces the invariant that IDs are valid, non-nil UUIDs
// at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "vigil/pkg/domain-errors"
)

// UserID identifies a user. Owned by the external identity store; the core
// only carries it inside tokens and refresh records.
type UserID uuid.UUID

// TokenID identifies a single refresh token record.
type TokenID uuid.UUID

// NewTokenID returns a fresh random token record ID.
func NewTokenID() TokenID { return TokenID(uuid.New()) }

// ParseUserID parses and validates a user ID string.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	return UserID(u), err
}

// ParseTokenID parses and validates a token record ID string.
func ParseTokenID(s string) (TokenID, error) {
	u, err := parseUUID(s)
	return TokenID(u), err
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}

func (id UserID) String() string  { return uuid.UUID(id).String() }
func (id TokenID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id TokenID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
