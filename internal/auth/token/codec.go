// Package token implements the stateless access token codec.
//
// Access tokens are self-contained HS256 JWTs carrying subject, username,
// and role claims. Validity is determined solely by signature and expiry;
// verification never touches a store, which keeps the hot path lock-free.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vigil/internal/auth/models"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

// Claims is the access token claim set.
type Claims struct {
	jwt.RegisteredClaims
	Username string   `json:"preferred_username"`
	Roles    []string `json:"roles,omitempty"`
}

// Codec signs and verifies access tokens. It is stateless and safe for
// concurrent use.
type Codec struct {
	key    []byte
	ttl    time.Duration
	issuer string
}

// NewCodec constructs a codec with the given signing key and access token TTL.
func NewCodec(signingKey string, ttl time.Duration) *Codec {
	return &Codec{
		key:    []byte(signingKey),
		ttl:    ttl,
		issuer: "vigil",
	}
}

// Issue signs a fresh access token for the identity. The expiry is computed
// from the injected now so tests and request-time stamping stay in control
// of the clock.
func (c *Codec) Issue(identity models.Identity, now time.Time) (signed string, expiresAt time.Time, jti string, err error) {
	expiresAt = now.Add(c.ttl)
	jti = uuid.NewString()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   identity.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
		Username: identity.Username,
		Roles:    identity.Roles,
	}

	signed, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", time.Time{}, "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, jti, nil
}

// Verify checks signature and expiry of an access token and returns the
// embedded identity snapshot.
//
// Errors: sentinel.ErrExpired when past expiry, sentinel.ErrMalformed for
// anything else (bad signature, wrong algorithm, garbled claims).
func (c *Codec) Verify(tokenString string, now time.Time) (models.Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithIssuer(c.issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Identity{}, fmt.Errorf("access token: %w", sentinel.ErrExpired)
		}
		return models.Identity{}, fmt.Errorf("access token: %v: %w", err, sentinel.ErrMalformed)
	}
	if !parsed.Valid {
		return models.Identity{}, fmt.Errorf("access token: %w", sentinel.ErrMalformed)
	}

	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return models.Identity{}, fmt.Errorf("access token subject: %w", sentinel.ErrMalformed)
	}

	return models.Identity{
		ID:       userID,
		Username: claims.Username,
		Roles:    claims.Roles,
	}, nil
}
