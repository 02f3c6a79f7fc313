package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/auth/models"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

func testIdentity() models.Identity {
	return models.Identity{
		ID:       id.UserID(uuid.New()),
		Username: "alice",
		Roles:    []string{"admin", "user"},
	}
}

func TestCodec_IssueThenVerify(t *testing.T) {
	codec := NewCodec("test-signing-key", 15*time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	identity := testIdentity()

	signed, expiresAt, jti, err := codec.Issue(identity, now)
	require.NoError(t, err)
	assert.NotEmpty(t, signed)
	assert.NotEmpty(t, jti)
	assert.Equal(t, now.Add(15*time.Minute), expiresAt)

	got, err := codec.Verify(signed, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, identity.ID, got.ID)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, []string{"admin", "user"}, got.Roles)
}

func TestCodec_VerifyExpired(t *testing.T) {
	codec := NewCodec("test-signing-key", 15*time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	signed, _, _, err := codec.Issue(testIdentity(), now)
	require.NoError(t, err)

	_, err = codec.Verify(signed, now.Add(16*time.Minute))
	assert.ErrorIs(t, err, sentinel.ErrExpired)
}

func TestCodec_VerifyMalformed(t *testing.T) {
	codec := NewCodec("test-signing-key", 15*time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("garbage input", func(t *testing.T) {
		_, err := codec.Verify("not-a-jwt", now)
		assert.ErrorIs(t, err, sentinel.ErrMalformed)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewCodec("different-key", 15*time.Minute)
		signed, _, _, err := other.Issue(testIdentity(), now)
		require.NoError(t, err)

		_, err = codec.Verify(signed, now)
		assert.ErrorIs(t, err, sentinel.ErrMalformed)
	})

	t.Run("empty string", func(t *testing.T) {
		_, err := codec.Verify("", now)
		assert.ErrorIs(t, err, sentinel.ErrMalformed)
	})
}

func TestCodec_VerifyIsStateless(t *testing.T) {
	// Two codecs with the same key must accept each other's tokens; validity
	// depends only on signature and expiry.
	a := NewCodec("shared-key", time.Minute)
	b := NewCodec("shared-key", time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	signed, _, _, err := a.Issue(testIdentity(), now)
	require.NoError(t, err)

	_, err = b.Verify(signed, now)
	assert.NoError(t, err)
}
