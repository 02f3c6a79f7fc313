package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vigil/pkg/domain-errors"
)

// Parsing enforces the invariant that IDs are valid, non-empty, non-nil
// UUIDs at trust boundaries.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseUserID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUserID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		raw := uuid.New().String()
		parsed, err := ParseUserID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, parsed.String())
	})

	t.Run("rejects UUID with trailing garbage", func(t *testing.T) {
		_, err := ParseTokenID(uuid.New().String() + "x")
		require.Error(t, err)
	})

	t.Run("rejects whitespace-padded UUID", func(t *testing.T) {
		_, err := ParseTokenID("  " + uuid.New().String())
		require.Error(t, err)
	})
}

func TestParseTokenID_SameInvariants(t *testing.T) {
	for _, input := range []string{"", "not-a-uuid", uuid.Nil.String()} {
		_, errUser := ParseUserID(input)
		_, errToken := ParseTokenID(input)
		assert.Error(t, errUser, "input %q", input)
		assert.Error(t, errToken, "input %q", input)
	}
}

func TestNewTokenID(t *testing.T) {
	a, b := NewTokenID(), NewTokenID()
	assert.False(t, a.IsNil())
	assert.NotEqual(t, a, b)
	assert.Len(t, strings.Split(a.String(), "-"), 5)
}

func TestIsNil(t *testing.T) {
	assert.True(t, UserID(uuid.Nil).IsNil())
	assert.False(t, UserID(uuid.New()).IsNil())
}
