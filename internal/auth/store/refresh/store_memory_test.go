package refresh

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vigil/internal/auth/models"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	now   time.Time
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) newRecord(userID id.UserID, fingerprint string) *models.RefreshTokenRecord {
	return &models.RefreshTokenRecord{
		ID:                id.NewTokenID(),
		Token:             models.NewRefreshValue(),
		UserID:            userID,
		Username:          "alice",
		Roles:             []string{"user"},
		DeviceFingerprint: fingerprint,
		State:             models.TokenStateActive,
		IssuedAt:          s.now,
		ExpiresAt:         s.now.Add(30 * 24 * time.Hour),
	}
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	rec := s.newRecord(id.UserID(uuid.New()), "fp-1")

	s.Require().NoError(s.store.Create(context.Background(), rec))

	found, err := s.store.Find(context.Background(), rec.Token)
	s.Require().NoError(err)
	s.Equal(rec.ID, found.ID)
	s.Equal(models.TokenStateActive, found.State)
}

func (s *InMemoryStoreSuite) TestFindNotFound() {
	_, err := s.store.Find(context.Background(), "rt_missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestRotate() {
	userID := id.UserID(uuid.New())
	rec := s.newRecord(userID, "fp-1")
	s.Require().NoError(s.store.Create(context.Background(), rec))

	successor := s.newRecord(userID, "fp-1")
	rotated, err := s.store.Rotate(context.Background(), rec.Token, successor, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(models.TokenStateRotated, rotated.State)
	s.Equal(successor.Token, rotated.ReplacedBy)

	// Successor persisted and active.
	found, err := s.store.Find(context.Background(), successor.Token)
	s.Require().NoError(err)
	s.Equal(models.TokenStateActive, found.State)
}

func (s *InMemoryStoreSuite) TestRotateTwiceIsReplay() {
	userID := id.UserID(uuid.New())
	rec := s.newRecord(userID, "fp-1")
	s.Require().NoError(s.store.Create(context.Background(), rec))

	_, err := s.store.Rotate(context.Background(), rec.Token, s.newRecord(userID, "fp-1"), s.now)
	s.Require().NoError(err)

	stale, err := s.store.Rotate(context.Background(), rec.Token, s.newRecord(userID, "fp-1"), s.now)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	// Record still returned so the service can run replay detection.
	s.Require().NotNil(stale)
	s.Equal(rec.ID, stale.ID)
}

func (s *InMemoryStoreSuite) TestRotateExpired() {
	rec := s.newRecord(id.UserID(uuid.New()), "fp-1")
	s.Require().NoError(s.store.Create(context.Background(), rec))

	_, err := s.store.Rotate(context.Background(), rec.Token, s.newRecord(rec.UserID, "fp-1"), rec.ExpiresAt.Add(time.Second))
	s.ErrorIs(err, sentinel.ErrExpired)
}

func (s *InMemoryStoreSuite) TestRotateRevoked() {
	rec := s.newRecord(id.UserID(uuid.New()), "fp-1")
	s.Require().NoError(s.store.Create(context.Background(), rec))
	s.Require().NoError(s.store.Revoke(context.Background(), rec.Token, s.now))

	_, err := s.store.Rotate(context.Background(), rec.Token, s.newRecord(rec.UserID, "fp-1"), s.now)
	s.ErrorIs(err, sentinel.ErrRevoked)
}

func (s *InMemoryStoreSuite) TestRevokeAllForUserIsIdempotent() {
	userID := id.UserID(uuid.New())
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.store.Create(context.Background(), s.newRecord(userID, "fp-1")))
	}
	other := s.newRecord(id.UserID(uuid.New()), "fp-2")
	s.Require().NoError(s.store.Create(context.Background(), other))

	revoked, err := s.store.RevokeAllForUser(context.Background(), userID, s.now)
	s.Require().NoError(err)
	s.Equal(3, revoked)

	// Second call changes nothing.
	revoked, err = s.store.RevokeAllForUser(context.Background(), userID, s.now)
	s.Require().NoError(err)
	s.Equal(0, revoked)

	// Unrelated user untouched.
	found, err := s.store.Find(context.Background(), other.Token)
	s.Require().NoError(err)
	s.Equal(models.TokenStateActive, found.State)
}

func (s *InMemoryStoreSuite) TestRevokeDevice() {
	userID := id.UserID(uuid.New())
	phone := s.newRecord(userID, "fp-phone")
	laptop := s.newRecord(userID, "fp-laptop")
	s.Require().NoError(s.store.Create(context.Background(), phone))
	s.Require().NoError(s.store.Create(context.Background(), laptop))

	revoked, err := s.store.RevokeDevice(context.Background(), userID, "fp-phone", s.now)
	s.Require().NoError(err)
	s.Equal(1, revoked)

	found, err := s.store.Find(context.Background(), laptop.Token)
	s.Require().NoError(err)
	s.Equal(models.TokenStateActive, found.State)
}

func (s *InMemoryStoreSuite) TestListActiveByUser() {
	userID := id.UserID(uuid.New())
	older := s.newRecord(userID, "fp-1")
	older.IssuedAt = s.now.Add(-time.Hour)
	newer := s.newRecord(userID, "fp-2")
	expired := s.newRecord(userID, "fp-3")
	expired.ExpiresAt = s.now.Add(-time.Minute)

	for _, rec := range []*models.RefreshTokenRecord{older, newer, expired} {
		s.Require().NoError(s.store.Create(context.Background(), rec))
	}

	active, err := s.store.ListActiveByUser(context.Background(), userID, s.now)
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal(newer.ID, active[0].ID) // newest first
	s.Equal(older.ID, active[1].ID)
}

func (s *InMemoryStoreSuite) TestDeleteExpiredHonorsGrace() {
	rec := s.newRecord(id.UserID(uuid.New()), "fp-1")
	rec.ExpiresAt = s.now.Add(-time.Hour)
	s.Require().NoError(s.store.Create(context.Background(), rec))

	// Within grace: retained.
	deleted, err := s.store.DeleteExpired(context.Background(), s.now, 2*time.Hour)
	s.Require().NoError(err)
	s.Equal(0, deleted)

	// Past grace: purged.
	deleted, err = s.store.DeleteExpired(context.Background(), s.now.Add(2*time.Hour), time.Hour)
	s.Require().NoError(err)
	s.Equal(1, deleted)

	_, err = s.store.Find(context.Background(), rec.Token)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
