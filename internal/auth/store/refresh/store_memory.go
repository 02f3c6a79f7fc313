package refresh

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vigil/internal/auth/models"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

// InMemoryStore keeps refresh token records in memory for tests/dev.
type InMemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]*models.RefreshTokenRecord
}

// NewInMemoryStore constructs an empty in-memory refresh token store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tokens: make(map[string]*models.RefreshTokenRecord)}
}

func (s *InMemoryStore) Create(_ context.Context, rec *models.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[rec.Token]; exists {
		return fmt.Errorf("refresh token value collision: %w", sentinel.ErrConflict)
	}
	cp := *rec
	s.tokens[rec.Token] = &cp
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, token string) (*models.RefreshTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tokens[token]
	if !ok {
		return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

// Rotate performs validate-mark-insert under one lock, which is what makes a
// token value single-spend even under concurrent presentation.
func (s *InMemoryStore) Rotate(_ context.Context, token string, successor *models.RefreshTokenRecord, now time.Time) (*models.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tokens[token]
	if !ok {
		return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
	}
	if err := rec.CanRotate(now); err != nil {
		cp := *rec
		return &cp, fmt.Errorf("refresh token %s: %w", rec.ID, err)
	}

	rec.MarkRotated(successor.Token, now)
	cp := *successor
	s.tokens[successor.Token] = &cp

	rotated := *rec
	return &rotated, nil
}

func (s *InMemoryStore) Revoke(_ context.Context, token string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tokens[token]
	if !ok {
		return fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
	}
	rec.MarkRevoked(now)
	return nil
}

func (s *InMemoryStore) RevokeAllForUser(_ context.Context, userID id.UserID, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revoked := 0
	for _, rec := range s.tokens {
		if rec.UserID != userID {
			continue
		}
		if rec.State != models.TokenStateRevoked {
			rec.MarkRevoked(now)
			revoked++
		}
	}
	return revoked, nil
}

func (s *InMemoryStore) RevokeDevice(_ context.Context, userID id.UserID, fingerprint string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revoked := 0
	for _, rec := range s.tokens {
		if rec.UserID != userID || rec.DeviceFingerprint != fingerprint {
			continue
		}
		if rec.State != models.TokenStateRevoked {
			rec.MarkRevoked(now)
			revoked++
		}
	}
	return revoked, nil
}

func (s *InMemoryStore) ListActiveByUser(_ context.Context, userID id.UserID, now time.Time) ([]*models.RefreshTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RefreshTokenRecord
	for _, rec := range s.tokens {
		if rec.UserID != userID || !rec.Active(now) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time, grace time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, rec := range s.tokens {
		if !rec.ExpiresAt.IsZero() && rec.ExpiresAt.Add(grace).Before(now) {
			delete(s.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}
