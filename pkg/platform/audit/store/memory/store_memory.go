package memory

import (
	"context"
	"sync"
	"time"

	audit "vigil/pkg/platform/audit"
)

// InMemoryStore is an append-only audit log in memory for tests/dev.
// Records are kept in append order, which is what the aggregator's
// deterministic tie-breaking relies on.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []audit.Record
}

// NewInMemoryStore constructs an empty in-memory audit log.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *InMemoryStore) ListSince(_ context.Context, since time.Time) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Record, 0, len(s.records))
	for _, rec := range s.records {
		if since.IsZero() || !rec.Timestamp.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Clear empties the log. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}
