package memory

import (
	"context"
	"sync"

	"github.com/accessdeck/zonegate/internal/zonegate/store"
)

// AccessLogStore is an in-memory append-only audit log.  Intended for
// tests and dev environments.
type AccessLogStore struct {
	mu      sync.Mutex
	entries []store.AccessLogRecord
	byKey   map[string]int
}

func NewAccessLogStore() *AccessLogStore {
	return &AccessLogStore{byKey: make(map[string]int)}
}

func (s *AccessLogStore) Append(_ context.Context, rec store.AccessLogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A replayed idempotency key keeps the original row.
	if _, ok := s.byKey[rec.IdempotencyKey]; ok {
		return nil
	}
	s.byKey[rec.IdempotencyKey] = len(s.entries)
	s.entries = append(s.entries, rec)
	return nil
}

func (s *AccessLogStore) FindByIdempotencyKey(_ context.Context, key string) (store.AccessLogRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byKey[key]
	if !ok {
		return store.AccessLogRecord{}, false, nil
	}
	return s.entries[i], true, nil
}

// Entries returns a copy of all recorded entries.  Test-only helper.
func (s *AccessLogStore) Entries() []store.AccessLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AccessLogRecord, len(s.entries))
	copy(out, s.entries)
	return out
}
