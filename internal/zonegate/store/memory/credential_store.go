package memory

import (
	"context"
	"sync"
	"time"

	"github.com/accessdeck/zonegate/internal/zonegate/store"
)

type CredentialStore struct {
	mu       sync.RWMutex
	cards    map[string]store.CardRecord // keyed by card number
	members  map[string]store.MemberRecord
	lastUsed map[string]time.Time // keyed by card id
}

func NewCredentialStore(cards []store.CardRecord, members []store.MemberRecord) *CredentialStore {
	cm := make(map[string]store.CardRecord, len(cards))
	for _, c := range cards {
		cm[c.Number] = c
	}
	mm := make(map[string]store.MemberRecord, len(members))
	for _, m := range members {
		mm[m.MemberID] = m
	}
	return &CredentialStore{
		cards:    cm,
		members:  mm,
		lastUsed: make(map[string]time.Time),
	}
}

func (s *CredentialStore) FindCard(_ context.Context, number string) (store.CardRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards[number]
	return c, ok, nil
}

func (s *CredentialStore) Member(_ context.Context, memberID string) (store.MemberRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberID]
	return m, ok, nil
}

func (s *CredentialStore) TouchLastUsed(_ context.Context, cardID string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed[cardID] = t
	return nil
}

// LastUsed returns the stamp for a card id.  Test-only helper.
func (s *CredentialStore) LastUsed(cardID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.lastUsed[cardID]
	return t, ok
}
