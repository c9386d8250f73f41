package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/accessdeck/zonegate/internal/zonegate/store"
)

type MemberLocationStore struct {
	mu        sync.RWMutex
	locations map[string]store.MemberLocationRecord
}

func NewMemberLocationStore() *MemberLocationStore {
	return &MemberLocationStore{locations: make(map[string]store.MemberLocationRecord)}
}

func (s *MemberLocationStore) SetLocation(_ context.Context, memberID, zoneID string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[memberID] = store.MemberLocationRecord{
		MemberID:  memberID,
		ZoneID:    zoneID,
		EnteredAt: t,
	}
	return nil
}

func (s *MemberLocationStore) ClearLocation(_ context.Context, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locations, memberID)
	return nil
}

func (s *MemberLocationStore) LocationOf(_ context.Context, memberID string) (store.MemberLocationRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.locations[memberID]
	return rec, ok, nil
}

func (s *MemberLocationStore) MembersInZone(_ context.Context, zoneID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for id, rec := range s.locations {
		if rec.ZoneID == zoneID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}
