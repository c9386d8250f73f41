package memory

import (
	"context"
	"sync"
	"time"

	"github.com/accessdeck/zonegate/internal/zonegate/store"
)

type RuleStore struct {
	mu        sync.RWMutex
	zones     map[string]store.ZoneRecord
	rules     []store.TimeRuleRecord
	schedules []store.GenderScheduleRecord
}

func NewRuleStore(zones []store.ZoneRecord) *RuleStore {
	zm := make(map[string]store.ZoneRecord, len(zones))
	for _, z := range zones {
		zm[z.ZoneID] = z
	}
	return &RuleStore{zones: zm}
}

func (s *RuleStore) AddTimeRule(r store.TimeRuleRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, r)
}

func (s *RuleStore) AddGenderSchedule(g store.GenderScheduleRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = append(s.schedules, g)
}

func (s *RuleStore) Zone(_ context.Context, zoneID string) (store.ZoneRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	z, ok := s.zones[zoneID]
	return z, ok, nil
}

func (s *RuleStore) ActiveTimeRules(_ context.Context, scope store.TimeRuleScope) ([]store.TimeRuleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.TimeRuleRecord
	for _, r := range s.rules {
		if !r.Active {
			continue
		}
		if !scopeMatches(r.ZoneID, scope.ZoneID) ||
			!scopeMatches(r.PlanID, scope.PlanID) ||
			!scopeMatches(r.MemberID, scope.MemberID) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RuleStore) GenderSchedules(_ context.Context, locationID string, day time.Weekday) ([]store.GenderScheduleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.GenderScheduleRecord
	for _, g := range s.schedules {
		if g.LocationID == locationID && g.Day == day {
			out = append(out, g)
		}
	}
	return out, nil
}

// scopeMatches mirrors the SQL predicate: a nil scope field is a wildcard,
// a set one must equal the requested id.
func scopeMatches(field *string, want string) bool {
	if field == nil {
		return true
	}
	return *field == want
}
