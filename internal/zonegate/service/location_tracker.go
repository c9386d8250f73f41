package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/accessdeck/zonegate/internal/zonegate/store"
)

// MemberLocationTracker records which zone a member is currently inside.
// Legitimate hardware never has one member entering two zones at once, but
// writes are still serialized per member through a striped lock so a
// duplicate or late event cannot interleave with a concurrent one.
type MemberLocationTracker struct {
	store store.MemberLocationStore
	locks [32]sync.Mutex
}

func NewMemberLocationTracker(st store.MemberLocationStore) *MemberLocationTracker {
	return &MemberLocationTracker{store: st}
}

func (t *MemberLocationTracker) lockFor(memberID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(memberID))
	return &t.locks[h.Sum32()%uint32(len(t.locks))]
}

// Enter upserts the member's current zone.
func (t *MemberLocationTracker) Enter(ctx context.Context, memberID, zoneID string, at time.Time) error {
	mu := t.lockFor(memberID)
	mu.Lock()
	defer mu.Unlock()
	return t.store.SetLocation(ctx, memberID, zoneID, at)
}

// Exit removes the member's location record, if any.
func (t *MemberLocationTracker) Exit(ctx context.Context, memberID string) error {
	mu := t.lockFor(memberID)
	mu.Lock()
	defer mu.Unlock()
	return t.store.ClearLocation(ctx, memberID)
}

func (t *MemberLocationTracker) LocationOf(ctx context.Context, memberID string) (store.MemberLocationRecord, bool, error) {
	return t.store.LocationOf(ctx, memberID)
}

// MembersInZone is the read model for occupancy dashboards.
func (t *MemberLocationTracker) MembersInZone(ctx context.Context, zoneID string) ([]string, error) {
	return t.store.MembersInZone(ctx, zoneID)
}
