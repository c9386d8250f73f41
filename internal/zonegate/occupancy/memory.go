package occupancy

import (
	"context"
	"sync"
)

// zoneCounter is a single zone's count guarded by its own mutex, so
// admissions to different zones never contend with each other.
type zoneCounter struct {
	mu    sync.Mutex
	count int
}

// MemoryTracker keeps occupancy counters in process memory.  Suitable for
// single-instance deployments and tests; multi-instance deployments should
// use the redis tracker so all instances share one counter per zone.
type MemoryTracker struct {
	mu    sync.Mutex
	zones map[string]*zoneCounter
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{zones: make(map[string]*zoneCounter)}
}

func (t *MemoryTracker) zone(zoneID string) *zoneCounter {
	t.mu.Lock()
	defer t.mu.Unlock()
	z, ok := t.zones[zoneID]
	if !ok {
		z = &zoneCounter{}
		t.zones[zoneID] = z
	}
	return z
}

func (t *MemoryTracker) TryAdmit(_ context.Context, zoneID string, limit *int) (bool, error) {
	z := t.zone(zoneID)
	z.mu.Lock()
	defer z.mu.Unlock()

	if limit != nil && z.count >= *limit {
		return false, nil
	}
	z.count++
	return true, nil
}

func (t *MemoryTracker) Release(_ context.Context, zoneID string) error {
	z := t.zone(zoneID)
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.count > 0 {
		z.count--
	}
	return nil
}

func (t *MemoryTracker) Count(_ context.Context, zoneID string) (int, error) {
	z := t.zone(zoneID)
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.count, nil
}
