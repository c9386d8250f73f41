// Package occupancy maintains live per-zone headcounts and enforces
// capacity ceilings.  Admission is a single indivisible test-and-increment
// so concurrent entries can never over-admit a bounded zone.
package occupancy

import "context"

// Tracker owns the per-zone occupancy counters.
//
// TryAdmit atomically checks currentCount < limit and increments, in one
// step per zone.  A nil limit means unbounded: the admit always succeeds
// but the count is still kept for dashboards.  Release decrements, floored
// at zero to absorb mismatched or duplicate exits.
type Tracker interface {
	TryAdmit(ctx context.Context, zoneID string, limit *int) (bool, error)
	Release(ctx context.Context, zoneID string) error
	Count(ctx context.Context, zoneID string) (int, error)
}
