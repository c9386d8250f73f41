package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/accessdeck/zonegate/internal/zonegate/store"
)

type DeviceStore struct {
	mu      sync.RWMutex
	devices map[string]store.DeviceRecord
	seen    map[string]time.Time
}

// NewDeviceStore seeds the store with pre-commissioned devices.
func NewDeviceStore(devices []store.DeviceRecord) *DeviceStore {
	m := make(map[string]store.DeviceRecord, len(devices))
	for _, d := range devices {
		id := strings.TrimSpace(d.DeviceID)
		if id == "" {
			continue
		}
		d.DeviceID = id
		m[id] = d
	}
	return &DeviceStore{
		devices: m,
		seen:    make(map[string]time.Time),
	}
}

func (s *DeviceStore) Lookup(_ context.Context, deviceID string) (store.DeviceRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.devices[deviceID]
	return rec, ok, nil
}

func (s *DeviceStore) MarkSeen(_ context.Context, deviceID string, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[deviceID] = t
	if rec, ok := s.devices[deviceID]; ok {
		rec.LastSeen = t
		s.devices[deviceID] = rec
	}
	return nil
}
