package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/accessdeck/zonegate/internal/zonegate/store"
)

var (
	ErrInvalidDeviceID = errors.New("device_id is required")
	ErrUnknownDevice   = errors.New("unknown device")
)

// DeviceRegistry resolves device ids to their zone/location placement.
// A device is usable only once an admin has commissioned it; uncommissioned
// or revoked devices resolve as unknown.
type DeviceRegistry struct {
	store store.DeviceStore
}

func NewDeviceRegistry(st store.DeviceStore) *DeviceRegistry {
	return &DeviceRegistry{store: st}
}

// Resolve returns the device record for a commissioned device, or
// ErrUnknownDevice.  The caller treats this as a validation failure, not
// a domain denial.
func (r *DeviceRegistry) Resolve(ctx context.Context, deviceID string) (store.DeviceRecord, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return store.DeviceRecord{}, ErrInvalidDeviceID
	}

	rec, ok, err := r.store.Lookup(ctx, deviceID)
	if err != nil {
		return store.DeviceRecord{}, err
	}
	if !ok || !rec.Known {
		return store.DeviceRecord{}, ErrUnknownDevice
	}
	return rec, nil
}

// IsKnown reports whether the device is commissioned.  Used by the
// heartbeat path, which accepts traffic from unknown devices.
func (r *DeviceRegistry) IsKnown(ctx context.Context, deviceID string) (bool, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return false, nil
	}
	rec, ok, err := r.store.Lookup(ctx, deviceID)
	if err != nil {
		return false, err
	}
	return ok && rec.Known, nil
}

// NoteSeen stamps the device's last-seen time, creating a placeholder row
// for devices that have never been registered.
func (r *DeviceRegistry) NoteSeen(ctx context.Context, deviceID string) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}
	return r.store.MarkSeen(ctx, deviceID, time.Now().UTC())
}
