package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/accessdeck/zonegate/internal/db"
	"github.com/accessdeck/zonegate/internal/zonegate/store"
)

type DeviceStore struct {
	db     *sql.DB
	writer *dbpkg.Writer
}

func NewDeviceStore(db *sql.DB, writer *dbpkg.Writer) *DeviceStore {
	return &DeviceStore{db: db, writer: writer}
}

// Lookup treats "known" as commissioned + enabled + not revoked, the same
// rule an admin provisioning flow enforces.
func (s *DeviceStore) Lookup(ctx context.Context, deviceID string) (store.DeviceRecord, bool, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return store.DeviceRecord{}, false, nil
	}

	var (
		tenantID     string
		locationID   sql.NullString
		zoneID       sql.NullString
		enabled      int
		commissioned sql.NullInt64
		revoked      sql.NullInt64
		lastSeen     sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx, `
SELECT tenant_id, location_id, zone_id, enabled, commissioned_at_ms, revoked_at_ms, last_seen_at_ms
FROM devices
WHERE device_id = ?;
`, deviceID).Scan(&tenantID, &locationID, &zoneID, &enabled, &commissioned, &revoked, &lastSeen)

	if err == sql.ErrNoRows {
		return store.DeviceRecord{}, false, nil
	}
	if err != nil {
		return store.DeviceRecord{}, false, fmt.Errorf("Lookup query: %w", err)
	}

	rec := store.DeviceRecord{
		DeviceID:   deviceID,
		TenantID:   tenantID,
		LocationID: locationID.String,
		Known:      enabled == 1 && commissioned.Valid && !revoked.Valid,
	}
	if zoneID.Valid {
		z := zoneID.String
		rec.ZoneID = &z
	}
	if lastSeen.Valid {
		rec.LastSeen = time.UnixMilli(lastSeen.Int64).UTC()
	}
	return rec, true, nil
}

// MarkSeen ensures a device row exists (even if unregistered) and stamps
// last_seen.  Unknown devices start disabled/uncommissioned.
func (s *DeviceStore) MarkSeen(ctx context.Context, deviceID string, t time.Time) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO devices(
  device_id, enabled, created_at_ms, updated_at_ms
) VALUES (?, 0, ?, ?);
`, deviceID, ms, ms); err != nil {
			return fmt.Errorf("MarkSeen insert device: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE devices
SET last_seen_at_ms = ?,
    updated_at_ms   = ?
WHERE device_id = ?;
`, ms, ms, deviceID); err != nil {
			return fmt.Errorf("MarkSeen update device: %w", err)
		}

		return nil
	})
}
