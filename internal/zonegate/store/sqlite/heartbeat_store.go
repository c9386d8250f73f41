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

type HeartbeatStore struct {
	db     *sql.DB
	writer *dbpkg.Writer
}

func NewHeartbeatStore(db *sql.DB, writer *dbpkg.Writer) *HeartbeatStore {
	return &HeartbeatStore{db: db, writer: writer}
}

// UpsertHeartbeat stores the device's latest heartbeat and refreshes the
// device row's last-seen stamp, creating a placeholder device row first
// so uncommissioned hardware still shows up for admins.
func (s *HeartbeatStore) UpsertHeartbeat(ctx context.Context, deviceID string, rec store.HeartbeatRecord) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}

	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	recvMs := rec.ReceivedAt.UTC().UnixMilli()

	var rssi any
	if rec.Request.RSSIDbm != nil {
		rssi = *rec.Request.RSSIDbm
	}
	var doorClosed any
	if rec.Request.DoorClosed != nil {
		if *rec.Request.DoorClosed {
			doorClosed = 1
		} else {
			doorClosed = 0
		}
	}
	var uptime any
	if rec.Request.UptimeSeconds != 0 {
		uptime = int64(rec.Request.UptimeSeconds)
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO devices(device_id, enabled, created_at_ms, updated_at_ms)
VALUES (?, 0, ?, ?);
`, deviceID, recvMs, recvMs); err != nil {
			return fmt.Errorf("UpsertHeartbeat ensure device: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO heartbeats(
  device_id, received_at_ms, firmware_version, uptime_s, ip, door_closed, rssi_dbm
) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(device_id) DO UPDATE SET
  received_at_ms   = excluded.received_at_ms,
  firmware_version = excluded.firmware_version,
  uptime_s         = excluded.uptime_s,
  ip               = excluded.ip,
  door_closed      = excluded.door_closed,
  rssi_dbm         = excluded.rssi_dbm;
`, deviceID, recvMs, strings.TrimSpace(rec.Request.FirmwareVersion), uptime,
			strings.TrimSpace(rec.Request.IP), doorClosed, rssi); err != nil {
			return fmt.Errorf("UpsertHeartbeat upsert: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE devices
SET last_seen_at_ms = ?,
    updated_at_ms   = ?
WHERE device_id = ?;
`, recvMs, recvMs, deviceID); err != nil {
			return fmt.Errorf("UpsertHeartbeat update device: %w", err)
		}

		return nil
	})
}

// PruneOlderThan deletes heartbeat rows received before the cutoff.
func (s *HeartbeatStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM heartbeats
WHERE received_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}
