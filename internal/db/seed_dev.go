package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SeedDevOptions struct {
	// TenantID stamps all seeded rows.  Defaults to "dev".
	TenantID string
}

// SeedDev inserts a minimal working site: one location, a bounded zone, a
// commissioned turnstile, and a member with an active card.  Idempotent,
// dev environments only.
func SeedDev(ctx context.Context, conn *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	tenant := opt.TenantID
	if tenant == "" {
		tenant = "dev"
	}

	if _, err := conn.ExecContext(ctx, `
INSERT OR IGNORE INTO locations(location_id, tenant_id, name, created_at_ms, updated_at_ms)
VALUES ('loc_main', ?, 'Main Gym', ?, ?);`, tenant, now, now); err != nil {
		return fmt.Errorf("seed locations: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `
INSERT OR IGNORE INTO zones(zone_id, location_id, name, max_occupancy, gender_policy, active, created_at_ms, updated_at_ms)
VALUES ('zone_floor', 'loc_main', 'Training Floor', 50, 'MIXED', 1, ?, ?);`, now, now); err != nil {
		return fmt.Errorf("seed zones: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `
INSERT INTO devices(
  device_id, tenant_id, location_id, zone_id, display_name,
  enabled, commissioned_at_ms, created_at_ms, updated_at_ms
) VALUES ('turnstile-001', ?, 'loc_main', 'zone_floor', 'Front Turnstile', 1, ?, ?, ?)
ON CONFLICT(device_id) DO UPDATE SET
  location_id = excluded.location_id,
  zone_id = excluded.zone_id,
  display_name = excluded.display_name,
  enabled = 1,
  commissioned_at_ms = COALESCE(devices.commissioned_at_ms, excluded.commissioned_at_ms),
  updated_at_ms = excluded.updated_at_ms;
`, tenant, now, now, now); err != nil {
		return fmt.Errorf("seed device turnstile-001: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `
INSERT OR IGNORE INTO plans(plan_id, name) VALUES ('plan_standard', 'Standard');`); err != nil {
		return fmt.Errorf("seed plans: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `
INSERT OR IGNORE INTO members(member_id, gender, plan_id, active, created_at_ms, updated_at_ms)
VALUES ('member-001', 'FEMALE', 'plan_standard', 1, ?, ?);`, now, now); err != nil {
		return fmt.Errorf("seed members: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `
INSERT OR IGNORE INTO cards(card_id, card_number, facility_code, status, member_id, created_at_ms, updated_at_ms)
VALUES ('card-001', 'AABBCCDD', '42', 'ACTIVE', 'member-001', ?, ?);`, now, now); err != nil {
		return fmt.Errorf("seed cards: %w", err)
	}

	// Closed from 22:00 to midnight every day; everything else stays
	// default-open.
	if _, err := conn.ExecContext(ctx, `
INSERT OR IGNORE INTO time_rules(
  rule_id, zone_id, days, start_min, end_min, access_type, priority, active
) VALUES ('rule_closed_night', 'zone_floor', 127, 1320, 1440, 'DENY', 10, 1);`); err != nil {
		return fmt.Errorf("seed time_rules: %w", err)
	}

	return nil
}
