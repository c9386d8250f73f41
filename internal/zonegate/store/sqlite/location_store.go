package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/accessdeck/zonegate/internal/db"
	"github.com/accessdeck/zonegate/internal/zonegate/store"
)

type MemberLocationStore struct {
	db     *sql.DB
	writer *dbpkg.Writer
}

func NewMemberLocationStore(db *sql.DB, writer *dbpkg.Writer) *MemberLocationStore {
	return &MemberLocationStore{db: db, writer: writer}
}

func (s *MemberLocationStore) SetLocation(ctx context.Context, memberID, zoneID string, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO member_locations(member_id, zone_id, entered_at_ms)
VALUES (?, ?, ?)
ON CONFLICT(member_id) DO UPDATE SET
  zone_id       = excluded.zone_id,
  entered_at_ms = excluded.entered_at_ms;
`, memberID, zoneID, ms); err != nil {
			return fmt.Errorf("SetLocation upsert: %w", err)
		}
		return nil
	})
}

func (s *MemberLocationStore) ClearLocation(ctx context.Context, memberID string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM member_locations WHERE member_id = ?;
`, memberID); err != nil {
			return fmt.Errorf("ClearLocation delete: %w", err)
		}
		return nil
	})
}

func (s *MemberLocationStore) LocationOf(ctx context.Context, memberID string) (store.MemberLocationRecord, bool, error) {
	var (
		rec       store.MemberLocationRecord
		enteredMs int64
	)

	err := s.db.QueryRowContext(ctx, `
SELECT member_id, zone_id, entered_at_ms
FROM member_locations
WHERE member_id = ?;
`, memberID).Scan(&rec.MemberID, &rec.ZoneID, &enteredMs)

	if err == sql.ErrNoRows {
		return store.MemberLocationRecord{}, false, nil
	}
	if err != nil {
		return store.MemberLocationRecord{}, false, fmt.Errorf("LocationOf query: %w", err)
	}

	rec.EnteredAt = time.UnixMilli(enteredMs).UTC()
	return rec, true, nil
}

func (s *MemberLocationStore) MembersInZone(ctx context.Context, zoneID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT member_id FROM member_locations WHERE zone_id = ? ORDER BY member_id;
`, zoneID)
	if err != nil {
		return nil, fmt.Errorf("MembersInZone query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("MembersInZone scan: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("MembersInZone rows: %w", err)
	}
	return out, nil
}
