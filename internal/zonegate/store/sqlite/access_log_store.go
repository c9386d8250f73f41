package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/accessdeck/zonegate/internal/db"
	"github.com/accessdeck/zonegate/internal/zonegate/store"
	"github.com/accessdeck/zonegate/internal/zonegate/types"
)

type AccessLogStore struct {
	db     *sql.DB
	writer *dbpkg.Writer
}

func NewAccessLogStore(db *sql.DB, writer *dbpkg.Writer) *AccessLogStore {
	return &AccessLogStore{db: db, writer: writer}
}

// Append inserts the audit row.  A replayed idempotency key is a no-op:
// the unique index keeps the original row and the retry succeeds, which
// gives at-least-once log delivery without duplicate history.
func (s *AccessLogStore) Append(ctx context.Context, rec store.AccessLogRecord) error {
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}

	var denial any
	if rec.DenialReason != types.DenialNone {
		denial = string(rec.DenialReason)
	}

	var granted int
	if rec.Granted {
		granted = 1
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_events(
  entry_id, tenant_id, device_id, zone_id, member_id, credential_id,
  access_method, direction, granted, denial_reason, confidence,
  idempotency_key, occurred_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(idempotency_key) DO NOTHING;
`,
			rec.EntryID, rec.TenantID, rec.DeviceID,
			nullable(rec.ZoneID), nullable(rec.MemberID), nullable(rec.CredentialID),
			string(rec.Method), string(rec.Direction), granted, denial,
			nullableFloat(rec.Confidence), rec.IdempotencyKey,
			rec.OccurredAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("Append insert: %w", err)
		}
		return nil
	})
}

func (s *AccessLogStore) FindByIdempotencyKey(ctx context.Context, key string) (store.AccessLogRecord, bool, error) {
	var (
		rec        store.AccessLogRecord
		zoneID     sql.NullString
		memberID   sql.NullString
		credID     sql.NullString
		method     string
		direction  string
		granted    int
		denial     sql.NullString
		confidence sql.NullFloat64
		occurredMs int64
	)

	err := s.db.QueryRowContext(ctx, `
SELECT entry_id, tenant_id, device_id, zone_id, member_id, credential_id,
       access_method, direction, granted, denial_reason, confidence, occurred_at_ms
FROM access_events
WHERE idempotency_key = ?;
`, key).Scan(
		&rec.EntryID, &rec.TenantID, &rec.DeviceID, &zoneID, &memberID, &credID,
		&method, &direction, &granted, &denial, &confidence, &occurredMs,
	)

	if err == sql.ErrNoRows {
		return store.AccessLogRecord{}, false, nil
	}
	if err != nil {
		return store.AccessLogRecord{}, false, fmt.Errorf("FindByIdempotencyKey query: %w", err)
	}

	rec.Method = types.AccessMethod(method)
	rec.Direction = types.Direction(direction)
	rec.Granted = granted == 1
	rec.IdempotencyKey = key
	rec.OccurredAt = time.UnixMilli(occurredMs).UTC()
	if zoneID.Valid {
		v := zoneID.String
		rec.ZoneID = &v
	}
	if memberID.Valid {
		v := memberID.String
		rec.MemberID = &v
	}
	if credID.Valid {
		v := credID.String
		rec.CredentialID = &v
	}
	if denial.Valid {
		rec.DenialReason = types.DenialReason(denial.String)
	}
	if confidence.Valid {
		c := confidence.Float64
		rec.Confidence = &c
	}
	return rec, true, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
