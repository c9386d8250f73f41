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

type CredentialStore struct {
	db     *sql.DB
	writer *dbpkg.Writer
}

func NewCredentialStore(db *sql.DB, writer *dbpkg.Writer) *CredentialStore {
	return &CredentialStore{db: db, writer: writer}
}

func (s *CredentialStore) FindCard(ctx context.Context, number string) (store.CardRecord, bool, error) {
	var (
		rec       store.CardRecord
		status    string
		expiresMs sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx, `
SELECT card_id, card_number, facility_code, status, expires_at_ms, member_id
FROM cards
WHERE card_number = ?;
`, number).Scan(&rec.CardID, &rec.Number, &rec.FacilityCode, &status, &expiresMs, &rec.MemberID)

	if err == sql.ErrNoRows {
		return store.CardRecord{}, false, nil
	}
	if err != nil {
		return store.CardRecord{}, false, fmt.Errorf("FindCard query: %w", err)
	}

	rec.Status = types.CardStatus(status)
	if expiresMs.Valid {
		t := time.UnixMilli(expiresMs.Int64).UTC()
		rec.ExpiresAt = &t
	}
	return rec, true, nil
}

func (s *CredentialStore) Member(ctx context.Context, memberID string) (store.MemberRecord, bool, error) {
	var (
		rec    store.MemberRecord
		gender string
		planID sql.NullString
		active int
	)

	err := s.db.QueryRowContext(ctx, `
SELECT member_id, gender, plan_id, active
FROM members
WHERE member_id = ?;
`, memberID).Scan(&rec.MemberID, &gender, &planID, &active)

	if err == sql.ErrNoRows {
		return store.MemberRecord{}, false, nil
	}
	if err != nil {
		return store.MemberRecord{}, false, fmt.Errorf("Member query: %w", err)
	}

	rec.Gender = types.Gender(gender)
	rec.Active = active == 1
	if planID.Valid {
		p := planID.String
		rec.PlanID = &p
	}
	return rec, true, nil
}

func (s *CredentialStore) TouchLastUsed(ctx context.Context, cardID string, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
UPDATE cards
SET last_used_at_ms = ?,
    updated_at_ms   = ?
WHERE card_id = ?;
`, ms, ms, cardID); err != nil {
			return fmt.Errorf("TouchLastUsed: %w", err)
		}
		return nil
	})
}
