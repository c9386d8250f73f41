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

type RuleStore struct {
	db     *sql.DB
	writer *dbpkg.Writer
}

func NewRuleStore(db *sql.DB, writer *dbpkg.Writer) *RuleStore {
	return &RuleStore{db: db, writer: writer}
}

func (s *RuleStore) Zone(ctx context.Context, zoneID string) (store.ZoneRecord, bool, error) {
	var (
		rec    store.ZoneRecord
		maxOcc sql.NullInt64
		policy string
		active int
	)

	err := s.db.QueryRowContext(ctx, `
SELECT zone_id, location_id, name, max_occupancy, gender_policy, active
FROM zones
WHERE zone_id = ?;
`, zoneID).Scan(&rec.ZoneID, &rec.LocationID, &rec.Name, &maxOcc, &policy, &active)

	if err == sql.ErrNoRows {
		return store.ZoneRecord{}, false, nil
	}
	if err != nil {
		return store.ZoneRecord{}, false, fmt.Errorf("Zone query: %w", err)
	}

	rec.GenderPolicy = types.GenderPolicy(policy)
	rec.Active = active == 1
	if maxOcc.Valid {
		n := int(maxOcc.Int64)
		rec.MaxOccupancy = &n
	}
	return rec, true, nil
}

// ActiveTimeRules returns active rules whose scope columns are either NULL
// (wildcard) or equal to the requested ids.  Validity bounds and windows
// are evaluated by the caller against its snapshot of now.
func (s *RuleStore) ActiveTimeRules(ctx context.Context, scope store.TimeRuleScope) ([]store.TimeRuleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT rule_id, zone_id, plan_id, member_id, days, start_min, end_min,
       access_type, priority, valid_from_ms, valid_until_ms, active
FROM time_rules
WHERE active = 1
  AND (zone_id   IS NULL OR zone_id   = ?)
  AND (plan_id   IS NULL OR plan_id   = ?)
  AND (member_id IS NULL OR member_id = ?);
`, scope.ZoneID, scope.PlanID, scope.MemberID)
	if err != nil {
		return nil, fmt.Errorf("ActiveTimeRules query: %w", err)
	}
	defer rows.Close()

	var out []store.TimeRuleRecord
	for rows.Next() {
		var (
			rec        store.TimeRuleRecord
			zoneID     sql.NullString
			planID     sql.NullString
			memberID   sql.NullString
			days       int64
			accessType string
			validFrom  sql.NullInt64
			validUntil sql.NullInt64
			active     int
		)
		if err := rows.Scan(
			&rec.RuleID, &zoneID, &planID, &memberID, &days,
			&rec.StartMin, &rec.EndMin, &accessType, &rec.Priority,
			&validFrom, &validUntil, &active,
		); err != nil {
			return nil, fmt.Errorf("ActiveTimeRules scan: %w", err)
		}

		rec.Days = types.DaySet(days)
		rec.Access = types.AccessType(accessType)
		rec.Active = active == 1
		if zoneID.Valid {
			v := zoneID.String
			rec.ZoneID = &v
		}
		if planID.Valid {
			v := planID.String
			rec.PlanID = &v
		}
		if memberID.Valid {
			v := memberID.String
			rec.MemberID = &v
		}
		if validFrom.Valid {
			t := time.UnixMilli(validFrom.Int64).UTC()
			rec.ValidFrom = &t
		}
		if validUntil.Valid {
			t := time.UnixMilli(validUntil.Int64).UTC()
			rec.ValidUntil = &t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ActiveTimeRules rows: %w", err)
	}
	return out, nil
}

func (s *RuleStore) GenderSchedules(ctx context.Context, locationID string, day time.Weekday) ([]store.GenderScheduleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT schedule_id, location_id, day_of_week, start_min, end_min, gender
FROM gender_schedules
WHERE location_id = ? AND day_of_week = ?;
`, locationID, int(day))
	if err != nil {
		return nil, fmt.Errorf("GenderSchedules query: %w", err)
	}
	defer rows.Close()

	var out []store.GenderScheduleRecord
	for rows.Next() {
		var (
			rec    store.GenderScheduleRecord
			dow    int
			gender string
		)
		if err := rows.Scan(&rec.ScheduleID, &rec.LocationID, &dow, &rec.StartMin, &rec.EndMin, &gender); err != nil {
			return nil, fmt.Errorf("GenderSchedules scan: %w", err)
		}
		rec.Day = time.Weekday(dow)
		rec.Gender = types.Gender(gender)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GenderSchedules rows: %w", err)
	}
	return out, nil
}
