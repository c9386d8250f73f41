package store

import (
	"context"
	"time"

	"github.com/accessdeck/zonegate/internal/zonegate/types"
)

// DeviceRecord describes a registered access-control device (turnstile,
// door reader) and its placement.  Known follows the commissioning rule:
// enabled, commissioned, and not revoked.
type DeviceRecord struct {
	DeviceID   string
	TenantID   string
	LocationID string
	ZoneID     *string
	Known      bool
	LastSeen   time.Time
}

type DeviceStore interface {
	Lookup(ctx context.Context, deviceID string) (DeviceRecord, bool, error)
	MarkSeen(ctx context.Context, deviceID string, t time.Time) error
}

type CardRecord struct {
	CardID       string
	Number       string
	FacilityCode string
	Status       types.CardStatus
	ExpiresAt    *time.Time
	MemberID     string
}

type MemberRecord struct {
	MemberID string
	Gender   types.Gender
	PlanID   *string
	Active   bool
}

// CredentialStore resolves presented credentials to issued cards and
// their owning members.  Biometric matching has already reduced a sample
// to a card number upstream, so every method funnels through FindCard.
type CredentialStore interface {
	FindCard(ctx context.Context, number string) (CardRecord, bool, error)
	Member(ctx context.Context, memberID string) (MemberRecord, bool, error)
	TouchLastUsed(ctx context.Context, cardID string, t time.Time) error
}

type ZoneRecord struct {
	ZoneID       string
	LocationID   string
	Name         string
	MaxOccupancy *int // nil = unlimited
	GenderPolicy types.GenderPolicy
	Active       bool
}

type TimeRuleRecord struct {
	RuleID     string
	ZoneID     *string // nil = any zone
	PlanID     *string // nil = any plan
	MemberID   *string // nil = any member
	Days       types.DaySet
	StartMin   int // minutes since midnight, inclusive
	EndMin     int // exclusive
	Access     types.AccessType
	Priority   int
	ValidFrom  *time.Time
	ValidUntil *time.Time
	Active     bool
}

type GenderScheduleRecord struct {
	ScheduleID string
	LocationID string
	Day        time.Weekday
	StartMin   int
	EndMin     int
	Gender     types.Gender
}

// TimeRuleScope narrows the rule query to rules whose scope fields are
// either wildcard (NULL) or equal to the given ids.  Empty string fields
// match only wildcard rules.
type TimeRuleScope struct {
	ZoneID   string
	PlanID   string
	MemberID string
}

type RuleStore interface {
	Zone(ctx context.Context, zoneID string) (ZoneRecord, bool, error)
	ActiveTimeRules(ctx context.Context, scope TimeRuleScope) ([]TimeRuleRecord, error)
	GenderSchedules(ctx context.Context, locationID string, day time.Weekday) ([]GenderScheduleRecord, error)
}

// AccessLogRecord is one immutable audit entry.  Exactly one is written
// per decision, grant or deny.
type AccessLogRecord struct {
	EntryID        string
	TenantID       string
	DeviceID       string
	ZoneID         *string
	MemberID       *string
	CredentialID   *string
	Method         types.AccessMethod
	Direction      types.Direction
	Granted        bool
	DenialReason   types.DenialReason
	Confidence     *float64
	IdempotencyKey string
	OccurredAt     time.Time
}

// AccessLogStore is an append-only audit log.  Append must tolerate a
// replayed idempotency key without creating a second row.
type AccessLogStore interface {
	Append(ctx context.Context, rec AccessLogRecord) error
	FindByIdempotencyKey(ctx context.Context, key string) (AccessLogRecord, bool, error)
}

type MemberLocationRecord struct {
	MemberID  string
	ZoneID    string
	EnteredAt time.Time
}

type MemberLocationStore interface {
	SetLocation(ctx context.Context, memberID, zoneID string, t time.Time) error
	ClearLocation(ctx context.Context, memberID string) error
	LocationOf(ctx context.Context, memberID string) (MemberLocationRecord, bool, error)
	MembersInZone(ctx context.Context, zoneID string) ([]string, error)
}

type HeartbeatRecord struct {
	ReceivedAt time.Time
	Request    types.HeartbeatRequest
}

type HeartbeatStore interface {
	UpsertHeartbeat(ctx context.Context, deviceID string, rec HeartbeatRecord) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
