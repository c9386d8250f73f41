package types

import "time"

// AccessMethod identifies how a credential was presented at a device.
type AccessMethod string

const (
	MethodRFID      AccessMethod = "RFID"
	MethodBiometric AccessMethod = "BIOMETRIC"
	MethodPIN       AccessMethod = "PIN"
	MethodManual    AccessMethod = "MANUAL"
)

// Direction is the side of the reader the member is moving through.
type Direction string

const (
	DirectionEntry Direction = "ENTRY"
	DirectionExit  Direction = "EXIT"
)

// CardStatus is the lifecycle state of an issued card.
type CardStatus string

const (
	CardActive    CardStatus = "ACTIVE"
	CardSuspended CardStatus = "SUSPENDED"
	CardExpired   CardStatus = "EXPIRED"
	CardLost      CardStatus = "LOST"
	CardRevoked   CardStatus = "REVOKED"
)

// Gender as recorded on the member profile.
type Gender string

const (
	GenderMale        Gender = "MALE"
	GenderFemale      Gender = "FEMALE"
	GenderUnspecified Gender = "UNSPECIFIED"
)

// GenderPolicy restricts who may enter a zone.
type GenderPolicy string

const (
	PolicyMixed      GenderPolicy = "MIXED"
	PolicyMaleOnly   GenderPolicy = "MALE_ONLY"
	PolicyFemaleOnly GenderPolicy = "FEMALE_ONLY"
	PolicyTimeBased  GenderPolicy = "TIME_BASED"
)

// AccessType is the effect of a matching time rule.
type AccessType string

const (
	AccessAllow AccessType = "ALLOW"
	AccessDeny  AccessType = "DENY"
)

// DenialReason enumerates why an access request was refused.  The empty
// string means "not denied".
type DenialReason string

const (
	DenialNone              DenialReason = ""
	DenialUnknownCredential DenialReason = "UNKNOWN_CREDENTIAL"
	DenialSuspendedCard     DenialReason = "SUSPENDED_CARD"
	DenialExpiredMembership DenialReason = "EXPIRED_MEMBERSHIP"
	DenialInvalidCard       DenialReason = "INVALID_CARD"
	DenialCapacityFull      DenialReason = "CAPACITY_FULL"
	DenialTimeRestricted    DenialReason = "TIME_RESTRICTED"
	DenialGenderRestricted  DenialReason = "GENDER_RESTRICTED"
)

// DaySet is a bitmask of weekdays, bit n = time.Weekday(n).
type DaySet uint8

// Days builds a DaySet from the given weekdays.
func Days(ws ...time.Weekday) DaySet {
	var d DaySet
	for _, w := range ws {
		d |= 1 << uint(w)
	}
	return d
}

func (d DaySet) Has(w time.Weekday) bool {
	return d&(1<<uint(w)) != 0
}

// MinuteOfDay returns minutes since local midnight for t.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
