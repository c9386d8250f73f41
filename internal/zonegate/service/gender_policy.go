package service

import (
	"context"
	"time"

	"github.com/accessdeck/zonegate/internal/zonegate/store"
	"github.com/accessdeck/zonegate/internal/zonegate/types"
)

// GenderPolicyEvaluator applies a zone's gender policy to a presented
// gender at a given instant.  Pure read; schedule overlap is enforced by
// the administering service at write time.
type GenderPolicyEvaluator struct {
	rules store.RuleStore
}

func NewGenderPolicyEvaluator(rules store.RuleStore) *GenderPolicyEvaluator {
	return &GenderPolicyEvaluator{rules: rules}
}

// Evaluate reports whether gender may enter the zone at now.
func (e *GenderPolicyEvaluator) Evaluate(
	ctx context.Context,
	zone store.ZoneRecord,
	gender types.Gender,
	now time.Time,
) (bool, error) {
	switch zone.GenderPolicy {
	case types.PolicyMixed, "":
		return true, nil
	case types.PolicyMaleOnly:
		return gender == types.GenderMale, nil
	case types.PolicyFemaleOnly:
		return gender == types.GenderFemale, nil
	case types.PolicyTimeBased:
		return e.evaluateScheduled(ctx, zone.LocationID, gender, now)
	default:
		// Unrecognized policy values behave as MIXED rather than locking
		// everyone out of a misconfigured zone.
		return true, nil
	}
}

// evaluateScheduled finds the schedule window covering now.  With no
// covering window the zone behaves as MIXED.
func (e *GenderPolicyEvaluator) evaluateScheduled(
	ctx context.Context,
	locationID string,
	gender types.Gender,
	now time.Time,
) (bool, error) {
	schedules, err := e.rules.GenderSchedules(ctx, locationID, now.Weekday())
	if err != nil {
		return false, err
	}

	m := types.MinuteOfDay(now)
	for _, s := range schedules {
		if m >= s.StartMin && m < s.EndMin {
			return gender == s.Gender, nil
		}
	}
	return true, nil
}
