package service

import (
	"context"
	"time"

	"github.com/accessdeck/zonegate/internal/zonegate/store"
	"github.com/accessdeck/zonegate/internal/zonegate/types"
)

// TimeRuleEvaluator decides whether time-of-day rules permit access at a
// given instant.  The policy is deny-wins: any matching DENY rule blocks
// access regardless of competing ALLOW rules; priority only selects which
// DENY rule is reported.  No matching DENY means access is allowed.
type TimeRuleEvaluator struct {
	rules store.RuleStore
}

func NewTimeRuleEvaluator(rules store.RuleStore) *TimeRuleEvaluator {
	return &TimeRuleEvaluator{rules: rules}
}

// Evaluate returns the effective access type for the scope at now, plus
// the governing rule when the result is DENY (nil otherwise).
func (e *TimeRuleEvaluator) Evaluate(
	ctx context.Context,
	zoneID, memberID, planID string,
	now time.Time,
) (types.AccessType, *store.TimeRuleRecord, error) {
	rules, err := e.rules.ActiveTimeRules(ctx, store.TimeRuleScope{
		ZoneID:   zoneID,
		PlanID:   planID,
		MemberID: memberID,
	})
	if err != nil {
		return types.AccessDeny, nil, err
	}

	var deny *store.TimeRuleRecord
	for i := range rules {
		r := &rules[i]
		if !ruleMatches(r, now) {
			continue
		}
		if r.Access != types.AccessDeny {
			continue
		}
		if deny == nil || r.Priority > deny.Priority {
			deny = r
		}
	}

	if deny != nil {
		return types.AccessDeny, deny, nil
	}
	return types.AccessAllow, nil, nil
}

// ruleMatches checks the rule's validity bounds, weekday set, and
// time-of-day window [start, end) against now.  Scope fields were already
// filtered by the store query.
func ruleMatches(r *store.TimeRuleRecord, now time.Time) bool {
	if !r.Active {
		return false
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && now.After(*r.ValidUntil) {
		return false
	}
	if !r.Days.Has(now.Weekday()) {
		return false
	}
	m := types.MinuteOfDay(now)
	return m >= r.StartMin && m < r.EndMin
}
