package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessdeck/zonegate/internal/zonegate/service"
	"github.com/accessdeck/zonegate/internal/zonegate/store"
	"github.com/accessdeck/zonegate/internal/zonegate/store/memory"
	"github.com/accessdeck/zonegate/internal/zonegate/types"
)

func zoneWithPolicy(policy types.GenderPolicy) store.ZoneRecord {
	return store.ZoneRecord{
		ZoneID:       "zone-1",
		LocationID:   "loc-1",
		Name:         "Training Floor",
		GenderPolicy: policy,
		Active:       true,
	}
}

func TestGenderPolicy_Mixed_AllowsEveryone(t *testing.T) {
	e := service.NewGenderPolicyEvaluator(memory.NewRuleStore(nil))
	zone := zoneWithPolicy(types.PolicyMixed)

	for _, g := range []types.Gender{types.GenderMale, types.GenderFemale, types.GenderUnspecified} {
		allowed, err := e.Evaluate(context.Background(), zone, g, monday0930)
		require.NoError(t, err)
		assert.True(t, allowed, "gender %s", g)
	}
}

func TestGenderPolicy_SingleGenderZones(t *testing.T) {
	e := service.NewGenderPolicyEvaluator(memory.NewRuleStore(nil))

	cases := []struct {
		policy  types.GenderPolicy
		gender  types.Gender
		allowed bool
	}{
		{types.PolicyMaleOnly, types.GenderMale, true},
		{types.PolicyMaleOnly, types.GenderFemale, false},
		{types.PolicyMaleOnly, types.GenderUnspecified, false},
		{types.PolicyFemaleOnly, types.GenderFemale, true},
		{types.PolicyFemaleOnly, types.GenderMale, false},
	}

	for _, tc := range cases {
		allowed, err := e.Evaluate(context.Background(), zoneWithPolicy(tc.policy), tc.gender, monday0930)
		require.NoError(t, err)
		assert.Equal(t, tc.allowed, allowed, "%s / %s", tc.policy, tc.gender)
	}
}

func TestGenderPolicy_TimeBased_MatchingWindow(t *testing.T) {
	rules := memory.NewRuleStore(nil)
	rules.AddGenderSchedule(store.GenderScheduleRecord{
		ScheduleID: "sched-1",
		LocationID: "loc-1",
		Day:        time.Monday,
		StartMin:   9 * 60,
		EndMin:     11 * 60,
		Gender:     types.GenderFemale,
	})
	e := service.NewGenderPolicyEvaluator(rules)
	zone := zoneWithPolicy(types.PolicyTimeBased)

	allowed, err := e.Evaluate(context.Background(), zone, types.GenderFemale, monday0930)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = e.Evaluate(context.Background(), zone, types.GenderMale, monday0930)
	require.NoError(t, err)
	assert.False(t, allowed, "male denied during a female-only window")
}

func TestGenderPolicy_TimeBased_NoWindowFallsBackToMixed(t *testing.T) {
	rules := memory.NewRuleStore(nil)
	// A window that does not cover 09:30.
	rules.AddGenderSchedule(store.GenderScheduleRecord{
		ScheduleID: "sched-1",
		LocationID: "loc-1",
		Day:        time.Monday,
		StartMin:   18 * 60,
		EndMin:     20 * 60,
		Gender:     types.GenderFemale,
	})
	e := service.NewGenderPolicyEvaluator(rules)
	zone := zoneWithPolicy(types.PolicyTimeBased)

	for _, g := range []types.Gender{types.GenderMale, types.GenderFemale} {
		allowed, err := e.Evaluate(context.Background(), zone, g, monday0930)
		require.NoError(t, err)
		assert.True(t, allowed, "no matching window behaves as MIXED (gender %s)", g)
	}
}

func TestGenderPolicy_TimeBased_OtherDayIgnored(t *testing.T) {
	rules := memory.NewRuleStore(nil)
	rules.AddGenderSchedule(store.GenderScheduleRecord{
		ScheduleID: "sched-1",
		LocationID: "loc-1",
		Day:        time.Tuesday,
		StartMin:   0,
		EndMin:     24 * 60,
		Gender:     types.GenderFemale,
	})
	e := service.NewGenderPolicyEvaluator(rules)

	allowed, err := e.Evaluate(context.Background(), zoneWithPolicy(types.PolicyTimeBased), types.GenderMale, monday0930)
	require.NoError(t, err)
	assert.True(t, allowed)
}
