package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessdeck/zonegate/internal/zonegate/occupancy"
	"github.com/accessdeck/zonegate/internal/zonegate/service"
	"github.com/accessdeck/zonegate/internal/zonegate/store"
	"github.com/accessdeck/zonegate/internal/zonegate/store/memory"
	"github.com/accessdeck/zonegate/internal/zonegate/types"
)

func intPtr(n int) *int { return &n }

// fixture wires the full engine dependency graph over in-memory stores so
// tests can inspect every side effect of a decision.
type fixture struct {
	engine    *service.AccessDecisionEngine
	logs      *memory.AccessLogStore
	tracker   *occupancy.MemoryTracker
	creds     *memory.CredentialStore
	rules     *memory.RuleStore
	locations *service.MemberLocationTracker
	now       time.Time
}

type fixtureOpts struct {
	maxOccupancy *int
	genderPolicy types.GenderPolicy
	cardStatus   types.CardStatus
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()

	if opts.genderPolicy == "" {
		opts.genderPolicy = types.PolicyMixed
	}
	if opts.cardStatus == "" {
		opts.cardStatus = types.CardActive
	}

	zoneID := "zone-1"
	devices := memory.NewDeviceStore([]store.DeviceRecord{{
		DeviceID:   "turnstile-1",
		TenantID:   "tenant-1",
		LocationID: "loc-1",
		ZoneID:     &zoneID,
		Known:      true,
	}})

	creds := memory.NewCredentialStore(
		[]store.CardRecord{
			{
				CardID:   "card-1",
				Number:   "AABBCCDD",
				Status:   opts.cardStatus,
				MemberID: "member-1",
			},
			{
				CardID:   "card-2",
				Number:   "EEFF0011",
				Status:   types.CardActive,
				MemberID: "member-2",
			},
		},
		[]store.MemberRecord{
			{
				MemberID: "member-1",
				Gender:   types.GenderFemale,
				Active:   true,
			},
			{
				MemberID: "member-2",
				Gender:   types.GenderMale,
				Active:   true,
			},
		},
	)

	rules := memory.NewRuleStore([]store.ZoneRecord{{
		ZoneID:       zoneID,
		LocationID:   "loc-1",
		Name:         "Training Floor",
		MaxOccupancy: opts.maxOccupancy,
		GenderPolicy: opts.genderPolicy,
		Active:       true,
	}})

	logs := memory.NewAccessLogStore()
	tracker := occupancy.NewMemoryTracker()
	locations := service.NewMemberLocationTracker(memory.NewMemberLocationStore())
	registry := service.NewDeviceRegistry(devices)

	now := monday0930

	engine := service.NewAccessDecisionEngine(service.EngineDeps{
		Registry:    registry,
		Resolver:    service.NewCredentialResolver(creds),
		TimeRules:   service.NewTimeRuleEvaluator(rules),
		Gender:      service.NewGenderPolicyEvaluator(rules),
		Occupancy:   tracker,
		Locations:   locations,
		Credentials: creds,
		Rules:       rules,
		AccessLog:   logs,
		Now:         func() time.Time { return now },
	})

	return &fixture{
		engine:    engine,
		logs:      logs,
		tracker:   tracker,
		creds:     creds,
		rules:     rules,
		locations: locations,
		now:       now,
	}
}

func entryRequest() types.AccessRequest {
	return types.AccessRequest{
		DeviceID:     "turnstile-1",
		Credential:   "AABBCCDD",
		AccessMethod: types.MethodRFID,
		Direction:    types.DirectionEntry,
	}
}

func exitRequest() types.AccessRequest {
	r := entryRequest()
	r.Direction = types.DirectionExit
	return r
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.tracker.Count(context.Background(), "zone-1")
	require.NoError(t, err)
	return n
}

func TestDecide_Grant_RecordsEverything(t *testing.T) {
	f := newFixture(t, fixtureOpts{maxOccupancy: intPtr(10)})

	dec, err := f.engine.Decide(context.Background(), entryRequest())
	require.NoError(t, err)

	assert.True(t, dec.Granted)
	assert.Equal(t, types.DenialNone, dec.Reason)
	assert.NotEmpty(t, dec.LogEntryID)

	assert.Equal(t, 1, f.count(t))

	loc, ok, err := f.locations.LocationOf(context.Background(), "member-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "zone-1", loc.ZoneID)

	_, stamped := f.creds.LastUsed("card-1")
	assert.True(t, stamped, "grant must stamp the card's last-used time")

	entries := f.logs.Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Granted)
	assert.Equal(t, "tenant-1", entries[0].TenantID)
	require.NotNil(t, entries[0].MemberID)
	assert.Equal(t, "member-1", *entries[0].MemberID)
}

func TestDecide_UnknownCard_DeniedAndLogged(t *testing.T) {
	f := newFixture(t, fixtureOpts{maxOccupancy: intPtr(10)})

	req := entryRequest()
	req.Credential = "UNKNOWN"

	dec, err := f.engine.Decide(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, dec.Granted)
	assert.Equal(t, types.DenialUnknownCredential, dec.Reason)
	assert.Equal(t, 0, f.count(t), "occupancy must be untouched")

	entries := f.logs.Entries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Granted)
	assert.Equal(t, types.DenialUnknownCredential, entries[0].DenialReason)
}

func TestDecide_CardStatusDenials(t *testing.T) {
	cases := []struct {
		status types.CardStatus
		want   types.DenialReason
	}{
		{types.CardSuspended, types.DenialSuspendedCard},
		{types.CardExpired, types.DenialExpiredMembership},
		{types.CardLost, types.DenialInvalidCard},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			f := newFixture(t, fixtureOpts{cardStatus: tc.status})

			dec, err := f.engine.Decide(context.Background(), entryRequest())
			require.NoError(t, err)

			assert.False(t, dec.Granted)
			assert.Equal(t, tc.want, dec.Reason)
			assert.Equal(t, 0, f.count(t))
			assert.Len(t, f.logs.Entries(), 1)
		})
	}
}

func TestDecide_UnknownDevice_IsErrorNotDenial(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	req := entryRequest()
	req.DeviceID = "ghost-device"

	_, err := f.engine.Decide(context.Background(), req)
	assert.ErrorIs(t, err, service.ErrUnknownDevice)
}

func TestDecide_CapacityFull(t *testing.T) {
	f := newFixture(t, fixtureOpts{maxOccupancy: intPtr(1)})

	dec, err := f.engine.Decide(context.Background(), entryRequest())
	require.NoError(t, err)
	require.True(t, dec.Granted)

	// A second member hits the zone at capacity.
	req := entryRequest()
	req.Credential = "EEFF0011"

	dec2, err := f.engine.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, dec2.Granted)
	assert.Equal(t, types.DenialCapacityFull, dec2.Reason)
	assert.Equal(t, 1, f.count(t))
	assert.Len(t, f.logs.Entries(), 2)
}

func TestDecide_ReplayedEvent_ReturnsRecordedOutcome(t *testing.T) {
	f := newFixture(t, fixtureOpts{maxOccupancy: intPtr(1)})

	dec, err := f.engine.Decide(context.Background(), entryRequest())
	require.NoError(t, err)
	require.True(t, dec.Granted)

	// Same device, credential, direction, and clock: same idempotency
	// key, so the recorded outcome replays without new side effects.
	dec2, err := f.engine.Decide(context.Background(), entryRequest())
	require.NoError(t, err)
	assert.True(t, dec2.Granted)
	assert.Equal(t, dec.LogEntryID, dec2.LogEntryID)
	assert.Equal(t, 1, f.count(t), "replay must not double-admit")
	assert.Len(t, f.logs.Entries(), 1, "replay must not duplicate audit history")
}

func TestDecide_ConcurrentEntries_NeverOverAdmit(t *testing.T) {
	zoneID := "zone-1"
	devices := memory.NewDeviceStore([]store.DeviceRecord{{
		DeviceID: "turnstile-1", TenantID: "tenant-1", LocationID: "loc-1",
		ZoneID: &zoneID, Known: true,
	}})

	// Ten members, ten cards, one slot.
	var cards []store.CardRecord
	var members []store.MemberRecord
	numbers := make([]string, 10)
	for i := 0; i < 10; i++ {
		n := string(rune('A'+i)) + "-CARD"
		numbers[i] = n
		cards = append(cards, store.CardRecord{
			CardID: "card-" + n, Number: n, Status: types.CardActive, MemberID: "member-" + n,
		})
		members = append(members, store.MemberRecord{
			MemberID: "member-" + n, Gender: types.GenderFemale, Active: true,
		})
	}
	creds := memory.NewCredentialStore(cards, members)

	rules := memory.NewRuleStore([]store.ZoneRecord{{
		ZoneID: zoneID, LocationID: "loc-1", Name: "Sauna",
		MaxOccupancy: intPtr(1), GenderPolicy: types.PolicyMixed, Active: true,
	}})

	logs := memory.NewAccessLogStore()
	tracker := occupancy.NewMemoryTracker()
	engine := service.NewAccessDecisionEngine(service.EngineDeps{
		Registry:    service.NewDeviceRegistry(devices),
		Resolver:    service.NewCredentialResolver(creds),
		TimeRules:   service.NewTimeRuleEvaluator(rules),
		Gender:      service.NewGenderPolicyEvaluator(rules),
		Occupancy:   tracker,
		Locations:   service.NewMemberLocationTracker(memory.NewMemberLocationStore()),
		Credentials: creds,
		Rules:       rules,
		AccessLog:   logs,
		Now:         func() time.Time { return monday0930 },
	})

	var wg sync.WaitGroup
	results := make([]types.Decision, 10)
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = engine.Decide(context.Background(), types.AccessRequest{
				DeviceID:     "turnstile-1",
				Credential:   numbers[i],
				AccessMethod: types.MethodRFID,
				Direction:    types.DirectionEntry,
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "request %d", i)
	}

	granted := 0
	for _, dec := range results {
		if dec.Granted {
			granted++
		} else {
			assert.Equal(t, types.DenialCapacityFull, dec.Reason)
		}
	}
	assert.Equal(t, 1, granted, "exactly one entry wins the single slot")

	n, err := tracker.Count(context.Background(), zoneID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, logs.Entries(), 10, "every decision is audited")
}

func TestDecide_GenderRestricted(t *testing.T) {
	f := newFixture(t, fixtureOpts{genderPolicy: types.PolicyMaleOnly, maxOccupancy: intPtr(5)})

	dec, err := f.engine.Decide(context.Background(), entryRequest())
	require.NoError(t, err)

	assert.False(t, dec.Granted)
	assert.Equal(t, types.DenialGenderRestricted, dec.Reason)
	assert.Equal(t, 0, f.count(t), "a gender-refused member never takes a capacity slot")
	assert.Len(t, f.logs.Entries(), 1)
}

func TestDecide_TimeRestricted_ReleasesReservedSlot(t *testing.T) {
	f := newFixture(t, fixtureOpts{maxOccupancy: intPtr(5)})
	f.rules.AddTimeRule(store.TimeRuleRecord{
		RuleID:   "deny-now",
		Days:     types.Days(time.Monday),
		StartMin: 0,
		EndMin:   24 * 60,
		Access:   types.AccessDeny,
		Priority: 5,
		Active:   true,
	})

	dec, err := f.engine.Decide(context.Background(), entryRequest())
	require.NoError(t, err)

	assert.False(t, dec.Granted)
	assert.Equal(t, types.DenialTimeRestricted, dec.Reason)
	assert.Equal(t, 0, f.count(t), "the compensating release must return the reserved slot")
	assert.Len(t, f.logs.Entries(), 1)
}

func TestDecide_ExitClearsStateAndFloorsAtZero(t *testing.T) {
	f := newFixture(t, fixtureOpts{maxOccupancy: intPtr(5)})

	// Enter, then exit.
	dec, err := f.engine.Decide(context.Background(), entryRequest())
	require.NoError(t, err)
	require.True(t, dec.Granted)
	require.Equal(t, 1, f.count(t))

	dec, err = f.engine.Decide(context.Background(), exitRequest())
	require.NoError(t, err)
	require.True(t, dec.Granted)
	assert.Equal(t, 0, f.count(t))

	_, ok, err := f.locations.LocationOf(context.Background(), "member-1")
	require.NoError(t, err)
	assert.False(t, ok, "exit clears the member's location")

	assert.Len(t, f.logs.Entries(), 2)
}

func TestDecide_DuplicateExitDoesNotGoNegative(t *testing.T) {
	f := newFixture(t, fixtureOpts{maxOccupancy: intPtr(5)})

	// Exit without a matching entry: the counter floor holds at zero.
	dec, err := f.engine.Decide(context.Background(), exitRequest())
	require.NoError(t, err)
	assert.True(t, dec.Granted)
	assert.Equal(t, 0, f.count(t))
}

func TestDecide_UnlimitedZoneStillCounts(t *testing.T) {
	f := newFixture(t, fixtureOpts{}) // nil maxOccupancy

	dec, err := f.engine.Decide(context.Background(), entryRequest())
	require.NoError(t, err)
	assert.True(t, dec.Granted)
	assert.Equal(t, 1, f.count(t), "unbounded zones still keep a count for dashboards")
}

func TestDecide_EveryOutcomeWritesExactlyOneEntry(t *testing.T) {
	f := newFixture(t, fixtureOpts{genderPolicy: types.PolicyMaleOnly})

	// A denial...
	_, err := f.engine.Decide(context.Background(), entryRequest())
	require.NoError(t, err)

	// ...and an unknown credential.
	req := entryRequest()
	req.Credential = "NOPE"
	_, err = f.engine.Decide(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, f.logs.Entries(), 2)
}
