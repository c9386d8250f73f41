package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/accessdeck/zonegate/internal/zonegate/occupancy"
	"github.com/accessdeck/zonegate/internal/zonegate/store"
	"github.com/accessdeck/zonegate/internal/zonegate/types"
)

// EngineConfig tunes the decision pipeline's failure posture.
type EngineConfig struct {
	// StepTimeout bounds each collaborator call (credential store, rule
	// store, occupancy backend).  0 disables the per-step timeout.
	StepTimeout time.Duration

	// FailOpen relaxes rule evaluation only: when the time-rule or
	// gender-schedule read fails, the check is skipped instead of the
	// whole request failing.  Identity and capacity never fail open.
	FailOpen bool

	// IdempotencyWindow is the timestamp bucket used to build the audit
	// idempotency key.  A retried event inside the same bucket replays
	// the recorded outcome instead of re-running the pipeline.
	IdempotencyWindow time.Duration
}

// EngineDeps collects the collaborators the engine orchestrates.
type EngineDeps struct {
	Registry    *DeviceRegistry
	Resolver    *CredentialResolver
	TimeRules   *TimeRuleEvaluator
	Gender      *GenderPolicyEvaluator
	Occupancy   occupancy.Tracker
	Locations   *MemberLocationTracker
	Credentials store.CredentialStore
	Rules       store.RuleStore
	AccessLog   store.AccessLogStore
	Logger      *zap.Logger
	Config      EngineConfig

	// Now overrides the engine clock.  Nil means time.Now in UTC.
	Now func() time.Time
}

// AccessDecisionEngine runs the per-event decision pipeline: credential
// validity, gender policy, zone capacity, and time rules, in that order,
// short-circuiting on the first refusal.  Every call writes exactly one
// audit entry, grant or deny.
type AccessDecisionEngine struct {
	registry  *DeviceRegistry
	resolver  *CredentialResolver
	timeRules *TimeRuleEvaluator
	gender    *GenderPolicyEvaluator
	occupancy occupancy.Tracker
	locations *MemberLocationTracker
	creds     store.CredentialStore
	rules     store.RuleStore
	log       store.AccessLogStore
	logger    *zap.Logger
	cfg       EngineConfig

	now func() time.Time
}

func NewAccessDecisionEngine(d EngineDeps) *AccessDecisionEngine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := d.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &AccessDecisionEngine{
		registry:  d.Registry,
		resolver:  d.Resolver,
		timeRules: d.TimeRules,
		gender:    d.Gender,
		occupancy: d.Occupancy,
		locations: d.Locations,
		creds:     d.Credentials,
		rules:     d.Rules,
		log:       d.AccessLog,
		logger:    logger,
		cfg:       d.Config,
		now:       now,
	}
}

// draft accumulates audit fields as the pipeline learns them.
type draft struct {
	tenantID     string
	deviceID     string
	zoneID       *string
	memberID     *string
	credentialID *string
	method       types.AccessMethod
	direction    types.Direction
	confidence   *float64
	key          string
	at           time.Time
}

// Decide runs the pipeline for one scan event.  Domain refusals come back
// as a Decision with a DenialReason; only validation failures (unknown
// device) and infrastructure failures are returned as errors.
func (e *AccessDecisionEngine) Decide(ctx context.Context, req types.AccessRequest) (types.Decision, error) {
	now := e.now()

	_ = e.registry.NoteSeen(ctx, req.DeviceID)

	device, err := e.resolveDevice(ctx, req.DeviceID)
	if err != nil {
		return types.Decision{}, err
	}

	d := draft{
		tenantID:   device.TenantID,
		deviceID:   device.DeviceID,
		zoneID:     device.ZoneID,
		method:     req.AccessMethod,
		direction:  req.Direction,
		confidence: req.ConfidenceScore,
		key:        e.idempotencyKey(req, now),
		at:         now,
	}

	// Replay detection: a retried event inside the same idempotency
	// bucket returns the recorded outcome without mutating anything.
	if prior, ok := e.priorOutcome(ctx, d.key); ok {
		return prior, nil
	}

	// Step 2: credential resolution and validity.
	identity, reason, err := e.resolveCredential(ctx, &d, req, now)
	if err != nil {
		return types.Decision{}, err
	}
	if _, unresolved := identity.(Unresolved); unresolved {
		return e.finish(ctx, &d, false, types.DenialUnknownCredential)
	}
	if reason != types.DenialNone {
		return e.finish(ctx, &d, false, reason)
	}

	memberID := *d.memberID
	member, ok, err := e.member(ctx, memberID)
	if err != nil {
		return types.Decision{}, err
	}
	if !ok || !member.Active {
		// A card pointing at a missing or deactivated member is an
		// invalid credential, not a system fault.
		return e.finish(ctx, &d, false, types.DenialInvalidCard)
	}

	zone, err := e.zone(ctx, device)
	if err != nil {
		return types.Decision{}, err
	}

	entering := req.Direction == types.DirectionEntry
	governed := zone != nil && zone.Active
	admitted := false

	// Step 3: gender policy, entry only, before a capacity slot is taken
	// so a refused member never holds one.
	if entering && governed {
		allowed, err := e.checkGender(ctx, *zone, member.Gender, now)
		if err != nil {
			return types.Decision{}, err
		}
		if !allowed {
			return e.finish(ctx, &d, false, types.DenialGenderRestricted)
		}
	}

	// Step 4: capacity.
	if entering && governed {
		ok, err := e.tryAdmit(ctx, *zone)
		if err != nil {
			return types.Decision{}, err
		}
		if !ok {
			return e.finish(ctx, &d, false, types.DenialCapacityFull)
		}
		admitted = true
	}

	// Step 5: time rules.  The capacity slot reserved above is released
	// on any refusal or failure from here on.
	access, denyRule, err := e.checkTimeRules(ctx, device, memberID, member.PlanID, now)
	if err != nil {
		e.compensate(ctx, admitted, zone)
		return types.Decision{}, err
	}
	if access == types.AccessDeny {
		e.compensate(ctx, admitted, zone)
		if denyRule != nil {
			e.logger.Debug("time rule denied access",
				zap.String("rule_id", denyRule.RuleID),
				zap.Int("priority", denyRule.Priority),
				zap.String("member_id", memberID),
			)
		}
		return e.finish(ctx, &d, false, types.DenialTimeRestricted)
	}

	// Step 6: grant side effects.
	if err := e.applyGrant(ctx, req.Direction, zone, memberID, *d.credentialID, now); err != nil {
		e.compensate(ctx, admitted, zone)
		return types.Decision{}, err
	}

	dec, err := e.finish(ctx, &d, true, types.DenialNone)
	if err != nil {
		// The grant was applied but its audit write failed.  Roll the
		// occupancy and location mutations back before surfacing the
		// error so a retry starts from a clean slate.
		if entering && admitted {
			e.compensate(ctx, admitted, zone)
			if err2 := e.locations.Exit(ctx, memberID); err2 != nil {
				e.logger.Error("rollback of member location failed",
					zap.String("member_id", memberID), zap.Error(err2))
			}
		}
		return types.Decision{}, err
	}
	return dec, nil
}

func (e *AccessDecisionEngine) resolveDevice(ctx context.Context, deviceID string) (store.DeviceRecord, error) {
	sctx, cancel := e.stepCtx(ctx)
	defer cancel()
	return e.registry.Resolve(sctx, deviceID)
}

func (e *AccessDecisionEngine) priorOutcome(ctx context.Context, key string) (types.Decision, bool) {
	sctx, cancel := e.stepCtx(ctx)
	defer cancel()

	prior, ok, err := e.log.FindByIdempotencyKey(sctx, key)
	if err != nil {
		// At-least-once posture: a failed replay lookup falls through to
		// a fresh evaluation; the log's unique key still dedups the row.
		e.logger.Warn("idempotency lookup failed", zap.Error(err))
		return types.Decision{}, false
	}
	if !ok {
		return types.Decision{}, false
	}
	return types.Decision{
		Granted:    prior.Granted,
		Reason:     prior.DenialReason,
		LogEntryID: prior.EntryID,
	}, true
}

func (e *AccessDecisionEngine) resolveCredential(
	ctx context.Context,
	d *draft,
	req types.AccessRequest,
	now time.Time,
) (Resolution, types.DenialReason, error) {
	sctx, cancel := e.stepCtx(ctx)
	defer cancel()

	identity, reason, err := e.resolver.Resolve(sctx, req.Credential, req.AccessMethod, now)
	if err != nil {
		return nil, types.DenialNone, fmt.Errorf("resolve credential: %w", err)
	}

	switch id := identity.(type) {
	case CardIdentity:
		d.memberID = &id.MemberID
		d.credentialID = &id.CardID
	case BiometricIdentity:
		d.memberID = &id.MemberID
		d.credentialID = &id.CredentialID
	}
	return identity, reason, nil
}

func (e *AccessDecisionEngine) member(ctx context.Context, memberID string) (store.MemberRecord, bool, error) {
	sctx, cancel := e.stepCtx(ctx)
	defer cancel()

	m, ok, err := e.creds.Member(sctx, memberID)
	if err != nil {
		return store.MemberRecord{}, false, fmt.Errorf("load member %s: %w", memberID, err)
	}
	return m, ok, nil
}

func (e *AccessDecisionEngine) zone(ctx context.Context, device store.DeviceRecord) (*store.ZoneRecord, error) {
	if device.ZoneID == nil {
		return nil, nil
	}

	sctx, cancel := e.stepCtx(ctx)
	defer cancel()

	z, ok, err := e.rules.Zone(sctx, *device.ZoneID)
	if err != nil {
		return nil, fmt.Errorf("load zone %s: %w", *device.ZoneID, err)
	}
	if !ok {
		// A device pointing at a missing zone is a provisioning bug, not
		// a member problem.
		return nil, fmt.Errorf("device %s references unknown zone %s", device.DeviceID, *device.ZoneID)
	}
	return &z, nil
}

func (e *AccessDecisionEngine) checkGender(
	ctx context.Context,
	zone store.ZoneRecord,
	gender types.Gender,
	now time.Time,
) (bool, error) {
	sctx, cancel := e.stepCtx(ctx)
	defer cancel()

	allowed, err := e.gender.Evaluate(sctx, zone, gender, now)
	if err != nil {
		if e.cfg.FailOpen {
			e.logger.Warn("gender schedule read failed, failing open", zap.Error(err))
			return true, nil
		}
		return false, fmt.Errorf("gender policy: %w", err)
	}
	return allowed, nil
}

func (e *AccessDecisionEngine) tryAdmit(ctx context.Context, zone store.ZoneRecord) (bool, error) {
	sctx, cancel := e.stepCtx(ctx)
	defer cancel()

	ok, err := e.occupancy.TryAdmit(sctx, zone.ZoneID, zone.MaxOccupancy)
	if err != nil {
		// Capacity never fails open: an unreachable counter means deny.
		return false, fmt.Errorf("capacity admit: %w", err)
	}
	return ok, nil
}

func (e *AccessDecisionEngine) checkTimeRules(
	ctx context.Context,
	device store.DeviceRecord,
	memberID string,
	planID *string,
	now time.Time,
) (types.AccessType, *store.TimeRuleRecord, error) {
	sctx, cancel := e.stepCtx(ctx)
	defer cancel()

	zoneID := ""
	if device.ZoneID != nil {
		zoneID = *device.ZoneID
	}
	plan := ""
	if planID != nil {
		plan = *planID
	}

	access, rule, err := e.timeRules.Evaluate(sctx, zoneID, memberID, plan, now)
	if err != nil {
		if e.cfg.FailOpen {
			e.logger.Warn("time rule read failed, failing open", zap.Error(err))
			return types.AccessAllow, nil, nil
		}
		return types.AccessDeny, nil, fmt.Errorf("time rules: %w", err)
	}
	return access, rule, nil
}

// applyGrant performs the mutations that accompany a granted decision.
func (e *AccessDecisionEngine) applyGrant(
	ctx context.Context,
	direction types.Direction,
	zone *store.ZoneRecord,
	memberID, credentialID string,
	now time.Time,
) error {
	if zone != nil {
		switch direction {
		case types.DirectionEntry:
			if err := e.locations.Enter(ctx, memberID, zone.ZoneID, now); err != nil {
				return fmt.Errorf("record member location: %w", err)
			}
		case types.DirectionExit:
			if err := e.occupancy.Release(ctx, zone.ZoneID); err != nil {
				// Exit is never blocked by counter trouble; the floor at
				// zero keeps a retried release harmless.
				e.logger.Error("occupancy release failed",
					zap.String("zone_id", zone.ZoneID), zap.Error(err))
			}
			if err := e.locations.Exit(ctx, memberID); err != nil {
				e.logger.Error("clear member location failed",
					zap.String("member_id", memberID), zap.Error(err))
			}
		}
	}

	if err := e.creds.TouchLastUsed(ctx, credentialID, now); err != nil {
		// Last-used is bookkeeping; a failed stamp must not void a grant.
		e.logger.Warn("touch last used failed",
			zap.String("credential_id", credentialID), zap.Error(err))
	}
	return nil
}

// compensate releases a capacity slot reserved earlier in the pipeline.
// A denied or failed request must never hold a phantom occupancy slot.
func (e *AccessDecisionEngine) compensate(ctx context.Context, admitted bool, zone *store.ZoneRecord) {
	if !admitted || zone == nil {
		return
	}
	if err := e.occupancy.Release(ctx, zone.ZoneID); err != nil {
		e.logger.Error("compensating release failed",
			zap.String("zone_id", zone.ZoneID), zap.Error(err))
	}
}

// finish writes the audit entry for the decision.  Audit persistence is a
// hard requirement: a failed append surfaces as an infrastructure error.
func (e *AccessDecisionEngine) finish(
	ctx context.Context,
	d *draft,
	granted bool,
	reason types.DenialReason,
) (types.Decision, error) {
	rec := store.AccessLogRecord{
		EntryID:        uuid.NewString(),
		TenantID:       d.tenantID,
		DeviceID:       d.deviceID,
		ZoneID:         d.zoneID,
		MemberID:       d.memberID,
		CredentialID:   d.credentialID,
		Method:         d.method,
		Direction:      d.direction,
		Granted:        granted,
		DenialReason:   reason,
		Confidence:     d.confidence,
		IdempotencyKey: d.key,
		OccurredAt:     d.at,
	}

	sctx, cancel := e.stepCtx(ctx)
	defer cancel()

	if err := e.log.Append(sctx, rec); err != nil {
		return types.Decision{}, fmt.Errorf("append access log: %w", err)
	}

	return types.Decision{
		Granted:    granted,
		Reason:     reason,
		LogEntryID: rec.EntryID,
	}, nil
}

// idempotencyKey buckets the event timestamp so device retries of the same
// scan hash to the same key.
func (e *AccessDecisionEngine) idempotencyKey(req types.AccessRequest, at time.Time) string {
	window := e.cfg.IdempotencyWindow
	if window <= 0 {
		window = 5 * time.Second
	}
	bucket := at.Truncate(window).Unix()

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d", req.DeviceID, req.Credential, req.Direction, bucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (e *AccessDecisionEngine) stepCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.StepTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.cfg.StepTimeout)
}
