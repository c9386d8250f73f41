package service

import (
	"context"
	"strings"
	"time"

	"github.com/accessdeck/zonegate/internal/zonegate/store"
	"github.com/accessdeck/zonegate/internal/zonegate/types"
)

// Resolution is the outcome of mapping a raw credential to an identity.
// It is a closed set: Unresolved, CardIdentity, or BiometricIdentity.
type Resolution interface {
	resolution()
}

// Unresolved means no issued credential matched the presented value.
type Unresolved struct{}

// CardIdentity is a card-backed identity.
type CardIdentity struct {
	MemberID string
	CardID   string
}

// BiometricIdentity is a biometric match that resolved to a card on file.
type BiometricIdentity struct {
	MemberID     string
	CredentialID string
}

func (Unresolved) resolution()        {}
func (CardIdentity) resolution()      {}
func (BiometricIdentity) resolution() {}

// CredentialResolver maps a presented credential to a member identity and
// checks the credential's validity.  It has no side effects.
type CredentialResolver struct {
	cards store.CredentialStore
}

func NewCredentialResolver(cards store.CredentialStore) *CredentialResolver {
	return &CredentialResolver{cards: cards}
}

// Resolve looks up the raw credential and returns the identity plus a
// denial reason.  The reason is DenialNone for a valid credential; an
// Unresolved identity always carries DenialUnknownCredential.  The error
// return is reserved for store failures.
func (r *CredentialResolver) Resolve(
	ctx context.Context,
	raw string,
	method types.AccessMethod,
	now time.Time,
) (Resolution, types.DenialReason, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Unresolved{}, types.DenialUnknownCredential, nil
	}

	// Biometric samples are matched to a card number upstream, so every
	// access method resolves through the card table.
	card, ok, err := r.cards.FindCard(ctx, raw)
	if err != nil {
		return Unresolved{}, types.DenialNone, err
	}
	if !ok {
		return Unresolved{}, types.DenialUnknownCredential, nil
	}

	var identity Resolution
	if method == types.MethodBiometric {
		identity = BiometricIdentity{MemberID: card.MemberID, CredentialID: card.CardID}
	} else {
		identity = CardIdentity{MemberID: card.MemberID, CardID: card.CardID}
	}

	return identity, validity(card, now), nil
}

// validity maps a card's lifecycle state to a denial reason.
func validity(card store.CardRecord, now time.Time) types.DenialReason {
	if card.ExpiresAt != nil && !card.ExpiresAt.After(now) {
		return types.DenialExpiredMembership
	}

	switch card.Status {
	case types.CardActive:
		return types.DenialNone
	case types.CardSuspended:
		return types.DenialSuspendedCard
	case types.CardExpired:
		return types.DenialExpiredMembership
	default:
		// LOST, REVOKED, and anything unrecognized.
		return types.DenialInvalidCard
	}
}
