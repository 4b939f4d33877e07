package auth

import (
	"fmt"
	"slices"

	"github.com/wolfeidau/guildhall/internal/models"
)

// Requirement declares the preconditions an operation places on its caller.
// It is a plain value; the With* helpers return modified copies so a
// declared requirement is never changed in place.
type Requirement struct {
	RequireSession         bool
	AllowExpiredSession    bool
	RequireCharacter       bool
	AllowNotOwnerCharacter bool
	MinimumTier            models.AccountTier
	RequiredRoles          []string
	RequiredPolicies       []string
}

// Public is the requirement of operations anyone may call.
var Public = Requirement{}

// SessionRequired returns a requirement for a live session.
func SessionRequired() Requirement {
	return Requirement{RequireSession: true}
}

// CharacterRequired returns a requirement for a live session with an owned,
// selected character.
func CharacterRequired() Requirement {
	return Requirement{RequireSession: true, RequireCharacter: true}
}

func (r Requirement) AllowingExpired() Requirement {
	r.AllowExpiredSession = true
	return r.clone()
}

func (r Requirement) AllowingNotOwner() Requirement {
	r.AllowNotOwnerCharacter = true
	return r.clone()
}

func (r Requirement) WithMinimumTier(tier models.AccountTier) Requirement {
	r.MinimumTier = tier
	return r.clone()
}

func (r Requirement) WithRoles(roles ...string) Requirement {
	r = r.clone()
	r.RequiredRoles = append(r.RequiredRoles, roles...)
	return r
}

func (r Requirement) WithPolicies(policies ...string) Requirement {
	r = r.clone()
	r.RequiredPolicies = append(r.RequiredPolicies, policies...)
	return r
}

func (r Requirement) clone() Requirement {
	r.RequiredRoles = slices.Clone(r.RequiredRoles)
	r.RequiredPolicies = slices.Clone(r.RequiredPolicies)
	return r
}

// DenialReason identifies why the guard rejected a caller.
type DenialReason string

const (
	ReasonSessionRequired         DenialReason = "session_required"
	ReasonSessionExpired          DenialReason = "session_expired"
	ReasonCharacterRequired       DenialReason = "character_required"
	ReasonNotCharacterOwner       DenialReason = "not_character_owner"
	ReasonInsufficientAccountTier DenialReason = "insufficient_account_tier"
	ReasonMissingRole             DenialReason = "missing_role"
	ReasonPolicyDenied            DenialReason = "policy_denied"
)

// IsSessionReason reports whether the denial is about the caller's session
// rather than their privileges.
func (r DenialReason) IsSessionReason() bool {
	return r == ReasonSessionRequired || r == ReasonSessionExpired
}

// DeniedError is returned when the guard rejects an operation.
type DeniedError struct {
	Reason DenialReason
	Detail string // role or policy name, when relevant
}

func (e *DeniedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("authorization denied: %s (%s)", e.Reason, e.Detail)
	}
	return fmt.Sprintf("authorization denied: %s", e.Reason)
}

func deny(reason DenialReason) *DeniedError {
	return &DeniedError{Reason: reason}
}
