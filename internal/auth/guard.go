package auth

import (
	"context"
	"fmt"
	"slices"

	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/session"
)

// SessionLookup returns a user's raw session record and its state.
type SessionLookup interface {
	Lookup(ctx context.Context, userID string) (session.State, *models.Session, error)
}

// Guard evaluates requirements against the caller's current state.
type Guard struct {
	sessions SessionLookup
	identity IdentityLookup
	tiers    TierLookup
	owners   session.OwnershipChecker
}

// NewGuard creates a guard over its collaborators.
func NewGuard(sessions SessionLookup, identity IdentityLookup, tiers TierLookup, owners session.OwnershipChecker) *Guard {
	return &Guard{
		sessions: sessions,
		identity: identity,
		tiers:    tiers,
		owners:   owners,
	}
}

// Authorize returns the caller's session record if req is satisfied, or a
// *DeniedError naming the first failed check. Collaborator failures are
// returned as ordinary errors. It never writes to the session.
func (g *Guard) Authorize(ctx context.Context, req Requirement, caller Caller) (*models.Session, error) {
	state, sess, err := g.sessions.Lookup(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	if denied := CheckSession(req, state); denied != nil {
		return nil, denied
	}

	if req.MinimumTier > models.TierNone {
		tier := models.TierNone
		if sess != nil && sess.AccountID != nil {
			tier, err = g.tiers.AccountTier(ctx, *sess.AccountID)
			if err != nil {
				return nil, fmt.Errorf("failed to look up account tier: %w", err)
			}
		}
		if !tier.AtLeast(req.MinimumTier) {
			return nil, &DeniedError{Reason: ReasonInsufficientAccountTier, Detail: req.MinimumTier.String()}
		}
	}

	if len(req.RequiredRoles) > 0 {
		roles, err := g.identity.ResolveRoles(ctx, caller.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve roles: %w", err)
		}
		for _, role := range req.RequiredRoles {
			if !slices.Contains(roles, role) {
				return nil, &DeniedError{Reason: ReasonMissingRole, Detail: role}
			}
		}
	}

	for _, policy := range req.RequiredPolicies {
		allowed, err := g.identity.AuthorizePolicy(ctx, caller.UserID, policy)
		if err != nil {
			return nil, fmt.Errorf("failed to authorize policy: %w", err)
		}
		if !allowed {
			return nil, &DeniedError{Reason: ReasonPolicyDenied, Detail: policy}
		}
	}

	if denied := CheckCharacter(req, state, sess); denied != nil {
		return nil, denied
	}

	if req.RequireCharacter && !req.AllowNotOwnerCharacter {
		owned := false
		if sess.AccountID != nil {
			owned, err = g.owners.IsCharacterOwnedBy(ctx, *sess.SelectedCharacterID, *sess.AccountID)
			if err != nil {
				return nil, fmt.Errorf("failed to check character ownership: %w", err)
			}
		}
		if !owned {
			return nil, deny(ReasonNotCharacterOwner)
		}
	}

	return sess, nil
}

// CheckSession applies the session existence and freshness checks.
func CheckSession(req Requirement, state session.State) *DeniedError {
	if !req.RequireSession {
		return nil
	}

	switch state {
	case session.StateNone:
		return deny(ReasonSessionRequired)
	case session.StateExpired:
		if !req.AllowExpiredSession {
			return deny(ReasonSessionExpired)
		}
	}
	return nil
}

// CheckCharacter applies the character selection check. The selection of
// an expired session counts as absent even when the expired session itself
// is tolerated.
func CheckCharacter(req Requirement, state session.State, sess *models.Session) *DeniedError {
	if !req.RequireCharacter {
		return nil
	}
	if state != session.StateActive || sess == nil || sess.SelectedCharacterID == nil {
		return deny(ReasonCharacterRequired)
	}
	return nil
}
