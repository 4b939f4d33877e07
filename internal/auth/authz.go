package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/store"
)

const policyQuery = "data.guildhall.authz.allow"

// IdentityLookup resolves what an external identity may do.
type IdentityLookup interface {
	ResolveRoles(ctx context.Context, userID string) ([]string, error)
	AuthorizePolicy(ctx context.Context, userID, policy string) (bool, error)
}

// RoleResolver resolves the roles held by an external identity.
type RoleResolver interface {
	ResolveRoles(ctx context.Context, userID string) ([]string, error)
}

// TierLookup resolves the tier of an account.
type TierLookup interface {
	AccountTier(ctx context.Context, accountID int64) (models.AccountTier, error)
}

// AccountTiers adapts an account reader to TierLookup. A missing account
// has no tier.
type AccountTiers struct {
	Accounts store.AccountReader
}

func (a AccountTiers) AccountTier(ctx context.Context, accountID int64) (models.AccountTier, error) {
	account, err := a.Accounts.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return models.TierNone, nil
		}
		return models.TierNone, err
	}
	return account.Tier, nil
}

// StaticRoles grants roles from the policy file: per user id, plus the
// roles attached to the tier of the user's account.
type StaticRoles struct {
	accounts store.AccountReader
	users    map[string][]string
	tiers    map[models.AccountTier][]string
}

// NewStaticRoles creates a role resolver from the policy config.
func NewStaticRoles(accounts store.AccountReader, cfg *PolicyConfig) (*StaticRoles, error) {
	tiers, err := cfg.tierRoles()
	if err != nil {
		return nil, err
	}
	return &StaticRoles{
		accounts: accounts,
		users:    cfg.Users,
		tiers:    tiers,
	}, nil
}

func (s *StaticRoles) ResolveRoles(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, nil
	}

	roles := slices.Clone(s.users[userID])

	account, err := s.accounts.GetAccountByUser(ctx, userID)
	switch {
	case errors.Is(err, store.ErrAccountNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to resolve account roles: %w", err)
	default:
		roles = append(roles, s.tiers[account.Tier]...)
	}

	slices.Sort(roles)
	return slices.Compact(roles), nil
}

// RegoIdentity evaluates named policies with OPA. The module must define
// data.guildhall.authz.allow over the input {user_id, roles, policy}.
type RegoIdentity struct {
	roles RoleResolver
	query rego.PreparedEvalQuery
}

// NewRegoIdentity compiles the policy module.
func NewRegoIdentity(ctx context.Context, roles RoleResolver, module string) (*RegoIdentity, error) {
	compiler, err := ast.CompileModules(map[string]string{"guildhall.rego": module})
	if err != nil {
		return nil, fmt.Errorf("failed to compile policy module: %w", err)
	}

	query, err := rego.New(
		rego.Query(policyQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare policy query: %w", err)
	}

	return &RegoIdentity{roles: roles, query: query}, nil
}

func (r *RegoIdentity) ResolveRoles(ctx context.Context, userID string) ([]string, error) {
	return r.roles.ResolveRoles(ctx, userID)
}

func (r *RegoIdentity) AuthorizePolicy(ctx context.Context, userID, policy string) (bool, error) {
	roles, err := r.roles.ResolveRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	if roles == nil {
		roles = []string{}
	}

	rs, err := r.query.Eval(ctx, rego.EvalInput(map[string]any{
		"user_id": userID,
		"roles":   roles,
		"policy":  policy,
	}))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate policy %s: %w", policy, err)
	}

	return rs.Allowed(), nil
}
