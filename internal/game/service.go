// Package game implements the account and character operations. Every
// operation is declared with its requirement and validation and runs
// through the request pipeline.
package game

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/guildhall/internal/auth"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/pipeline"
	"github.com/wolfeidau/guildhall/internal/session"
	"github.com/wolfeidau/guildhall/internal/store"
)

// Policy names evaluated by the identity lookup.
const (
	PolicyManageTier      = "accounts.manage_tier"
	PolicyRenameCharacter = "characters.rename"
)

// RoleAdmin is required to change account tiers.
const RoleAdmin = "admin"

// Requirements declared by the operations.
var (
	requireLogin           = auth.Public
	requireLogout          = auth.SessionRequired().AllowingExpired()
	requireSession         = auth.SessionRequired()
	requireCreateCharacter = auth.SessionRequired().WithMinimumTier(models.TierBasic)
	requireCharacter       = auth.CharacterRequired()
	requireRename          = auth.CharacterRequired().WithPolicies(PolicyRenameCharacter)
	requireManageTier      = auth.SessionRequired().WithRoles(RoleAdmin).WithPolicies(PolicyManageTier)
)

// Service exposes the game operations.
type Service struct {
	pipeline *pipeline.Pipeline
	sessions *session.Manager
	accounts store.AccountReader
	chars    store.CharacterReader
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the time source stamped on aggregates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the game service. The readers back validation; all
// writes go through the pipeline's units of work.
func NewService(p *pipeline.Pipeline, sessions *session.Manager, games store.GameStore, opts ...Option) *Service {
	s := &Service{
		pipeline: p,
		sessions: sessions,
		accounts: games,
		chars:    games,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// execute runs op through the pipeline. Once an operation that requires a
// session has succeeded, activity is recorded on the caller's session so a
// sliding TTL keeps active players logged in. A failed refresh is logged
// and does not fail the operation.
func execute[R any](ctx context.Context, s *Service, caller auth.Caller, op pipeline.Operation[R]) (R, error) {
	result, err := pipeline.Execute(ctx, s.pipeline, caller, op)
	if !op.Requirement.RequireSession || !pipeline.Succeeded(err) {
		return result, err
	}

	if touchErr := s.sessions.Touch(context.WithoutCancel(ctx), caller.UserID); touchErr != nil {
		zerolog.Ctx(ctx).Warn().
			Err(touchErr).
			Str("operation", op.Name).
			Str("user_id", caller.UserID).
			Msg("Failed to refresh session")
	}
	return result, err
}
