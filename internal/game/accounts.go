package game

import (
	"context"
	"errors"

	"github.com/wolfeidau/guildhall/internal/auth"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/pipeline"
	"github.com/wolfeidau/guildhall/internal/session"
	"github.com/wolfeidau/guildhall/internal/store"
)

// LoginInput carries the attributes recorded on a new session.
type LoginInput struct {
	ClientIP string
}

// LoginResult is the new session and the account bound to it, if any.
type LoginResult struct {
	Session *models.Session
	Account *models.Account
}

// Login starts a session for the caller, replacing any previous one, and
// binds the caller's account when it exists.
func (s *Service) Login(ctx context.Context, caller auth.Caller, in LoginInput) (*LoginResult, error) {
	return execute(ctx, s, caller, pipeline.Operation[*LoginResult]{
		Name:        "Login",
		Requirement: requireLogin,
		ReadOnly:    true,
		Validate: func(ctx context.Context, caller auth.Caller, _ *models.Session) ([]pipeline.Violation, error) {
			var v pipeline.Violations
			if caller.IsAnonymous() {
				v.Add("user_id", "required", "an authenticated identity is required to log in")
			}
			return v, nil
		},
		Handle: func(ctx context.Context, req *pipeline.Request) (*LoginResult, error) {
			var opts []session.CreateOption

			account, err := req.Tx.Accounts().GetByUser(ctx, req.Caller.UserID)
			switch {
			case errors.Is(err, store.ErrAccountNotFound):
				account = nil
			case err != nil:
				return nil, err
			default:
				opts = append(opts, session.WithAccount(account.ID))
			}

			sess, err := s.sessions.Create(ctx, req.Caller.UserID, opts...)
			if err != nil {
				return nil, err
			}

			if in.ClientIP != "" {
				if err := s.sessions.SetData(ctx, req.Caller.UserID, "client_ip", in.ClientIP); err != nil {
					return nil, err
				}
				if sess, err = s.sessions.Get(ctx, req.Caller.UserID); err != nil {
					return nil, err
				}
			}

			return &LoginResult{Session: sess, Account: account}, nil
		},
	})
}

// Logout revokes the caller's session. An expired session may still log out.
func (s *Service) Logout(ctx context.Context, caller auth.Caller) error {
	_, err := execute(ctx, s, caller, pipeline.Operation[struct{}]{
		Name:        "Logout",
		Requirement: requireLogout,
		ReadOnly:    true,
		Handle: func(ctx context.Context, req *pipeline.Request) (struct{}, error) {
			return struct{}{}, s.sessions.Revoke(ctx, req.Caller.UserID)
		},
	})
	return err
}

// CreateAccountInput describes a new account.
type CreateAccountInput struct {
	Name string
}

// CreateAccount creates the caller's account. The session is bound to it
// once AccountCreated is dispatched.
func (s *Service) CreateAccount(ctx context.Context, caller auth.Caller, in CreateAccountInput) (*models.Account, error) {
	return execute(ctx, s, caller, pipeline.Operation[*models.Account]{
		Name:        "CreateAccount",
		Requirement: requireSession,
		Validate: func(ctx context.Context, caller auth.Caller, _ *models.Session) ([]pipeline.Violation, error) {
			var v pipeline.Violations
			checkAccountName(&v, in.Name)

			_, err := s.accounts.GetAccountByUser(ctx, caller.UserID)
			switch {
			case err == nil:
				v.Add("user_id", "unique", "an account already exists for this identity")
			case !errors.Is(err, store.ErrAccountNotFound):
				return nil, err
			}
			return v, nil
		},
		Handle: func(ctx context.Context, req *pipeline.Request) (*models.Account, error) {
			account := models.NewAccount(req.Caller.UserID, in.Name, models.TierBasic, s.now())
			if err := req.Tx.Accounts().Add(ctx, account); err != nil {
				return nil, err
			}
			return account, nil
		},
	})
}

// SetAccountTierInput changes an account's tier.
type SetAccountTierInput struct {
	AccountID int64
	Tier      models.AccountTier
}

// SetAccountTier changes the tier of any account. It requires the admin
// role and the manage tier policy.
func (s *Service) SetAccountTier(ctx context.Context, caller auth.Caller, in SetAccountTierInput) (*models.Account, error) {
	return execute(ctx, s, caller, pipeline.Operation[*models.Account]{
		Name:        "SetAccountTier",
		Requirement: requireManageTier,
		Validate: func(context.Context, auth.Caller, *models.Session) ([]pipeline.Violation, error) {
			var v pipeline.Violations
			if !in.Tier.Valid() || in.Tier == models.TierNone {
				v.Add("tier", "known_tier", "must be basic, premium, moderator or administrator")
			}
			return v, nil
		},
		Handle: func(ctx context.Context, req *pipeline.Request) (*models.Account, error) {
			account, err := req.Tx.Accounts().Get(ctx, in.AccountID)
			if err != nil {
				return nil, err
			}

			changed, err := account.ChangeTier(in.Tier, s.now())
			if err != nil {
				return nil, err
			}
			if !changed {
				return account, nil
			}

			if err := req.Tx.Accounts().Save(ctx, account); err != nil {
				return nil, err
			}
			return account, nil
		},
	})
}
