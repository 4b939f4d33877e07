package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/session"
)

type fakeSessions struct {
	state session.State
	sess  *models.Session
	err   error
	calls int
}

func (f *fakeSessions) Lookup(context.Context, string) (session.State, *models.Session, error) {
	f.calls++
	return f.state, f.sess.Clone(), f.err
}

type fakeIdentity struct {
	roles    []string
	policies map[string]bool
	err      error
}

func (f *fakeIdentity) ResolveRoles(context.Context, string) ([]string, error) {
	return f.roles, f.err
}

func (f *fakeIdentity) AuthorizePolicy(_ context.Context, _ string, policy string) (bool, error) {
	return f.policies[policy], f.err
}

type fakeTiers map[int64]models.AccountTier

func (f fakeTiers) AccountTier(_ context.Context, accountID int64) (models.AccountTier, error) {
	return f[accountID], nil
}

// fakeOwners maps character id to account id.
type fakeOwners map[int64]int64

func (f fakeOwners) IsCharacterOwnedBy(_ context.Context, characterID, accountID int64) (bool, error) {
	owner, ok := f[characterID]
	return ok && owner == accountID, nil
}

func ptr[T any](v T) *T { return &v }

func activeSession(accountID, characterID *int64) *fakeSessions {
	return &fakeSessions{
		state: session.StateActive,
		sess: &models.Session{
			UserID:              "user-1",
			AccountID:           accountID,
			SelectedCharacterID: characterID,
		},
	}
}

func TestGuard_Authorize(t *testing.T) {
	ctx := context.Background()
	caller := Caller{UserID: "user-1"}

	tiers := fakeTiers{42: models.TierBasic, 43: models.TierAdministrator}
	owners := fakeOwners{7: 42, 9: 99}

	tests := []struct {
		name     string
		req      Requirement
		sessions *fakeSessions
		identity *fakeIdentity
		want     DenialReason
	}{
		{
			name:     "public allows anonymous",
			req:      Public,
			sessions: &fakeSessions{state: session.StateNone},
		},
		{
			name:     "session required without session",
			req:      SessionRequired(),
			sessions: &fakeSessions{state: session.StateNone},
			want:     ReasonSessionRequired,
		},
		{
			name:     "expired session rejected",
			req:      SessionRequired(),
			sessions: &fakeSessions{state: session.StateExpired, sess: &models.Session{UserID: "user-1"}},
			want:     ReasonSessionExpired,
		},
		{
			name:     "expired session tolerated",
			req:      SessionRequired().AllowingExpired(),
			sessions: &fakeSessions{state: session.StateExpired, sess: &models.Session{UserID: "user-1"}},
		},
		{
			name: "expired session selection counts as absent",
			req:  CharacterRequired().AllowingExpired(),
			sessions: &fakeSessions{state: session.StateExpired, sess: &models.Session{
				UserID: "user-1", AccountID: ptr(int64(42)), SelectedCharacterID: ptr(int64(7)),
			}},
			want: ReasonCharacterRequired,
		},
		{
			name:     "tier below minimum",
			req:      SessionRequired().WithMinimumTier(models.TierPremium),
			sessions: activeSession(ptr(int64(42)), nil),
			want:     ReasonInsufficientAccountTier,
		},
		{
			name:     "tier without account",
			req:      SessionRequired().WithMinimumTier(models.TierBasic),
			sessions: activeSession(nil, nil),
			want:     ReasonInsufficientAccountTier,
		},
		{
			name:     "tier satisfied",
			req:      SessionRequired().WithMinimumTier(models.TierPremium),
			sessions: activeSession(ptr(int64(43)), nil),
		},
		{
			name:     "missing role",
			req:      SessionRequired().WithRoles("admin"),
			sessions: activeSession(ptr(int64(42)), nil),
			identity: &fakeIdentity{roles: []string{"player"}},
			want:     ReasonMissingRole,
		},
		{
			name:     "policy denied",
			req:      SessionRequired().WithRoles("player").WithPolicies("accounts.manage_tier"),
			sessions: activeSession(ptr(int64(42)), nil),
			identity: &fakeIdentity{roles: []string{"player"}},
			want:     ReasonPolicyDenied,
		},
		{
			name:     "policy allowed",
			req:      SessionRequired().WithPolicies("characters.rename"),
			sessions: activeSession(ptr(int64(42)), nil),
			identity: &fakeIdentity{policies: map[string]bool{"characters.rename": true}},
		},
		{
			name:     "character required without selection",
			req:      CharacterRequired(),
			sessions: activeSession(ptr(int64(42)), nil),
			want:     ReasonCharacterRequired,
		},
		{
			name:     "character not owned",
			req:      CharacterRequired(),
			sessions: activeSession(ptr(int64(42)), ptr(int64(9))),
			want:     ReasonNotCharacterOwner,
		},
		{
			name:     "character not owned tolerated",
			req:      CharacterRequired().AllowingNotOwner(),
			sessions: activeSession(ptr(int64(42)), ptr(int64(9))),
		},
		{
			name:     "character owned",
			req:      CharacterRequired(),
			sessions: activeSession(ptr(int64(42)), ptr(int64(7))),
		},
		{
			name:     "tier checked before character",
			req:      CharacterRequired().WithMinimumTier(models.TierPremium),
			sessions: activeSession(ptr(int64(42)), nil),
			want:     ReasonInsufficientAccountTier,
		},
		{
			name:     "role checked before policy",
			req:      SessionRequired().WithRoles("admin").WithPolicies("accounts.manage_tier"),
			sessions: activeSession(ptr(int64(43)), nil),
			identity: &fakeIdentity{policies: map[string]bool{"accounts.manage_tier": true}},
			want:     ReasonMissingRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := tt.identity
			if identity == nil {
				identity = &fakeIdentity{}
			}
			g := NewGuard(tt.sessions, identity, tiers, owners)

			sess, err := g.Authorize(ctx, tt.req, caller)
			if tt.want == "" {
				require.NoError(t, err)
				require.Equal(t, tt.sessions.sess, sess)
				return
			}

			var denied *DeniedError
			require.ErrorAs(t, err, &denied)
			require.Equal(t, tt.want, denied.Reason)
			require.Nil(t, sess)
		})
	}
}

func TestGuard_CollaboratorErrorsAreNotDenials(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("store unavailable")

	t.Run("session lookup", func(t *testing.T) {
		g := NewGuard(&fakeSessions{err: boom}, &fakeIdentity{}, fakeTiers{}, fakeOwners{})

		_, err := g.Authorize(ctx, SessionRequired(), Caller{UserID: "user-1"})
		require.ErrorIs(t, err, boom)

		var denied *DeniedError
		require.False(t, errors.As(err, &denied))
	})

	t.Run("role lookup", func(t *testing.T) {
		g := NewGuard(activeSession(ptr(int64(42)), nil), &fakeIdentity{err: boom}, fakeTiers{}, fakeOwners{})

		_, err := g.Authorize(ctx, SessionRequired().WithRoles("admin"), Caller{UserID: "user-1"})
		require.ErrorIs(t, err, boom)
	})
}

func TestRequirement_CopiesAreIndependent(t *testing.T) {
	base := SessionRequired().WithRoles("player")
	derived := base.WithRoles("admin")

	require.Equal(t, []string{"player"}, base.RequiredRoles)
	require.Equal(t, []string{"player", "admin"}, derived.RequiredRoles)
}

func TestCheckSession(t *testing.T) {
	require.Nil(t, CheckSession(Public, session.StateNone))
	require.Equal(t, ReasonSessionRequired, CheckSession(SessionRequired(), session.StateNone).Reason)
	require.Equal(t, ReasonSessionExpired, CheckSession(SessionRequired(), session.StateExpired).Reason)
	require.Nil(t, CheckSession(SessionRequired().AllowingExpired(), session.StateExpired))
	require.Nil(t, CheckSession(SessionRequired(), session.StateActive))
}

func TestDenialReason_IsSessionReason(t *testing.T) {
	require.True(t, ReasonSessionRequired.IsSessionReason())
	require.True(t, ReasonSessionExpired.IsSessionReason())
	require.False(t, ReasonMissingRole.IsSessionReason())
	require.False(t, ReasonCharacterRequired.IsSessionReason())
}
