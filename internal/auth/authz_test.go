package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/store/memory"
)

func seedAccount(t *testing.T, games *memory.GameStore, userID string, tier models.AccountTier) *models.Account {
	t.Helper()
	ctx := context.Background()

	uow, err := games.Begin(ctx)
	require.NoError(t, err)

	account := models.NewAccount(userID, userID+"-account", tier, time.Now())
	require.NoError(t, uow.Accounts().Add(ctx, account))

	changed, err := uow.Commit(ctx)
	require.NoError(t, err)
	require.True(t, changed)

	return account
}

func TestStaticRoles(t *testing.T) {
	ctx := context.Background()
	games := memory.NewGameStore()
	seedAccount(t, games, "user-basic", models.TierBasic)
	seedAccount(t, games, "user-admin", models.TierAdministrator)

	cfg := DefaultPolicyConfig()
	cfg.Users = map[string][]string{"user-basic": {"support", "player"}}

	roles, err := NewStaticRoles(games, cfg)
	require.NoError(t, err)

	tests := []struct {
		name   string
		userID string
		want   []string
	}{
		{name: "user roles merged with tier roles", userID: "user-basic", want: []string{"player", "support"}},
		{name: "tier roles only", userID: "user-admin", want: []string{"admin", "moderator", "player"}},
		{name: "no account", userID: "user-none", want: []string{}},
		{name: "anonymous", userID: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := roles.ResolveRoles(ctx, tt.userID)
			require.NoError(t, err)
			if tt.want == nil {
				require.Nil(t, got)
				return
			}
			require.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestRegoIdentity_DefaultModule(t *testing.T) {
	ctx := context.Background()
	games := memory.NewGameStore()
	seedAccount(t, games, "user-basic", models.TierBasic)
	seedAccount(t, games, "user-admin", models.TierAdministrator)

	roles, err := NewStaticRoles(games, DefaultPolicyConfig())
	require.NoError(t, err)

	identity, err := NewRegoIdentity(ctx, roles, DefaultPolicyConfig().Module)
	require.NoError(t, err)

	tests := []struct {
		name   string
		userID string
		policy string
		want   bool
	}{
		{name: "admin manages tiers", userID: "user-admin", policy: "accounts.manage_tier", want: true},
		{name: "player cannot manage tiers", userID: "user-basic", policy: "accounts.manage_tier", want: false},
		{name: "player renames", userID: "user-basic", policy: "characters.rename", want: true},
		{name: "no account cannot rename", userID: "user-none", policy: "characters.rename", want: false},
		{name: "unknown policy", userID: "user-admin", policy: "does.not.exist", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, err := identity.AuthorizePolicy(ctx, tt.userID, tt.policy)
			require.NoError(t, err)
			require.Equal(t, tt.want, allowed)
		})
	}
}

func TestRegoIdentity_InvalidModule(t *testing.T) {
	_, err := NewRegoIdentity(context.Background(), &fakeIdentity{}, "package guildhall.authz\n\nallow if {")
	require.ErrorContains(t, err, "failed to compile policy module")
}

func TestLoadPolicyConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("custom module and users", func(t *testing.T) {
		path := filepath.Join(dir, "policy.yaml")
		content := `users:
  user-1: [gm]
module: |
  package guildhall.authz

  default allow := false

  allow if {
    "gm" in input.roles
  }
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := LoadPolicyConfig(path)
		require.NoError(t, err)
		require.Equal(t, []string{"gm"}, cfg.Users["user-1"])
		require.Equal(t, DefaultPolicyConfig().Tiers, cfg.Tiers)

		ctx := context.Background()
		roles, err := NewStaticRoles(memory.NewGameStore(), cfg)
		require.NoError(t, err)

		identity, err := NewRegoIdentity(ctx, roles, cfg.Module)
		require.NoError(t, err)

		allowed, err := identity.AuthorizePolicy(ctx, "user-1", "anything")
		require.NoError(t, err)
		require.True(t, allowed)
	})

	t.Run("unknown tier", func(t *testing.T) {
		path := filepath.Join(dir, "bad-tier.yaml")
		require.NoError(t, os.WriteFile(path, []byte("tiers:\n  platinum: [player]\n"), 0o600))

		_, err := LoadPolicyConfig(path)
		require.ErrorIs(t, err, models.ErrInvalidTier)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPolicyConfig(filepath.Join(dir, "missing.yaml"))
		require.Error(t, err)
	})
}

func TestAccountTiers(t *testing.T) {
	ctx := context.Background()
	games := memory.NewGameStore()
	account := seedAccount(t, games, "user-1", models.TierPremium)

	tiers := AccountTiers{Accounts: games}

	tier, err := tiers.AccountTier(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, models.TierPremium, tier)

	tier, err = tiers.AccountTier(ctx, 999)
	require.NoError(t, err)
	require.Equal(t, models.TierNone, tier)
}
