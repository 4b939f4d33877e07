//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/guildhall/internal/events"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*Store, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	st, err := Open(ctx, &PoolConfig{ConnString: connString}, &StoreConfig{AutoMigrate: true})
	require.NoError(t, err)
	require.NoError(t, st.Start())

	cleanup := func() {
		_ = st.Stop()
		_ = container.Terminate(ctx)
	}

	return st, cleanup
}

func addAccount(t *testing.T, ctx context.Context, games *GameStore, userID string) *models.Account {
	t.Helper()
	uow, err := games.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback(ctx) //nolint:errcheck

	account := models.NewAccount(userID, userID+" account", models.TierBasic, time.Now())
	require.NoError(t, uow.Accounts().Add(ctx, account))

	changed, err := uow.Commit(ctx)
	require.NoError(t, err)
	require.True(t, changed)
	return account
}

func TestIntegration_GameStore(t *testing.T) {
	ctx := context.Background()
	st, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	games := st.Games()

	t.Run("migrations are idempotent", func(t *testing.T) {
		require.NoError(t, Migrate(ctx, st.pool))
	})

	account := addAccount(t, ctx, games, "user-1")
	require.NotZero(t, account.ID)

	t.Run("duplicate account", func(t *testing.T) {
		uow, err := games.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback(ctx) //nolint:errcheck

		err = uow.Accounts().Add(ctx, models.NewAccount("user-1", "again", models.TierBasic, time.Now()))
		require.ErrorIs(t, err, store.ErrAccountAlreadyExists)
	})

	var characterID int64

	t.Run("add character raises created event", func(t *testing.T) {
		uow, err := games.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback(ctx) //nolint:errcheck

		character, err := models.NewCharacter(account.ID, "Aria", models.ClassMage, time.Now())
		require.NoError(t, err)
		require.NoError(t, uow.Characters().Add(ctx, character))
		characterID = character.ID

		_, err = uow.Commit(ctx)
		require.NoError(t, err)

		evs := events.DrainAll(uow.Tracked())
		require.Len(t, evs, 1)
		require.Equal(t, models.KindCharacterCreated, evs[0].Kind())
	})

	t.Run("name is unique per account ignoring case", func(t *testing.T) {
		exists, err := games.CharacterNameExists(ctx, account.ID, "ARIA")
		require.NoError(t, err)
		require.True(t, exists)

		uow, err := games.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback(ctx) //nolint:errcheck

		character, err := models.NewCharacter(account.ID, "aria", models.ClassCleric, time.Now())
		require.NoError(t, err)
		err = uow.Characters().Add(ctx, character)
		require.ErrorIs(t, err, store.ErrCharacterNameTaken)
	})

	t.Run("rollback discards changes", func(t *testing.T) {
		uow, err := games.Begin(ctx)
		require.NoError(t, err)

		character, err := uow.Characters().Get(ctx, characterID)
		require.NoError(t, err)
		_, err = character.GainExperience(500, time.Now())
		require.NoError(t, err)
		require.NoError(t, uow.Characters().Save(ctx, character))
		require.NoError(t, uow.Rollback(ctx))

		stored, err := games.GetCharacter(ctx, characterID)
		require.NoError(t, err)
		require.Equal(t, int64(0), stored.Experience)
	})

	t.Run("ownership and listing", func(t *testing.T) {
		other := addAccount(t, ctx, games, "user-2")

		owned, err := games.IsCharacterOwnedBy(ctx, characterID, account.ID)
		require.NoError(t, err)
		require.True(t, owned)

		owned, err = games.IsCharacterOwnedBy(ctx, characterID, other.ID)
		require.NoError(t, err)
		require.False(t, owned)

		list, err := games.ListCharacters(ctx, account.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
	})

	t.Run("deleted characters free their name", func(t *testing.T) {
		uow, err := games.Begin(ctx)
		require.NoError(t, err)
		character, err := uow.Characters().Get(ctx, characterID)
		require.NoError(t, err)
		require.NoError(t, character.Delete("user-1", time.Now()))
		require.NoError(t, uow.Characters().Save(ctx, character))
		_, err = uow.Commit(ctx)
		require.NoError(t, err)

		_, err = games.GetCharacter(ctx, characterID)
		require.ErrorIs(t, err, store.ErrCharacterNotFound)

		exists, err := games.CharacterNameExists(ctx, account.ID, "Aria")
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("tier change persists", func(t *testing.T) {
		uow, err := games.Begin(ctx)
		require.NoError(t, err)
		loaded, err := uow.Accounts().Get(ctx, account.ID)
		require.NoError(t, err)
		_, err = loaded.ChangeTier(models.TierPremium, time.Now())
		require.NoError(t, err)
		require.NoError(t, uow.Accounts().Save(ctx, loaded))
		_, err = uow.Commit(ctx)
		require.NoError(t, err)

		stored, err := games.GetAccountByUser(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, models.TierPremium, stored.Tier)
	})
}

func TestIntegration_SessionStore(t *testing.T) {
	ctx := context.Background()
	st, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	sessions := st.Sessions()

	_, err := sessions.Get(ctx, "nobody")
	require.ErrorIs(t, err, store.ErrSessionNotFound)

	accountID := int64(7)
	in := &models.Session{
		UserID:         "user-1",
		AccountID:      &accountID,
		CreatedAt:      time.Now().UTC(),
		LastActivityAt: time.Now().UTC(),
		Data:           map[string]any{"client_ip": "203.0.113.7"},
		Version:        1,
	}
	require.NoError(t, sessions.Put(ctx, in, time.Hour))

	out, err := sessions.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, accountID, *out.AccountID)
	require.Equal(t, "203.0.113.7", out.Data["client_ip"])

	in.Version = 2
	require.NoError(t, sessions.Put(ctx, in, time.Hour))
	out, err = sessions.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(2), out.Version)

	require.NoError(t, sessions.Put(ctx, &models.Session{UserID: "user-2"}, time.Millisecond))
	time.Sleep(10 * time.Millisecond)

	_, err = sessions.Get(ctx, "user-2")
	require.ErrorIs(t, err, store.ErrSessionNotFound)

	purged, err := sessions.DeleteExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, purged)

	require.NoError(t, sessions.Delete(ctx, "user-1"))
	require.NoError(t, sessions.Delete(ctx, "user-1"))
}
