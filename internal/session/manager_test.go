package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/guildhall/internal/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// owners maps character id to account id.
type owners map[int64]int64

func (o owners) IsCharacterOwnedBy(_ context.Context, characterID, accountID int64) (bool, error) {
	owner, ok := o[characterID]
	return ok && owner == accountID, nil
}

type failingOwners struct{}

func (failingOwners) IsCharacterOwnedBy(context.Context, int64, int64) (bool, error) {
	return false, errors.New("store unavailable")
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *memory.SessionStore, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	sessions := memory.NewSessionStore(0).WithClock(clock.Now)
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewManager(sessions, owners{7: 1, 8: 1, 9: 2}, opts...), sessions, clock
}

func TestManager_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates active session", func(t *testing.T) {
		m, _, clock := newTestManager(t)

		s, err := m.Create(ctx, "user-1", WithAccount(1))
		require.NoError(t, err)
		require.Equal(t, "user-1", s.UserID)
		require.Equal(t, int64(1), *s.AccountID)
		require.Nil(t, s.SelectedCharacterID)
		require.Nil(t, s.ExpiresAt)
		require.Equal(t, clock.Now(), s.CreatedAt)
		require.Equal(t, int64(1), s.Version)

		valid, err := m.IsValid(ctx, "user-1")
		require.NoError(t, err)
		require.True(t, valid)
	})

	t.Run("empty user id rejected", func(t *testing.T) {
		m, _, _ := newTestManager(t)

		_, err := m.Create(ctx, "")
		require.Error(t, err)
	})

	t.Run("replaces previous session", func(t *testing.T) {
		m, _, _ := newTestManager(t)

		_, err := m.Create(ctx, "user-1", WithAccount(1))
		require.NoError(t, err)
		require.NoError(t, m.SelectCharacter(ctx, "user-1", 7))

		_, err = m.Create(ctx, "user-1", WithAccount(1))
		require.NoError(t, err)

		s, err := m.Get(ctx, "user-1")
		require.NoError(t, err)
		require.Nil(t, s.SelectedCharacterID)
	})

	t.Run("default ttl applied", func(t *testing.T) {
		m, _, clock := newTestManager(t, WithDefaultTTL(time.Hour))

		s, err := m.Create(ctx, "user-1")
		require.NoError(t, err)
		require.NotNil(t, s.ExpiresAt)
		require.Equal(t, clock.Now().Add(time.Hour), *s.ExpiresAt)
	})

	t.Run("data recorded on live session", func(t *testing.T) {
		m, _, _ := newTestManager(t)

		require.ErrorIs(t, m.SetData(ctx, "user-1", "client_ip", "10.0.0.1"), ErrNoSession)

		_, err := m.Create(ctx, "user-1")
		require.NoError(t, err)
		require.NoError(t, m.SetData(ctx, "user-1", "client_ip", "10.0.0.1"))

		s, err := m.Get(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, "10.0.0.1", s.Data["client_ip"])
	})
}

func TestManager_Expiry(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestManager(t)

	_, err := m.Create(ctx, "user-1", WithAccount(1), WithTTL(30*time.Second))
	require.NoError(t, err)

	ttl, ok, err := m.TimeToLive(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 30*time.Second, ttl)

	clock.Advance(31 * time.Second)

	valid, err := m.IsValid(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, valid)

	_, err = m.Get(ctx, "user-1")
	require.ErrorIs(t, err, ErrNoSession)

	err = m.SelectCharacter(ctx, "user-1", 7)
	require.ErrorIs(t, err, ErrSessionExpired)

	ttl, ok, err = m.TimeToLive(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, ttl)

	// The store purges the record once the retention has passed.
	clock.Advance(DefaultExpiredRetention)

	state, _, err := m.Lookup(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, StateNone, state)

	_, ok, err = m.TimeToLive(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestManager_ExpiryWithoutRetention(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestManager(t, WithExpiredRetention(0))

	_, err := m.Create(ctx, "user-1", WithTTL(30*time.Second))
	require.NoError(t, err)

	clock.Advance(30 * time.Second)

	state, _, err := m.Lookup(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, StateNone, state)
}

func TestManager_ExpiredButNotPurged(t *testing.T) {
	ctx := context.Background()

	clock := newFakeClock()
	// Store clock lags so the record outlives its ExpiresAt.
	sessions := memory.NewSessionStore(0)
	m := NewManager(sessions, owners{}, WithClock(clock.Now))

	_, err := m.Create(ctx, "user-1", WithTTL(time.Minute))
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	state, s, err := m.Lookup(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, StateExpired, state)
	require.NotNil(t, s)

	ttl, ok, err := m.TimeToLive(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, ttl)

	valid, err := m.IsValid(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, valid)

	require.ErrorIs(t, m.SelectCharacter(ctx, "user-1", 7), ErrSessionExpired)
	require.ErrorIs(t, m.BindAccount(ctx, "user-1", 1), ErrSessionExpired)
}

func TestManager_SelectCharacter(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		accountID   *int64
		characterID int64
		wantErr     error
	}{
		{name: "owned character", accountID: ptr(int64(1)), characterID: 7},
		{name: "character of other account", accountID: ptr(int64(1)), characterID: 9, wantErr: ErrNotOwner},
		{name: "unknown character", accountID: ptr(int64(1)), characterID: 99, wantErr: ErrNotOwner},
		{name: "no account bound", characterID: 7, wantErr: ErrNotOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _ := newTestManager(t)

			var opts []CreateOption
			if tt.accountID != nil {
				opts = append(opts, WithAccount(*tt.accountID))
			}
			before, err := m.Create(ctx, "user-1", opts...)
			require.NoError(t, err)

			err = m.SelectCharacter(ctx, "user-1", tt.characterID)
			after, getErr := m.Get(ctx, "user-1")
			require.NoError(t, getErr)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Equal(t, before, after)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.characterID, *after.SelectedCharacterID)
		})
	}

	t.Run("no session", func(t *testing.T) {
		m, _, _ := newTestManager(t)
		require.ErrorIs(t, m.SelectCharacter(ctx, "user-1", 7), ErrNoSession)
	})

	t.Run("ownership check failure", func(t *testing.T) {
		clock := newFakeClock()
		m := NewManager(memory.NewSessionStore(0), failingOwners{}, WithClock(clock.Now))

		_, err := m.Create(ctx, "user-1", WithAccount(1))
		require.NoError(t, err)

		err = m.SelectCharacter(ctx, "user-1", 7)
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrNotOwner)
	})

	t.Run("select twice keeps single selection", func(t *testing.T) {
		m, _, _ := newTestManager(t)

		_, err := m.Create(ctx, "user-1", WithAccount(1))
		require.NoError(t, err)
		require.NoError(t, m.SelectCharacter(ctx, "user-1", 7))
		require.NoError(t, m.SelectCharacter(ctx, "user-1", 8))

		s, err := m.Get(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, int64(8), *s.SelectedCharacterID)
	})
}

func TestManager_DeselectCharacter(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	require.NoError(t, m.DeselectCharacter(ctx, "user-1"), "no session is not an error")

	_, err := m.Create(ctx, "user-1", WithAccount(1))
	require.NoError(t, err)
	require.NoError(t, m.SelectCharacter(ctx, "user-1", 7))

	require.NoError(t, m.DeselectCharacter(ctx, "user-1"))
	first, err := m.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Nil(t, first.SelectedCharacterID)

	require.NoError(t, m.DeselectCharacter(ctx, "user-1"))
	second, err := m.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestManager_Revoke(t *testing.T) {
	ctx := context.Background()
	m, sessions, _ := newTestManager(t)

	_, err := m.Create(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, "user-1"))
	require.NoError(t, m.Revoke(ctx, "user-1"))
	require.Zero(t, sessions.Len())

	state, s, err := m.Lookup(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, StateNone, state)
	require.Nil(t, s)

	_, ok, err := m.TimeToLive(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestManager_Touch(t *testing.T) {
	ctx := context.Background()

	t.Run("sliding ttl extends expiry", func(t *testing.T) {
		m, _, clock := newTestManager(t, WithSlidingTTL(time.Minute))

		_, err := m.Create(ctx, "user-1", WithTTL(time.Minute))
		require.NoError(t, err)

		clock.Advance(45 * time.Second)
		require.NoError(t, m.Touch(ctx, "user-1"))

		clock.Advance(45 * time.Second)
		valid, err := m.IsValid(ctx, "user-1")
		require.NoError(t, err)
		require.True(t, valid)
	})

	t.Run("no sliding ttl only records activity", func(t *testing.T) {
		m, _, clock := newTestManager(t)

		created, err := m.Create(ctx, "user-1", WithTTL(time.Minute))
		require.NoError(t, err)

		clock.Advance(10 * time.Second)
		require.NoError(t, m.Touch(ctx, "user-1"))

		s, err := m.Get(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, *created.ExpiresAt, *s.ExpiresAt)
		require.Equal(t, clock.Now(), s.LastActivityAt)
	})

	t.Run("no session is a no-op", func(t *testing.T) {
		m, sessions, _ := newTestManager(t)
		require.NoError(t, m.Touch(ctx, "user-1"))
		require.Zero(t, sessions.Len())
	})
}

func TestManager_BindAccount(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	require.ErrorIs(t, m.BindAccount(ctx, "user-1", 1), ErrNoSession)

	_, err := m.Create(ctx, "user-1", WithAccount(1))
	require.NoError(t, err)
	require.NoError(t, m.SelectCharacter(ctx, "user-1", 7))

	require.NoError(t, m.BindAccount(ctx, "user-1", 1))
	s, err := m.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(7), *s.SelectedCharacterID, "rebinding the same account keeps the selection")

	require.NoError(t, m.BindAccount(ctx, "user-1", 2))
	s, err = m.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(2), *s.AccountID)
	require.Nil(t, s.SelectedCharacterID)
}

func TestManager_VersionIncrements(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	_, err := m.Create(ctx, "user-1", WithAccount(1))
	require.NoError(t, err)
	require.NoError(t, m.SelectCharacter(ctx, "user-1", 7))
	require.NoError(t, m.SetData(ctx, "user-1", "k", "v"))

	s, err := m.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(3), s.Version)
}

func TestSweeper(t *testing.T) {
	ctx := context.Background()
	m, sessions, clock := newTestManager(t)

	_, err := m.Create(ctx, "user-1", WithTTL(time.Minute))
	require.NoError(t, err)
	_, err = m.Create(ctx, "user-2")
	require.NoError(t, err)

	sw := NewSweeper(ctx, sessions, time.Hour)
	defer sw.Stop()

	count, err := sw.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	clock.Advance(2 * time.Minute)

	count, err = sw.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, 1, sessions.Len())
}

func ptr[T any](v T) *T { return &v }
