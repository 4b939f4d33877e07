package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/store"
)

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("get missing session", func(t *testing.T) {
		s := NewSessionStore(0)
		_, err := s.Get(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrSessionNotFound)
	})

	t.Run("put replaces and clones", func(t *testing.T) {
		s := NewSessionStore(0)
		sess := &models.Session{UserID: "user-1", Data: map[string]any{"k": "v"}}
		require.NoError(t, s.Put(ctx, sess, 0))

		sess.Data["k"] = "changed"
		got, err := s.Get(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, "v", got.Data["k"])

		got.Version = 5
		require.NoError(t, s.Put(ctx, got, 0))
		again, err := s.Get(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, int64(5), again.Version)
	})

	t.Run("ttl purges record", func(t *testing.T) {
		s := NewSessionStore(0).WithClock(clock)
		require.NoError(t, s.Put(ctx, &models.Session{UserID: "user-1"}, time.Minute))

		now = now.Add(time.Minute)
		_, err := s.Get(ctx, "user-1")
		require.ErrorIs(t, err, store.ErrSessionNotFound)
	})

	t.Run("default ttl applies to zero ttl", func(t *testing.T) {
		s := NewSessionStore(time.Minute).WithClock(clock)
		require.NoError(t, s.Put(ctx, &models.Session{UserID: "user-1"}, 0))

		now = now.Add(30 * time.Second)
		_, err := s.Get(ctx, "user-1")
		require.NoError(t, err)

		now = now.Add(30 * time.Second)
		_, err = s.Get(ctx, "user-1")
		require.ErrorIs(t, err, store.ErrSessionNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := NewSessionStore(0)
		require.NoError(t, s.Put(ctx, &models.Session{UserID: "user-1"}, 0))
		require.NoError(t, s.Delete(ctx, "user-1"))
		require.NoError(t, s.Delete(ctx, "user-1"))
		require.Equal(t, 0, s.Len())
	})

	t.Run("delete expired purges both kinds", func(t *testing.T) {
		s := NewSessionStore(0).WithClock(clock)
		past := now.Add(-time.Second)
		require.NoError(t, s.Put(ctx, &models.Session{UserID: "hard-limit", ExpiresAt: &past}, 0))
		require.NoError(t, s.Put(ctx, &models.Session{UserID: "store-ttl"}, time.Second))
		require.NoError(t, s.Put(ctx, &models.Session{UserID: "live"}, 0))

		now = now.Add(time.Second)
		count, err := s.DeleteExpired(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, count)
		require.Equal(t, 1, s.Len())
	})
}
