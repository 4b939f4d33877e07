package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLevelForExperience(t *testing.T) {
	tests := []struct {
		name string
		xp   int64
		want int
	}{
		{name: "no experience", xp: 0, want: 1},
		{name: "just below level 2", xp: 99, want: 1},
		{name: "exactly level 2", xp: 100, want: 2},
		{name: "level 3", xp: 300, want: 3},
		{name: "capped", xp: 1 << 40, want: MaxLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, LevelForExperience(tt.xp))
		})
	}
}

func TestNewCharacter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("trims name and starts at level 1", func(t *testing.T) {
		c, err := NewCharacter(7, "  Aria ", ClassMage, now)
		require.NoError(t, err)
		require.Equal(t, "Aria", c.Name)
		require.Equal(t, 1, c.Level)
		require.Empty(t, c.PendingEvents())
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := NewCharacter(7, "   ", ClassMage, now)
		require.ErrorIs(t, err, ErrCharacterNameEmpty)
	})

	t.Run("rejects unknown class", func(t *testing.T) {
		_, err := NewCharacter(7, "Aria", CharacterClass("bard"), now)
		require.ErrorIs(t, err, ErrInvalidClass)
	})
}

func TestCharacterEvents(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	c, err := NewCharacter(7, "Aria", ClassRanger, now)
	require.NoError(t, err)

	require.NoError(t, c.AssignID(11))
	require.ErrorIs(t, c.AssignID(12), ErrAlreadyPersisted)

	level, err := c.GainExperience(50, now)
	require.NoError(t, err)
	require.Equal(t, 1, level)

	level, err = c.GainExperience(250, now)
	require.NoError(t, err)
	require.Equal(t, 3, level)

	_, err = c.GainExperience(0, now)
	require.ErrorIs(t, err, ErrInvalidExperience)

	require.NoError(t, c.Rename("Aria", now))
	require.NoError(t, c.Rename("Arya", now))
	require.NoError(t, c.Delete("user-1", now))
	require.ErrorIs(t, c.Delete("user-1", now), ErrCharacterDeleted)

	pending := c.PendingEvents()
	require.Len(t, pending, 4)
	require.Equal(t, KindCharacterCreated, pending[0].Kind())
	require.Equal(t, KindCharacterLevelledUp, pending[1].Kind())
	require.Equal(t, KindCharacterRenamed, pending[2].Kind())
	require.Equal(t, KindCharacterDeleted, pending[3].Kind())

	levelled := pending[1].(CharacterLevelledUp)
	require.Equal(t, 1, levelled.Previous)
	require.Equal(t, 3, levelled.Current)

	drained := c.DrainEvents()
	require.Len(t, drained, 4)
	require.Empty(t, c.DrainEvents())
}

func TestCharacterCloneDropsEvents(t *testing.T) {
	c, err := NewCharacter(7, "Aria", ClassCleric, time.Now())
	require.NoError(t, err)
	require.NoError(t, c.AssignID(1))
	require.NoError(t, c.Delete("user-1", time.Now()))

	clone := c.Clone()
	require.Empty(t, clone.PendingEvents())
	require.Len(t, c.PendingEvents(), 2)

	*clone.DeletedAt = clone.DeletedAt.Add(time.Hour)
	require.NotEqual(t, *c.DeletedAt, *clone.DeletedAt)
}
