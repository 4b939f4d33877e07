package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/wolfeidau/guildhall/internal/events"
)

const (
	// MaxLevel is the level cap.
	MaxLevel = 100

	// MaxCharactersPerAccount limits how many characters an account may own.
	MaxCharactersPerAccount = 8
)

var (
	ErrCharacterDeleted   = errors.New("character is deleted")
	ErrInvalidExperience  = errors.New("experience must be positive")
	ErrInvalidClass       = errors.New("invalid character class")
	ErrCharacterNameEmpty = errors.New("character name is empty")
)

// CharacterClass is the playable archetype chosen at creation.
type CharacterClass string

const (
	ClassWarrior CharacterClass = "warrior"
	ClassRanger  CharacterClass = "ranger"
	ClassMage    CharacterClass = "mage"
	ClassCleric  CharacterClass = "cleric"
)

// Classes lists the selectable classes.
var Classes = []CharacterClass{ClassWarrior, ClassRanger, ClassMage, ClassCleric}

// Valid reports whether c is a known class.
func (c CharacterClass) Valid() bool {
	return slices.Contains(Classes, c)
}

// ExperienceForLevel returns the total experience needed to reach level.
func ExperienceForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	n := int64(level)
	return 50 * n * (n - 1)
}

// LevelForExperience returns the level reached with xp total experience.
func LevelForExperience(xp int64) int {
	level := 1
	for level < MaxLevel && xp >= ExperienceForLevel(level+1) {
		level++
	}
	return level
}

// NormalizeCharacterName returns the key used for the per-account
// uniqueness check.
func NormalizeCharacterName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Character is the aggregate root for a playable character. AccountID
// references the owning account by identifier.
type Character struct {
	ID         int64
	AccountID  int64
	Name       string
	Class      CharacterClass
	Level      int
	Experience int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time

	events events.Buffer
}

// NewCharacter creates an unsaved level 1 character. CharacterCreated is
// raised when the store assigns the identifier.
func NewCharacter(accountID int64, name string, class CharacterClass, now time.Time) (*Character, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrCharacterNameEmpty
	}
	if !class.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidClass, class)
	}
	return &Character{
		AccountID: accountID,
		Name:      name,
		Class:     class,
		Level:     1,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// AssignID records the store-assigned identifier of a new character.
func (c *Character) AssignID(id int64) error {
	if c.ID != 0 {
		return ErrAlreadyPersisted
	}
	c.ID = id
	c.events.Record(CharacterCreated{
		Meta:        meta(c.CreatedAt),
		CharacterID: id,
		AccountID:   c.AccountID,
		Name:        c.Name,
		Class:       c.Class,
	})
	return nil
}

// IsDeleted reports whether the character was deleted.
func (c *Character) IsDeleted() bool {
	return c.DeletedAt != nil
}

// GainExperience adds experience and raises CharacterLevelledUp when one or
// more level thresholds are crossed. It returns the resulting level.
func (c *Character) GainExperience(amount int64, now time.Time) (int, error) {
	if c.IsDeleted() {
		return c.Level, ErrCharacterDeleted
	}
	if amount <= 0 {
		return c.Level, ErrInvalidExperience
	}

	c.Experience += amount
	c.UpdatedAt = now.UTC()

	previous := c.Level
	c.Level = LevelForExperience(c.Experience)
	if c.Level != previous {
		c.events.Record(CharacterLevelledUp{
			Meta:        meta(now),
			CharacterID: c.ID,
			AccountID:   c.AccountID,
			Previous:    previous,
			Current:     c.Level,
		})
	}
	return c.Level, nil
}

// Rename changes the character's display name.
func (c *Character) Rename(name string, now time.Time) error {
	if c.IsDeleted() {
		return ErrCharacterDeleted
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrCharacterNameEmpty
	}
	if name == c.Name {
		return nil
	}

	previous := c.Name
	c.Name = name
	c.UpdatedAt = now.UTC()
	c.events.Record(CharacterRenamed{
		Meta:        meta(now),
		CharacterID: c.ID,
		AccountID:   c.AccountID,
		Previous:    previous,
		Current:     name,
	})
	return nil
}

// Delete marks the character deleted on behalf of its owner.
func (c *Character) Delete(ownerUserID string, now time.Time) error {
	if c.IsDeleted() {
		return ErrCharacterDeleted
	}
	at := now.UTC()
	c.DeletedAt = &at
	c.UpdatedAt = at
	c.events.Record(CharacterDeleted{
		Meta:        meta(now),
		CharacterID: c.ID,
		AccountID:   c.AccountID,
		OwnerUserID: ownerUserID,
	})
	return nil
}

// PendingEvents returns the events raised since the last drain.
func (c *Character) PendingEvents() []events.Event {
	return c.events.Pending()
}

// DrainEvents returns and clears the buffered events.
func (c *Character) DrainEvents() []events.Event {
	return c.events.Drain()
}

// Clone copies the character state without its pending events.
func (c *Character) Clone() *Character {
	clone := *c
	if c.DeletedAt != nil {
		at := *c.DeletedAt
		clone.DeletedAt = &at
	}
	clone.events = events.Buffer{}
	return &clone
}
