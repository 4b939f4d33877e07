package models

import (
	"time"

	"github.com/wolfeidau/guildhall/internal/events"
)

// Event kinds raised by the account and character aggregates.
const (
	KindAccountCreated      events.Kind = "account.created"
	KindAccountTierChanged  events.Kind = "account.tier_changed"
	KindCharacterCreated    events.Kind = "character.created"
	KindCharacterLevelledUp events.Kind = "character.levelled_up"
	KindCharacterRenamed    events.Kind = "character.renamed"
	KindCharacterDeleted    events.Kind = "character.deleted"
)

// AccountCreated is raised once an account has been assigned its identifier.
type AccountCreated struct {
	events.Meta
	AccountID int64       `json:"account_id"`
	UserID    string      `json:"user_id"`
	Name      string      `json:"name"`
	Tier      AccountTier `json:"tier"`
}

func (AccountCreated) Kind() events.Kind { return KindAccountCreated }

type AccountTierChanged struct {
	events.Meta
	AccountID int64       `json:"account_id"`
	Previous  AccountTier `json:"previous"`
	Current   AccountTier `json:"current"`
}

func (AccountTierChanged) Kind() events.Kind { return KindAccountTierChanged }

type CharacterCreated struct {
	events.Meta
	CharacterID int64          `json:"character_id"`
	AccountID   int64          `json:"account_id"`
	Name        string         `json:"name"`
	Class       CharacterClass `json:"class"`
}

func (CharacterCreated) Kind() events.Kind { return KindCharacterCreated }

// CharacterLevelledUp records a level change; a single experience grant
// can cross several levels, so Previous and Current may differ by more
// than one.
type CharacterLevelledUp struct {
	events.Meta
	CharacterID int64 `json:"character_id"`
	AccountID   int64 `json:"account_id"`
	Previous    int   `json:"previous_level"`
	Current     int   `json:"current_level"`
}

func (CharacterLevelledUp) Kind() events.Kind { return KindCharacterLevelledUp }

type CharacterRenamed struct {
	events.Meta
	CharacterID int64  `json:"character_id"`
	AccountID   int64  `json:"account_id"`
	Previous    string `json:"previous_name"`
	Current     string `json:"current_name"`
}

func (CharacterRenamed) Kind() events.Kind { return KindCharacterRenamed }

type CharacterDeleted struct {
	events.Meta
	CharacterID int64  `json:"character_id"`
	AccountID   int64  `json:"account_id"`
	OwnerUserID string `json:"owner_user_id"`
}

func (CharacterDeleted) Kind() events.Kind { return KindCharacterDeleted }

func meta(at time.Time) events.Meta {
	return events.NewMeta(at)
}
