package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfeidau/guildhall/internal/events"
)

var (
	ErrAlreadyPersisted = errors.New("aggregate already has an identifier")
	ErrInvalidTier      = errors.New("invalid account tier")
)

// AccountTier is an ordered account privilege level. Higher tiers satisfy
// requirements for lower ones.
type AccountTier int

const (
	TierNone AccountTier = iota
	TierBasic
	TierPremium
	TierModerator
	TierAdministrator
)

var tierNames = map[AccountTier]string{
	TierNone:          "none",
	TierBasic:         "basic",
	TierPremium:       "premium",
	TierModerator:     "moderator",
	TierAdministrator: "administrator",
}

func (t AccountTier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Valid reports whether t is one of the declared tiers.
func (t AccountTier) Valid() bool {
	_, ok := tierNames[t]
	return ok
}

// AtLeast reports whether t satisfies the minimum tier.
func (t AccountTier) AtLeast(minimum AccountTier) bool {
	return t >= minimum
}

// ParseAccountTier parses a tier name as produced by String.
func ParseAccountTier(s string) (AccountTier, error) {
	for tier, name := range tierNames {
		if strings.EqualFold(name, s) {
			return tier, nil
		}
	}
	return TierNone, fmt.Errorf("%w: %q", ErrInvalidTier, s)
}

// Account is the aggregate root for a player's account.
type Account struct {
	ID        int64
	UserID    string
	Name      string
	Tier      AccountTier
	CreatedAt time.Time
	UpdatedAt time.Time

	events events.Buffer
}

// NewAccount creates an unsaved account. AccountCreated is raised when the
// store assigns the identifier.
func NewAccount(userID, name string, tier AccountTier, now time.Time) *Account {
	return &Account{
		UserID:    userID,
		Name:      name,
		Tier:      tier,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

// AssignID records the store-assigned identifier of a new account.
func (a *Account) AssignID(id int64) error {
	if a.ID != 0 {
		return ErrAlreadyPersisted
	}
	a.ID = id
	a.events.Record(AccountCreated{
		Meta:      meta(a.CreatedAt),
		AccountID: id,
		UserID:    a.UserID,
		Name:      a.Name,
		Tier:      a.Tier,
	})
	return nil
}

// ChangeTier moves the account to a new tier. It reports false and raises
// nothing when the tier is unchanged.
func (a *Account) ChangeTier(tier AccountTier, now time.Time) (bool, error) {
	if !tier.Valid() || tier == TierNone {
		return false, fmt.Errorf("%w: %d", ErrInvalidTier, int(tier))
	}
	if tier == a.Tier {
		return false, nil
	}

	previous := a.Tier
	a.Tier = tier
	a.UpdatedAt = now.UTC()
	a.events.Record(AccountTierChanged{
		Meta:      meta(now),
		AccountID: a.ID,
		Previous:  previous,
		Current:   tier,
	})
	return true, nil
}

// PendingEvents returns the events raised since the last drain.
func (a *Account) PendingEvents() []events.Event {
	return a.events.Pending()
}

// DrainEvents returns and clears the buffered events.
func (a *Account) DrainEvents() []events.Event {
	return a.events.Drain()
}

// Clone copies the account state without its pending events.
func (a *Account) Clone() *Account {
	clone := *a
	clone.events = events.Buffer{}
	return &clone
}
