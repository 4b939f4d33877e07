package store

import (
	"context"
	"errors"
	"time"

	"github.com/wolfeidau/guildhall/internal/events"
	"github.com/wolfeidau/guildhall/internal/models"
)

// Sentinel errors for common error conditions
var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists for user")
	ErrCharacterNotFound    = errors.New("character not found")
	ErrCharacterNameTaken   = errors.New("character name already taken on account")
	ErrUnitOfWorkClosed     = errors.New("unit of work already committed or rolled back")
)

// SessionStore persists one session record per user.
type SessionStore interface {
	// Get returns the record for userID or ErrSessionNotFound. Records the
	// store has already purged are reported as not found; records past
	// their ExpiresAt but not yet purged are returned as-is.
	Get(ctx context.Context, userID string) (*models.Session, error)

	// Put replaces the record for session.UserID. ttl controls physical
	// expiry in the store; 0 means the store default.
	Put(ctx context.Context, session *models.Session, ttl time.Duration) error

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, userID string) error
}

// ExpiredSessionDeleter is implemented by session stores that need an
// explicit sweep to purge expired records.
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// AccountReader is the read side for accounts.
type AccountReader interface {
	GetAccount(ctx context.Context, accountID int64) (*models.Account, error)
	GetAccountByUser(ctx context.Context, userID string) (*models.Account, error)
}

// CharacterReader is the read side for characters. Deleted characters are
// never returned.
type CharacterReader interface {
	GetCharacter(ctx context.Context, characterID int64) (*models.Character, error)
	ListCharacters(ctx context.Context, accountID int64) ([]*models.Character, error)
	CharacterNameExists(ctx context.Context, accountID int64, name string) (bool, error)
	IsCharacterOwnedBy(ctx context.Context, characterID, accountID int64) (bool, error)
}

// AccountRepository is the write side for accounts inside a unit of work.
type AccountRepository interface {
	Get(ctx context.Context, accountID int64) (*models.Account, error)
	GetByUser(ctx context.Context, userID string) (*models.Account, error)

	// Add stores a new account and assigns its identifier.
	Add(ctx context.Context, account *models.Account) error
	Save(ctx context.Context, account *models.Account) error
}

// CharacterRepository is the write side for characters inside a unit of work.
type CharacterRepository interface {
	Get(ctx context.Context, characterID int64) (*models.Character, error)
	List(ctx context.Context, accountID int64) ([]*models.Character, error)

	// Add stores a new character and assigns its identifier.
	Add(ctx context.Context, character *models.Character) error
	Save(ctx context.Context, character *models.Character) error
}

// UnitOfWork is the transactional boundary of one operation. Every
// aggregate loaded or added through its repositories is tracked so the
// caller can drain their events after Commit.
type UnitOfWork interface {
	Accounts() AccountRepository
	Characters() CharacterRepository

	// Commit persists the changes and reports whether anything was written.
	Commit(ctx context.Context) (bool, error)

	// Rollback discards the changes. It is safe to call after Commit.
	Rollback(ctx context.Context) error

	// Tracked returns the aggregates touched in this unit of work.
	Tracked() []events.Source
}

// UnitOfWorkFactory begins units of work.
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// GameStore is the complete account and character store.
type GameStore interface {
	UnitOfWorkFactory
	AccountReader
	CharacterReader
}
