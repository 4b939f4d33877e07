package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/store"
)

// GameStore implements store.GameStore using in-memory storage.
// Units of work stage their changes and apply them atomically on commit.
type GameStore struct {
	mu sync.RWMutex

	accounts       map[int64]*models.Account   // account_id -> Account
	accountsByUser map[string]int64            // user_id -> account_id
	characters     map[int64]*models.Character // character_id -> Character

	nextAccountID   int64
	nextCharacterID int64
}

// NewGameStore creates a new in-memory game store.
func NewGameStore() *GameStore {
	return &GameStore{
		accounts:       make(map[int64]*models.Account),
		accountsByUser: make(map[string]int64),
		characters:     make(map[int64]*models.Character),
	}
}

// Begin starts a new unit of work.
func (s *GameStore) Begin(ctx context.Context) (store.UnitOfWork, error) {
	return newUnitOfWork(s), nil
}

// GetAccount retrieves an account by ID.
func (s *GameStore) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[accountID]
	if !exists {
		return nil, store.ErrAccountNotFound
	}
	return account.Clone(), nil
}

// GetAccountByUser retrieves the account bound to an external user ID.
func (s *GameStore) GetAccountByUser(ctx context.Context, userID string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accountID, exists := s.accountsByUser[userID]
	if !exists {
		return nil, store.ErrAccountNotFound
	}
	return s.accounts[accountID].Clone(), nil
}

// GetCharacter retrieves a live character by ID.
func (s *GameStore) GetCharacter(ctx context.Context, characterID int64) (*models.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	character, exists := s.characters[characterID]
	if !exists || character.IsDeleted() {
		return nil, store.ErrCharacterNotFound
	}
	return character.Clone(), nil
}

// ListCharacters returns the live characters of an account ordered by ID.
func (s *GameStore) ListCharacters(ctx context.Context, accountID int64) ([]*models.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listLocked(accountID), nil
}

// CharacterNameExists reports whether a live character on the account uses name.
func (s *GameStore) CharacterNameExists(ctx context.Context, accountID int64, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := models.NormalizeCharacterName(name)
	for _, c := range s.characters {
		if c.AccountID == accountID && !c.IsDeleted() && models.NormalizeCharacterName(c.Name) == key {
			return true, nil
		}
	}
	return false, nil
}

// IsCharacterOwnedBy reports whether a live character belongs to the account.
func (s *GameStore) IsCharacterOwnedBy(ctx context.Context, characterID, accountID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.characters[characterID]
	if !exists || c.IsDeleted() {
		return false, nil
	}
	return c.AccountID == accountID, nil
}

func (s *GameStore) listLocked(accountID int64) []*models.Character {
	var out []*models.Character
	for _, c := range s.characters {
		if c.AccountID == accountID && !c.IsDeleted() {
			out = append(out, c.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.Character) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (s *GameStore) allocateAccountID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAccountID++
	return s.nextAccountID
}

func (s *GameStore) allocateCharacterID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCharacterID++
	return s.nextCharacterID
}
