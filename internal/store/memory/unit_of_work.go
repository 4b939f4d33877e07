package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/wolfeidau/guildhall/internal/events"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/store"
)

// unitOfWork stages changes against a GameStore. It keeps an identity map
// so an aggregate loaded twice in one operation is the same instance.
// It is owned by a single operation and not safe for concurrent use.
type unitOfWork struct {
	store *GameStore

	accounts   map[int64]*models.Account
	characters map[int64]*models.Character

	dirtyAccounts   map[int64]bool
	dirtyCharacters map[int64]bool

	tracked    []events.Source
	trackedSet map[events.Source]bool
	closed     bool
}

func newUnitOfWork(s *GameStore) *unitOfWork {
	return &unitOfWork{
		store:           s,
		accounts:        make(map[int64]*models.Account),
		characters:      make(map[int64]*models.Character),
		dirtyAccounts:   make(map[int64]bool),
		dirtyCharacters: make(map[int64]bool),
		trackedSet:      make(map[events.Source]bool),
	}
}

func (u *unitOfWork) Accounts() store.AccountRepository     { return accountRepository{u} }
func (u *unitOfWork) Characters() store.CharacterRepository { return characterRepository{u} }

func (u *unitOfWork) Tracked() []events.Source {
	return slices.Clone(u.tracked)
}

func (u *unitOfWork) track(src events.Source) {
	if u.trackedSet[src] {
		return
	}
	u.trackedSet[src] = true
	u.tracked = append(u.tracked, src)
}

// Commit validates the staged changes against the current store state and
// applies all of them, or none.
func (u *unitOfWork) Commit(ctx context.Context) (bool, error) {
	if u.closed {
		return false, store.ErrUnitOfWorkClosed
	}
	u.closed = true

	if len(u.dirtyAccounts) == 0 && len(u.dirtyCharacters) == 0 {
		return false, nil
	}

	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range u.dirtyAccounts {
		account := u.accounts[id]
		if existing, ok := s.accountsByUser[account.UserID]; ok && existing != id {
			return false, fmt.Errorf("%w: %s", store.ErrAccountAlreadyExists, account.UserID)
		}
	}

	if err := u.checkCharacterNamesLocked(); err != nil {
		return false, err
	}

	for id := range u.dirtyAccounts {
		account := u.accounts[id]
		s.accounts[id] = account.Clone()
		s.accountsByUser[account.UserID] = id
	}
	for id := range u.dirtyCharacters {
		s.characters[id] = u.characters[id].Clone()
	}

	return true, nil
}

// checkCharacterNamesLocked enforces the (account, name) uniqueness over the
// state the store would hold after this commit.
func (u *unitOfWork) checkCharacterNamesLocked() error {
	type nameKey struct {
		accountID int64
		name      string
	}

	owners := make(map[nameKey]int64)
	add := func(c *models.Character) error {
		if c.IsDeleted() {
			return nil
		}
		key := nameKey{c.AccountID, models.NormalizeCharacterName(c.Name)}
		if other, ok := owners[key]; ok && other != c.ID {
			return fmt.Errorf("%w: %s", store.ErrCharacterNameTaken, c.Name)
		}
		owners[key] = c.ID
		return nil
	}

	for id, c := range u.store.characters {
		if u.dirtyCharacters[id] {
			continue
		}
		if err := add(c); err != nil {
			return err
		}
	}
	for id := range u.dirtyCharacters {
		if err := add(u.characters[id]); err != nil {
			return err
		}
	}
	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	u.closed = true
	return nil
}

type accountRepository struct {
	u *unitOfWork
}

func (r accountRepository) Get(ctx context.Context, accountID int64) (*models.Account, error) {
	if account, ok := r.u.accounts[accountID]; ok {
		return account, nil
	}
	account, err := r.u.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	r.u.accounts[accountID] = account
	r.u.track(account)
	return account, nil
}

func (r accountRepository) GetByUser(ctx context.Context, userID string) (*models.Account, error) {
	for _, account := range r.u.accounts {
		if account.UserID == userID {
			return account, nil
		}
	}
	account, err := r.u.store.GetAccountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	r.u.accounts[account.ID] = account
	r.u.track(account)
	return account, nil
}

func (r accountRepository) Add(ctx context.Context, account *models.Account) error {
	if r.u.closed {
		return store.ErrUnitOfWorkClosed
	}
	if existing, err := r.GetByUser(ctx, account.UserID); err == nil && existing != account {
		return fmt.Errorf("%w: %s", store.ErrAccountAlreadyExists, account.UserID)
	}
	if err := account.AssignID(r.u.store.allocateAccountID()); err != nil {
		return err
	}
	r.u.accounts[account.ID] = account
	r.u.dirtyAccounts[account.ID] = true
	r.u.track(account)
	return nil
}

func (r accountRepository) Save(ctx context.Context, account *models.Account) error {
	if r.u.closed {
		return store.ErrUnitOfWorkClosed
	}
	if account.ID == 0 {
		return store.ErrAccountNotFound
	}
	r.u.accounts[account.ID] = account
	r.u.dirtyAccounts[account.ID] = true
	r.u.track(account)
	return nil
}

type characterRepository struct {
	u *unitOfWork
}

func (r characterRepository) Get(ctx context.Context, characterID int64) (*models.Character, error) {
	if character, ok := r.u.characters[characterID]; ok {
		if character.IsDeleted() {
			return nil, store.ErrCharacterNotFound
		}
		return character, nil
	}
	character, err := r.u.store.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	r.u.characters[characterID] = character
	r.u.track(character)
	return character, nil
}

func (r characterRepository) List(ctx context.Context, accountID int64) ([]*models.Character, error) {
	stored, err := r.u.store.ListCharacters(ctx, accountID)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Character, len(stored))
	for _, c := range stored {
		if loaded, ok := r.u.characters[c.ID]; ok {
			c = loaded
		} else {
			r.u.characters[c.ID] = c
			r.u.track(c)
		}
		byID[c.ID] = c
	}
	for id, c := range r.u.characters {
		if c.AccountID == accountID {
			byID[id] = c
		}
	}

	out := make([]*models.Character, 0, len(byID))
	for _, c := range byID {
		if !c.IsDeleted() {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b *models.Character) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r characterRepository) Add(ctx context.Context, character *models.Character) error {
	if r.u.closed {
		return store.ErrUnitOfWorkClosed
	}
	if err := character.AssignID(r.u.store.allocateCharacterID()); err != nil {
		return err
	}
	r.u.characters[character.ID] = character
	r.u.dirtyCharacters[character.ID] = true
	r.u.track(character)
	return nil
}

func (r characterRepository) Save(ctx context.Context, character *models.Character) error {
	if r.u.closed {
		return store.ErrUnitOfWorkClosed
	}
	if character.ID == 0 {
		return store.ErrCharacterNotFound
	}
	r.u.characters[character.ID] = character
	r.u.dirtyCharacters[character.ID] = true
	r.u.track(character)
	return nil
}
