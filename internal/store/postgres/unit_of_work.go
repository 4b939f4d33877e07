package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/wolfeidau/guildhall/internal/events"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/store"
)

// unitOfWork writes through to its transaction. Rows loaded through it are
// locked until Commit or Rollback, and each aggregate is loaded once so
// its pending events are drained exactly once.
type unitOfWork struct {
	tx  pgx.Tx
	cfg *StoreConfig

	accounts   map[int64]*models.Account
	characters map[int64]*models.Character
	tracked    []events.Source

	writes int
	closed bool
}

func newUnitOfWork(tx pgx.Tx, cfg *StoreConfig) *unitOfWork {
	return &unitOfWork{
		tx:         tx,
		cfg:        cfg,
		accounts:   make(map[int64]*models.Account),
		characters: make(map[int64]*models.Character),
	}
}

func (u *unitOfWork) Accounts() store.AccountRepository     { return accountRepository{u} }
func (u *unitOfWork) Characters() store.CharacterRepository { return characterRepository{u} }

func (u *unitOfWork) Tracked() []events.Source {
	return u.tracked
}

func (u *unitOfWork) Commit(ctx context.Context) (bool, error) {
	if u.closed {
		return false, store.ErrUnitOfWorkClosed
	}
	u.closed = true

	if err := u.tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit: %w", mapPostgresError(err))
	}
	return u.writes > 0, nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	u.closed = true
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	return nil
}

func (u *unitOfWork) exec(ctx context.Context, sql string, args ...any) error {
	if u.closed {
		return store.ErrUnitOfWorkClosed
	}
	ctx, cancel := withTimeout(ctx, u.cfg)
	defer cancel()

	if _, err := u.tx.Exec(ctx, sql, args...); err != nil {
		return mapPostgresError(err)
	}
	u.writes++
	return nil
}

func (u *unitOfWork) trackAccount(a *models.Account) *models.Account {
	if loaded, ok := u.accounts[a.ID]; ok {
		return loaded
	}
	u.accounts[a.ID] = a
	u.tracked = append(u.tracked, a)
	return a
}

func (u *unitOfWork) trackCharacter(c *models.Character) *models.Character {
	if loaded, ok := u.characters[c.ID]; ok {
		return loaded
	}
	u.characters[c.ID] = c
	u.tracked = append(u.tracked, c)
	return c
}

type accountRepository struct {
	u *unitOfWork
}

func (r accountRepository) Get(ctx context.Context, accountID int64) (*models.Account, error) {
	if account, ok := r.u.accounts[accountID]; ok {
		return account, nil
	}
	ctx, cancel := withTimeout(ctx, r.u.cfg)
	defer cancel()

	account, err := getAccount(ctx, r.u.tx, `WHERE id = $1 FOR UPDATE`, accountID)
	if err != nil {
		return nil, err
	}
	return r.u.trackAccount(account), nil
}

func (r accountRepository) GetByUser(ctx context.Context, userID string) (*models.Account, error) {
	for _, account := range r.u.accounts {
		if account.UserID == userID {
			return account, nil
		}
	}
	ctx, cancel := withTimeout(ctx, r.u.cfg)
	defer cancel()

	account, err := getAccount(ctx, r.u.tx, `WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		return nil, err
	}
	return r.u.trackAccount(account), nil
}

func (r accountRepository) Add(ctx context.Context, account *models.Account) error {
	if r.u.closed {
		return store.ErrUnitOfWorkClosed
	}
	ctx, cancel := withTimeout(ctx, r.u.cfg)
	defer cancel()

	var id int64
	err := r.u.tx.QueryRow(ctx, `
		INSERT INTO accounts (user_id, name, tier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, account.UserID, account.Name, int16(account.Tier), account.CreatedAt, account.UpdatedAt).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to add account: %w", mapPostgresError(err))
	}

	if err := account.AssignID(id); err != nil {
		return err
	}
	r.u.writes++
	r.u.trackAccount(account)
	return nil
}

func (r accountRepository) Save(ctx context.Context, account *models.Account) error {
	if account.ID == 0 {
		return store.ErrAccountNotFound
	}
	err := r.u.exec(ctx, `
		UPDATE accounts
		SET name = $2, tier = $3, updated_at = $4
		WHERE id = $1
	`, account.ID, account.Name, int16(account.Tier), account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	r.u.trackAccount(account)
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
	ctx, cancel := withTimeout(ctx, r.u.cfg)
	defer cancel()

	character, err := getCharacter(ctx, r.u.tx, `WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, characterID)
	if err != nil {
		return nil, err
	}
	return r.u.trackCharacter(character), nil
}

func (r characterRepository) List(ctx context.Context, accountID int64) ([]*models.Character, error) {
	ctx, cancel := withTimeout(ctx, r.u.cfg)
	defer cancel()

	stored, err := listCharacters(ctx, r.u.tx, accountID, true)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Character, 0, len(stored))
	for _, c := range stored {
		c = r.u.trackCharacter(c)
		if !c.IsDeleted() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r characterRepository) Add(ctx context.Context, character *models.Character) error {
	if r.u.closed {
		return store.ErrUnitOfWorkClosed
	}
	ctx, cancel := withTimeout(ctx, r.u.cfg)
	defer cancel()

	var id int64
	err := r.u.tx.QueryRow(ctx, `
		INSERT INTO characters (account_id, name, class, level, experience, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, character.AccountID, character.Name, string(character.Class), int32(character.Level),
		character.Experience, character.CreatedAt, character.UpdatedAt).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to add character: %w", mapPostgresError(err))
	}

	if err := character.AssignID(id); err != nil {
		return err
	}
	r.u.writes++
	r.u.trackCharacter(character)
	return nil
}

func (r characterRepository) Save(ctx context.Context, character *models.Character) error {
	if character.ID == 0 {
		return store.ErrCharacterNotFound
	}
	err := r.u.exec(ctx, `
		UPDATE characters
		SET name = $2, level = $3, experience = $4, updated_at = $5, deleted_at = $6
		WHERE id = $1
	`, character.ID, character.Name, int32(character.Level), character.Experience,
		character.UpdatedAt, character.DeletedAt)
	if err != nil {
		return fmt.Errorf("failed to save character: %w", err)
	}
	r.u.trackCharacter(character)
	return nil
}
