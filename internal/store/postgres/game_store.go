package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/store"
)

const (
	accountColumns   = `id, user_id, name, tier, created_at, updated_at`
	characterColumns = `id, account_id, name, class, level, experience, created_at, updated_at, deleted_at`
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GameStore implements store.GameStore using PostgreSQL. Writes go through
// units of work, each backed by one transaction.
type GameStore struct {
	pool *pgxpool.Pool
	cfg  *StoreConfig
}

func newGameStore(pool *pgxpool.Pool, cfg *StoreConfig) *GameStore {
	return &GameStore{pool: pool, cfg: cfg}
}

// Begin starts a unit of work in a new transaction.
func (s *GameStore) Begin(ctx context.Context) (store.UnitOfWork, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", mapPostgresError(err))
	}
	return newUnitOfWork(tx, s.cfg), nil
}

func (s *GameStore) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()
	return getAccount(ctx, s.pool, `WHERE id = $1`, accountID)
}

func (s *GameStore) GetAccountByUser(ctx context.Context, userID string) (*models.Account, error) {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()
	return getAccount(ctx, s.pool, `WHERE user_id = $1`, userID)
}

func (s *GameStore) GetCharacter(ctx context.Context, characterID int64) (*models.Character, error) {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()
	return getCharacter(ctx, s.pool, `WHERE id = $1 AND deleted_at IS NULL`, characterID)
}

func (s *GameStore) ListCharacters(ctx context.Context, accountID int64) ([]*models.Character, error) {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()
	return listCharacters(ctx, s.pool, accountID, false)
}

func (s *GameStore) CharacterNameExists(ctx context.Context, accountID int64, name string) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()

	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM characters
			WHERE account_id = $1 AND lower(name) = $2 AND deleted_at IS NULL
		)
	`, accountID, models.NormalizeCharacterName(name)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check character name: %w", mapPostgresError(err))
	}
	return exists, nil
}

func (s *GameStore) IsCharacterOwnedBy(ctx context.Context, characterID, accountID int64) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()

	var owned bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM characters
			WHERE id = $1 AND account_id = $2 AND deleted_at IS NULL
		)
	`, characterID, accountID).Scan(&owned)
	if err != nil {
		return false, fmt.Errorf("failed to check character ownership: %w", mapPostgresError(err))
	}
	return owned, nil
}

func getAccount(ctx context.Context, q querier, where string, args ...any) (*models.Account, error) {
	row := q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts `+where, args...)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", mapPostgresError(err))
	}
	return account, nil
}

func getCharacter(ctx context.Context, q querier, where string, args ...any) (*models.Character, error) {
	row := q.QueryRow(ctx, `SELECT `+characterColumns+` FROM characters `+where, args...)
	character, err := scanCharacter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrCharacterNotFound
		}
		return nil, fmt.Errorf("failed to get character: %w", mapPostgresError(err))
	}
	return character, nil
}

func listCharacters(ctx context.Context, q querier, accountID int64, forUpdate bool) ([]*models.Character, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + characterColumns + ` FROM characters WHERE account_id = $1 AND deleted_at IS NULL ORDER BY id`)
	if forUpdate {
		sb.WriteString(` FOR UPDATE`)
	}

	rows, err := q.Query(ctx, sb.String(), accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", mapPostgresError(err))
	}

	characters, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Character, error) {
		return scanCharacter(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan characters: %w", mapPostgresError(err))
	}
	return characters, nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var (
		a    models.Account
		tier int16
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &tier, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Tier = models.AccountTier(tier)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func scanCharacter(row pgx.Row) (*models.Character, error) {
	var (
		c     models.Character
		class string
		level int32
	)
	if err := row.Scan(&c.ID, &c.AccountID, &c.Name, &class, &level, &c.Experience,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt); err != nil {
		return nil, err
	}
	c.Class = models.CharacterClass(class)
	c.Level = int(level)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

var _ store.GameStore = (*GameStore)(nil)
