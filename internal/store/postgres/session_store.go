package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/store"
)

// SessionStore implements store.SessionStore using PostgreSQL. Records
// past purge_at are invisible and removed by DeleteExpired.
type SessionStore struct {
	pool *pgxpool.Pool
	cfg  *StoreConfig
	now  func() time.Time
}

func newSessionStore(pool *pgxpool.Pool, cfg *StoreConfig) *SessionStore {
	return &SessionStore{pool: pool, cfg: cfg, now: time.Now}
}

// Get retrieves the session for a user.
func (s *SessionStore) Get(ctx context.Context, userID string) (*models.Session, error) {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()

	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT record
		FROM sessions
		WHERE user_id = $1
		  AND (purge_at IS NULL OR purge_at > $2)
	`, userID, s.now()).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", mapPostgresError(err))
	}

	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// Put upserts the session, replacing any previous record for the user.
func (s *SessionStore) Put(ctx context.Context, session *models.Session, ttl time.Duration) error {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()

	if ttl == 0 {
		ttl = s.cfg.SessionDefaultTTL
	}

	var purgeAt *time.Time
	if ttl > 0 {
		at := s.now().Add(ttl).UTC()
		purgeAt = &at
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (user_id, record, purge_at, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE
		SET record = EXCLUDED.record,
		    purge_at = EXCLUDED.purge_at,
		    updated_at = EXCLUDED.updated_at
	`, session.UserID, raw, purgeAt)
	if err != nil {
		return fmt.Errorf("failed to put session: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("user_id", session.UserID).
		Int64("version", session.Version).
		Msg("Stored session")

	return nil
}

// Delete removes the session. Deleting a missing session is not an error.
func (s *SessionStore) Delete(ctx context.Context, userID string) error {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()

	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete session: %w", mapPostgresError(err))
	}
	return nil
}

// DeleteExpired purges every record past its purge_at.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx, s.cfg)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE purge_at <= $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", mapPostgresError(err))
	}
	return int(tag.RowsAffected()), nil
}

var (
	_ store.SessionStore          = (*SessionStore)(nil)
	_ store.ExpiredSessionDeleter = (*SessionStore)(nil)
)
