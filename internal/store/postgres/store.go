// Package postgres implements the session and game stores on PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Store owns the connection pool shared by the session and game stores.
type Store struct {
	pool *pgxpool.Pool
	cfg  *StoreConfig

	sessions *SessionStore
	games    *GameStore

	// Lifecycle
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Open connects to PostgreSQL and, when configured, applies migrations.
func Open(ctx context.Context, poolCfg *PoolConfig, cfg *StoreConfig) (*Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	pool, err := NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("Database migrations completed")
	}

	return &Store{
		pool:     pool,
		cfg:      cfg,
		sessions: newSessionStore(pool, cfg),
		games:    newGameStore(pool, cfg),
		stopCh:   make(chan struct{}),
	}, nil
}

// Sessions returns the session store.
func (s *Store) Sessions() *SessionStore { return s.sessions }

// Games returns the account and character store.
func (s *Store) Games() *GameStore { return s.games }

// Start starts background tasks.
func (s *Store) Start() error {
	log.Info().Msg("Starting PostgreSQL store")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.monitorConnectionPool()
	}()

	return nil
}

// Stop waits for background tasks and closes the pool.
func (s *Store) Stop() error {
	log.Info().Msg("Stopping PostgreSQL store")

	close(s.stopCh)
	s.wg.Wait()
	s.pool.Close()

	log.Info().Msg("PostgreSQL store stopped")
	return nil
}

// monitorConnectionPool logs connection pool statistics periodically.
func (s *Store) monitorConnectionPool() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := s.pool.Stat()
			log.Debug().
				Int32("total_conns", stats.TotalConns()).
				Int32("idle_conns", stats.IdleConns()).
				Int32("acquired_conns", stats.AcquiredConns()).
				Int64("acquire_count", stats.AcquireCount()).
				Dur("acquire_duration", stats.AcquireDuration()).
				Msg("Connection pool stats")
		case <-s.stopCh:
			return
		}
	}
}

// withTimeout bounds a single query by the configured timeout.
func withTimeout(ctx context.Context, cfg *StoreConfig) (context.Context, context.CancelFunc) {
	if cfg.QueryTimeoutSeconds <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, cfg.queryTimeout())
}
