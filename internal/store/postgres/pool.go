package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DefaultApplicationName is reported to PostgreSQL as application_name so
// guildhall connections can be told apart in pg_stat_activity.
const DefaultApplicationName = "guildhall"

// PoolConfig configures the connection pool shared by the session and game
// stores.
type PoolConfig struct {
	// ConnString is the PostgreSQL connection string.
	ConnString string

	// ApplicationName overrides any application_name in ConnString.
	// Default: guildhall
	ApplicationName string

	// Default: 20
	MaxConns int32
	// Default: 5
	MinConns int32

	// Default: 1h
	MaxConnLifetime time.Duration
	// Default: 30m
	MaxConnIdleTime time.Duration
	// Default: 1m
	HealthCheckPeriod time.Duration
	// Default: 10s
	ConnectTimeout time.Duration
}

// Validate checks that the pool configuration is valid.
func (c *PoolConfig) Validate() error {
	if c.ConnString == "" {
		return errors.New("connection string is required")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min conns (%d) cannot exceed max conns (%d)", c.MinConns, c.MaxConns)
	}
	return nil
}

// ApplyDefaults fills unset fields.
func (c *PoolConfig) ApplyDefaults() {
	if c.ApplicationName == "" {
		c.ApplicationName = DefaultApplicationName
	}
	if c.MaxConns == 0 {
		c.MaxConns = 20
	}
	if c.MinConns == 0 {
		c.MinConns = min(5, c.MaxConns)
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 30 * time.Minute
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = time.Minute
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

// buildPoolConfig applies defaults, validates cfg and translates it into a
// pgxpool configuration without connecting.
func buildPoolConfig(cfg *PoolConfig) (*pgxpool.Config, error) {
	if cfg == nil {
		return nil, errors.New("pool config is required")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	poolConfig.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName

	return poolConfig, nil
}

// NewPool creates the pool and pings the server to verify connectivity.
func NewPool(ctx context.Context, cfg *PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := buildPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("database", poolConfig.ConnConfig.Database).
		Str("host", poolConfig.ConnConfig.Host).
		Str("application_name", cfg.ApplicationName).
		Int32("max_conns", cfg.MaxConns).
		Msg("Connected to PostgreSQL")

	return pool, nil
}
