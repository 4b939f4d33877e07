package postgres

import (
	"fmt"
	"time"
)

// StoreConfig holds the store-level configuration for the PostgreSQL
// session and game stores. Pool configuration is handled separately via
// PoolConfig.
type StoreConfig struct {
	// AutoMigrate runs the embedded migrations when the store is opened.
	AutoMigrate bool

	// SessionDefaultTTL is the purge delay applied to sessions written
	// with a zero ttl. 0 keeps such sessions until they are deleted.
	SessionDefaultTTL time.Duration

	// QueryTimeoutSeconds is the maximum time a query can run before timing out.
	// Default: 10 seconds
	// Set to 0 to use context timeouts only (no additional timeout)
	QueryTimeoutSeconds int32
}

// Validate checks that the configuration is valid.
func (c *StoreConfig) Validate() error {
	if c.SessionDefaultTTL < 0 {
		return fmt.Errorf("session default ttl must not be negative")
	}
	if c.QueryTimeoutSeconds < 0 {
		return fmt.Errorf("query timeout must not be negative")
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *StoreConfig) ApplyDefaults() {
	if c.QueryTimeoutSeconds == 0 {
		c.QueryTimeoutSeconds = 10 // 10 seconds
	}
}

func (c *StoreConfig) queryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}
