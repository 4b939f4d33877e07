package commands

import (
	"errors"
	"fmt"
	"time"

	postgresstore "github.com/wolfeidau/guildhall/internal/store/postgres"
)

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	ApplicationName string        `help:"application_name reported to PostgreSQL" default:"guildhall" env:"GUILDHALL_POSTGRES_APPLICATION_NAME"`
	MaxConns        int32         `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`
	QueryTimeout    int32         `help:"query timeout in seconds, 0 relies on request contexts only" default:"10"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"GUILDHALL_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	if s.MinConns > s.MaxConns {
		return fmt.Errorf("postgres min conns (%d) cannot exceed max conns (%d)", s.MinConns, s.MaxConns)
	}
	return nil
}

func (s *PostgresStoreFlags) poolConfig() *postgresstore.PoolConfig {
	return &postgresstore.PoolConfig{
		ConnString:      s.ConnString,
		ApplicationName: s.ApplicationName,
		MaxConns:        s.MaxConns,
		MinConns:        s.MinConns,
		MaxConnLifetime: s.MaxConnLifetime,
		MaxConnIdleTime: s.MaxConnIdleTime,
	}
}

type RedisFlags struct {
	URL string `help:"Redis URL or host:port for the session store" env:"GUILDHALL_REDIS_URL"`
}

func (r *RedisFlags) Validate() error {
	if r.URL == "" {
		return errors.New("redis URL is required for the redis session store (--redis-url or GUILDHALL_REDIS_URL)")
	}
	return nil
}

// KafkaFlags configures publishing of domain events. Publishing is disabled
// when no brokers are given.
type KafkaFlags struct {
	Brokers       []string      `help:"Kafka broker addresses" env:"GUILDHALL_KAFKA_BROKERS"`
	Topic         string        `help:"topic domain events are published to" default:"guildhall.events" env:"GUILDHALL_KAFKA_TOPIC"`
	MaxTries      uint          `help:"publish attempts per event" default:"3"`
	WriteTimeout  time.Duration `help:"timeout for a single publish attempt" default:"2s"`
	PublishBudget time.Duration `help:"upper bound on the time spent publishing one event, retries included" default:"5s"`
}

func (k *KafkaFlags) Enabled() bool {
	return len(k.Brokers) > 0
}

func (k *KafkaFlags) Validate() error {
	if !k.Enabled() {
		return nil
	}
	if k.Topic == "" {
		return errors.New("kafka topic is required when brokers are configured")
	}
	if k.MaxTries == 0 {
		return errors.New("kafka max tries must be at least 1")
	}
	if k.WriteTimeout <= 0 || k.PublishBudget < 0 {
		return errors.New("kafka write timeout must be positive and publish budget cannot be negative")
	}
	return nil
}

type SessionFlags struct {
	Store         string        `help:"session store (memory, redis or postgres)" default:"memory" env:"GUILDHALL_SESSION_STORE" enum:"memory,redis,postgres"`
	TTL           time.Duration `help:"hard session lifetime, 0 disables the limit" default:"24h" env:"GUILDHALL_SESSION_TTL"`
	SlidingTTL    time.Duration `help:"extend the session by this much on activity, 0 disables" default:"0s" env:"GUILDHALL_SESSION_SLIDING_TTL"`
	SweepInterval time.Duration `help:"how often expired sessions are purged, 0 disables" default:"1m" env:"GUILDHALL_SESSION_SWEEP_INTERVAL"`
}

func (s *SessionFlags) Validate() error {
	if s.TTL < 0 || s.SlidingTTL < 0 || s.SweepInterval < 0 {
		return errors.New("session durations cannot be negative")
	}
	return nil
}

type PipelineFlags struct {
	SlowThreshold time.Duration `help:"operations slower than this are reported, 0 disables" default:"500ms" env:"GUILDHALL_SLOW_THRESHOLD"`
}

func (p *PipelineFlags) Validate() error {
	if p.SlowThreshold < 0 {
		return errors.New("slow threshold cannot be negative")
	}
	return nil
}
