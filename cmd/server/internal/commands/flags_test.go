package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validServe() *ServeCmd {
	return &ServeCmd{
		StoreType: "memory",
		Session:   SessionFlags{Store: "memory", TTL: 24 * time.Hour, SweepInterval: time.Minute},
		Kafka:     KafkaFlags{Topic: "guildhall.events", MaxTries: 3, WriteTimeout: 2 * time.Second, PublishBudget: 5 * time.Second},
		Pipeline:  PipelineFlags{SlowThreshold: 500 * time.Millisecond},
		PostgresStore: PostgresStoreFlags{
			MaxConns: 20,
			MinConns: 5,
		},
	}
}

func TestServeCmd_validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ServeCmd)
		wantErr string
	}{
		{name: "memory defaults", mutate: func(c *ServeCmd) {}},
		{
			name:    "postgres store needs a connection string",
			mutate:  func(c *ServeCmd) { c.StoreType = "postgres" },
			wantErr: "connection string is required",
		},
		{
			name:    "postgres sessions need a connection string",
			mutate:  func(c *ServeCmd) { c.Session.Store = "postgres" },
			wantErr: "connection string is required",
		},
		{
			name: "postgres with connection string",
			mutate: func(c *ServeCmd) {
				c.StoreType = "postgres"
				c.PostgresStore.ConnString = "postgres://localhost/guildhall"
			},
		},
		{
			name: "min conns above max conns",
			mutate: func(c *ServeCmd) {
				c.StoreType = "postgres"
				c.PostgresStore.ConnString = "postgres://localhost/guildhall"
				c.PostgresStore.MinConns = 50
			},
			wantErr: "cannot exceed max conns",
		},
		{
			name:    "redis sessions need a url",
			mutate:  func(c *ServeCmd) { c.Session.Store = "redis" },
			wantErr: "redis URL is required",
		},
		{
			name:    "kafka brokers need a topic",
			mutate:  func(c *ServeCmd) { c.Kafka.Brokers = []string{"localhost:9092"}; c.Kafka.Topic = "" },
			wantErr: "kafka topic is required",
		},
		{
			name:    "kafka topic ignored without brokers",
			mutate:  func(c *ServeCmd) { c.Kafka.Topic = "" },
			wantErr: "",
		},
		{
			name: "negative kafka publish budget",
			mutate: func(c *ServeCmd) {
				c.Kafka.Brokers = []string{"localhost:9092"}
				c.Kafka.PublishBudget = -time.Second
			},
			wantErr: "publish budget cannot be negative",
		},
		{
			name:    "cert without key",
			mutate:  func(c *ServeCmd) { c.Cert = "cert.pem" },
			wantErr: "TLS requires both",
		},
		{
			name:    "negative session ttl",
			mutate:  func(c *ServeCmd) { c.Session.TTL = -time.Second },
			wantErr: "cannot be negative",
		},
		{
			name:    "negative slow threshold",
			mutate:  func(c *ServeCmd) { c.Pipeline.SlowThreshold = -time.Second },
			wantErr: "cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validServe()
			tt.mutate(c)

			err := c.validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
