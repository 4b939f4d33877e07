package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/guildhall/internal/auth"
	"github.com/wolfeidau/guildhall/internal/events"
	"github.com/wolfeidau/guildhall/internal/game"
	"github.com/wolfeidau/guildhall/internal/logger"
	"github.com/wolfeidau/guildhall/internal/pipeline"
	"github.com/wolfeidau/guildhall/internal/server"
	"github.com/wolfeidau/guildhall/internal/session"
	"github.com/wolfeidau/guildhall/internal/store"
	memorystore "github.com/wolfeidau/guildhall/internal/store/memory"
	postgresstore "github.com/wolfeidau/guildhall/internal/store/postgres"
	redisstore "github.com/wolfeidau/guildhall/internal/store/redis"
	"github.com/wolfeidau/guildhall/internal/subscribers"
	"github.com/wolfeidau/guildhall/internal/telemetry"
)

type ServeCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"GUILDHALL_LISTEN"`
	Cert   string `help:"path to TLS cert file" default:"" env:"GUILDHALL_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"GUILDHALL_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" env:"GUILDHALL_CORS_ORIGINS"`
	TrustProxy  bool     `help:"take the client IP from X-Forwarded-For and X-Real-IP" default:"false" env:"GUILDHALL_TRUST_PROXY"`

	// Authentication and authorization
	TokenPublicKey string `help:"path to the PEM encoded ECDSA public key that verifies bearer tokens" required:"" type:"existingfile" env:"GUILDHALL_TOKEN_PUBLIC_KEY"`
	PolicyFile     string `help:"path to the YAML authorization policy file" default:"" env:"GUILDHALL_POLICY_FILE"`

	// Telemetry
	Tracing          bool    `help:"enable tracing and metrics export" default:"false" env:"GUILDHALL_TRACING"`
	TraceSampleRatio float64 `help:"fraction of traces sampled" default:"1" env:"GUILDHALL_TRACE_SAMPLE_RATIO"`

	// Store configuration
	StoreType     string             `help:"account and character store (memory or postgres)" default:"memory" env:"GUILDHALL_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
	Redis         RedisFlags         `embed:"" prefix:"redis-"`
	Session       SessionFlags       `embed:"" prefix:"session-"`
	Kafka         KafkaFlags         `embed:"" prefix:"kafka-"`
	Pipeline      PipelineFlags      `embed:"" prefix:"pipeline-"`
}

// stores holds the backends selected by the flags.
type stores struct {
	games    store.GameStore
	sessions store.SessionStore
	closers  []func() error
}

func (s *stores) close(log zerolog.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}
}

func (c *ServeCmd) validate() error {
	if (c.Cert == "") != (c.Key == "") {
		return errors.New("TLS requires both --cert and --key")
	}
	if c.usesPostgres() {
		if err := c.PostgresStore.Validate(); err != nil {
			return err
		}
	}
	if c.Session.Store == "redis" {
		if err := c.Redis.Validate(); err != nil {
			return err
		}
	}
	for _, v := range []interface{ Validate() error }{&c.Session, &c.Kafka, &c.Pipeline} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *ServeCmd) usesPostgres() bool {
	return c.StoreType == "postgres" || c.Session.Store == "postgres"
}

func (c *ServeCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.validate(); err != nil {
		return err
	}

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	// Setup telemetry if enabled
	var interceptors []connect.Interceptor
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "guildhall-server",
			Version:     globals.Version,
			SampleRatio: c.TraceSampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
		otelInterceptor, err := otelconnect.NewInterceptor()
		if err != nil {
			return fmt.Errorf("failed to create OTEL interceptor: %w", err)
		}
		interceptors = append(interceptors, otelInterceptor)
	}

	st, err := c.openStores(ctx, log)
	if err != nil {
		return err
	}
	defer st.close(log)

	sessionOpts := []session.Option{session.WithDefaultTTL(c.Session.TTL)}
	if c.Session.SlidingTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithSlidingTTL(c.Session.SlidingTTL))
	}
	sessions := session.NewManager(st.sessions, st.games, sessionOpts...)

	if deleter, ok := st.sessions.(store.ExpiredSessionDeleter); ok && c.Session.SweepInterval > 0 {
		sweeper := session.NewSweeper(ctx, deleter, c.Session.SweepInterval)
		defer sweeper.Stop()
		log.Info().Dur("interval", c.Session.SweepInterval).Msg("Session sweeper started")
	}

	guard, err := c.buildGuard(ctx, sessions, st.games)
	if err != nil {
		return err
	}

	registry, closeRegistry, err := c.buildRegistry(sessions)
	if err != nil {
		return err
	}
	defer closeRegistry()

	p := pipeline.New(guard, st.games, events.NewDispatcher(registry),
		pipeline.WithSlowThreshold(c.Pipeline.SlowThreshold))
	svc := game.NewService(p, sessions, st.games)

	publicKey, err := os.ReadFile(c.TokenPublicKey)
	if err != nil {
		return fmt.Errorf("failed to read token public key: %w", err)
	}
	tokens, err := auth.NewTokenVerifier(string(publicKey))
	if err != nil {
		return fmt.Errorf("failed to create token verifier: %w", err)
	}

	srv := server.NewServer(svc, tokens, server.Config{
		CORSOrigins: c.CORSOrigins,
		TrustProxy:  c.TrustProxy,
	})

	httpServer := configureHTTPServer(c.Listen, srv.Handler(log, interceptors...))

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Bool("tls", c.Cert != "").Msg("Starting HTTP server")
		if c.Cert != "" {
			errCh <- httpServer.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (c *ServeCmd) openStores(ctx context.Context, log zerolog.Logger) (*stores, error) {
	st := &stores{}

	var pg *postgresstore.Store
	if c.usesPostgres() {
		var err error
		pg, err = postgresstore.Open(ctx, c.PostgresStore.poolConfig(), &postgresstore.StoreConfig{
			AutoMigrate:         c.PostgresStore.AutoMigrate,
			SessionDefaultTTL:   c.Session.TTL,
			QueryTimeoutSeconds: c.PostgresStore.QueryTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		if err := pg.Start(); err != nil {
			return nil, err
		}
		st.closers = append(st.closers, pg.Stop)
	}

	switch c.StoreType {
	case "postgres":
		st.games = pg.Games()
		log.Info().Msg("Using PostgreSQL game store")
	default:
		st.games = memorystore.NewGameStore()
		log.Info().Msg("Using in-memory game store")
	}

	switch c.Session.Store {
	case "postgres":
		st.sessions = pg.Sessions()
		log.Info().Msg("Using PostgreSQL session store")
	case "redis":
		client, err := redisstore.Connect(ctx, c.Redis.URL)
		if err != nil {
			st.close(log)
			return nil, err
		}
		st.closers = append(st.closers, client.Close)
		st.sessions = redisstore.NewSessionStore(client, c.Session.TTL)
		log.Info().Msg("Using Redis session store")
	default:
		st.sessions = memorystore.NewSessionStore(c.Session.TTL)
		log.Info().Msg("Using in-memory session store")
	}

	return st, nil
}

func (c *ServeCmd) buildGuard(ctx context.Context, sessions *session.Manager, games store.GameStore) (*auth.Guard, error) {
	policies := auth.DefaultPolicyConfig()
	if c.PolicyFile != "" {
		var err error
		policies, err = auth.LoadPolicyConfig(c.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy file: %w", err)
		}
	}

	roles, err := auth.NewStaticRoles(games, policies)
	if err != nil {
		return nil, fmt.Errorf("failed to configure roles: %w", err)
	}
	identity, err := auth.NewRegoIdentity(ctx, roles, policies.Module)
	if err != nil {
		return nil, fmt.Errorf("failed to compile authorization policy: %w", err)
	}

	return auth.NewGuard(sessions, identity, auth.AccountTiers{Accounts: games}, games), nil
}

// buildRegistry wires the event subscribers in delivery order.
func (c *ServeCmd) buildRegistry(sessions *session.Manager) (*events.Registry, func(), error) {
	sessionSync := subscribers.SessionSync{Sessions: sessions}

	registry := events.NewRegistry().
		Subscribe(subscribers.AuditLog{}).
		Subscribe(sessionSync, sessionSync.Kinds()...).
		Subscribe(subscribers.Metrics{})

	if !c.Kafka.Enabled() {
		return registry, func() {}, nil
	}

	writer, err := subscribers.NewKafkaWriter(c.Kafka.Brokers, c.Kafka.Topic)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka writer: %w", err)
	}
	publisher := subscribers.NewKafkaPublisher(writer,
		subscribers.WithMaxTries(c.Kafka.MaxTries),
		subscribers.WithWriteTimeout(c.Kafka.WriteTimeout),
		subscribers.WithPublishBudget(c.Kafka.PublishBudget),
	)
	registry.Subscribe(publisher)

	return registry, func() { _ = publisher.Close() }, nil
}
