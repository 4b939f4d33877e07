// Package redis implements store.SessionStore on Redis. Each session is a
// JSON document whose key expires with the session.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/store"
)

const keyPrefix = "guildhall:session:"

// Connect creates a client from a redis:// URL or a host:port address and
// verifies it can reach the server.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// SessionStore keeps one key per user. Expiry is left to Redis, so it needs
// no sweeper.
type SessionStore struct {
	client     redis.UniversalClient
	defaultTTL time.Duration
}

// NewSessionStore creates a Redis session store. defaultTTL is applied when
// Put is called with a zero ttl; 0 keeps records until deleted.
func NewSessionStore(client redis.UniversalClient, defaultTTL time.Duration) *SessionStore {
	return &SessionStore{client: client, defaultTTL: defaultTTL}
}

func (s *SessionStore) Get(ctx context.Context, userID string) (*models.Session, error) {
	raw, err := s.client.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) Put(ctx context.Context, session *models.Session, ttl time.Duration) error {
	if ttl == 0 {
		ttl = s.defaultTTL
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := s.client.Set(ctx, key(session.UserID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to put session: %w", err)
	}

	log.Debug().
		Str("user_id", session.UserID).
		Int64("version", session.Version).
		Dur("ttl", ttl).
		Msg("Stored session")

	return nil
}

func (s *SessionStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// keyTTL returns the remaining key lifetime as Redis reports it.
func (s *SessionStore) keyTTL(ctx context.Context, userID string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read session ttl: %w", err)
	}
	return ttl, nil
}

func key(userID string) string {
	return keyPrefix + userID
}
