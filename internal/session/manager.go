// Package session implements the per-user session state machine on top of
// a store.SessionStore.
//
// A user is in exactly one of NoSession, Active or Expired. While Active a
// character may be selected. Expiry is lazy: a record past its ExpiresAt is
// reported as absent by every read except Lookup and TimeToLive, whether or
// not the store has purged it yet.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/store"
	"github.com/wolfeidau/guildhall/internal/telemetry"
)

var (
	ErrNoSession      = errors.New("no active session")
	ErrSessionExpired = errors.New("session expired")
	ErrNotOwner       = errors.New("character not owned by session account")
)

// State is the lifecycle state of a user's session.
type State int

const (
	StateNone State = iota
	StateActive
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	default:
		return "none"
	}
}

// OwnershipChecker verifies that a character belongs to an account.
type OwnershipChecker interface {
	IsCharacterOwnedBy(ctx context.Context, characterID, accountID int64) (bool, error)
}

// Manager implements the session operations. It holds no per-user state of
// its own; every call reads and writes the store, so concurrent writes for
// the same user are last-writer-wins.
type Manager struct {
	sessions   store.SessionStore
	owners     OwnershipChecker
	defaultTTL time.Duration
	slidingTTL time.Duration
	retention  time.Duration
	now        func() time.Time
}

// DefaultExpiredRetention is how long the store keeps a record past its
// ExpiresAt, so the record reads as expired rather than absent.
const DefaultExpiredRetention = 5 * time.Minute

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithDefaultTTL sets the hard limit applied by Create when no explicit
// TTL is given. 0 means sessions have no hard limit.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.defaultTTL = ttl }
}

// WithSlidingTTL makes Touch extend ExpiresAt to now+ttl.
func WithSlidingTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.slidingTTL = ttl }
}

// WithExpiredRetention sets how long the store keeps a record past its
// ExpiresAt. 0 purges records at ExpiresAt.
func WithExpiredRetention(d time.Duration) Option {
	return func(m *Manager) { m.retention = d }
}

// NewManager creates a session manager.
func NewManager(sessions store.SessionStore, owners OwnershipChecker, opts ...Option) *Manager {
	m := &Manager{
		sessions:  sessions,
		owners:    owners,
		retention: DefaultExpiredRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type createOptions struct {
	accountID *int64
	ttl       *time.Duration
}

// CreateOption configures Create.
type CreateOption func(*createOptions)

// WithAccount binds the new session to an account.
func WithAccount(accountID int64) CreateOption {
	return func(o *createOptions) { o.accountID = &accountID }
}

// WithTTL gives the new session a hard limit of now+ttl.
func WithTTL(ttl time.Duration) CreateOption {
	return func(o *createOptions) { o.ttl = &ttl }
}

// Create starts a session for userID, replacing any previous record.
func (m *Manager) Create(ctx context.Context, userID string, opts ...CreateOption) (*models.Session, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	var o createOptions
	for _, opt := range opts {
		opt(&o)
	}

	now := m.now().UTC()
	s := &models.Session{
		UserID:         userID,
		AccountID:      o.accountID,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	ttl := m.defaultTTL
	if o.ttl != nil {
		ttl = *o.ttl
	}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		s.ExpiresAt = &expiresAt
	}

	if err := m.put(ctx, s); err != nil {
		return nil, err
	}

	telemetry.GetMetrics().SessionsCreatedTotal.Add(ctx, 1)
	log.Debug().Str("user_id", userID).Msg("Created session")

	return s, nil
}

// Get returns the live session for userID or ErrNoSession.
func (m *Manager) Get(ctx context.Context, userID string) (*models.Session, error) {
	state, s, err := m.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state != StateActive {
		return nil, ErrNoSession
	}
	return s, nil
}

// Lookup returns the raw record for userID together with its state. The
// record is nil only in StateNone.
func (m *Manager) Lookup(ctx context.Context, userID string) (State, *models.Session, error) {
	if userID == "" {
		return StateNone, nil, nil
	}

	s, err := m.sessions.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return StateNone, nil, nil
		}
		return StateNone, nil, fmt.Errorf("failed to load session: %w", err)
	}

	if s.IsExpired(m.now()) {
		return StateExpired, s, nil
	}
	return StateActive, s, nil
}

// Touch records activity on a live session, extending ExpiresAt when a
// sliding TTL is configured. It is a no-op when there is no live session.
func (m *Manager) Touch(ctx context.Context, userID string) error {
	state, s, err := m.Lookup(ctx, userID)
	if err != nil || state != StateActive {
		return err
	}

	now := m.now().UTC()
	s.LastActivityAt = now
	if m.slidingTTL > 0 {
		expiresAt := now.Add(m.slidingTTL)
		s.ExpiresAt = &expiresAt
	}

	return m.put(ctx, s)
}

// BindAccount attaches an account to a live session. Any selected character
// is cleared since it belonged to the previous binding.
func (m *Manager) BindAccount(ctx context.Context, userID string, accountID int64) error {
	s, err := m.active(ctx, userID)
	if err != nil {
		return err
	}

	if s.AccountID != nil && *s.AccountID == accountID {
		return nil
	}

	s.AccountID = &accountID
	s.SelectedCharacterID = nil
	return m.put(ctx, s)
}

// SelectCharacter selects a character owned by the session's account. On
// failure the record is left unchanged.
func (m *Manager) SelectCharacter(ctx context.Context, userID string, characterID int64) error {
	s, err := m.active(ctx, userID)
	if err != nil {
		return err
	}

	if s.AccountID == nil {
		return fmt.Errorf("%w: no account bound", ErrNotOwner)
	}

	owned, err := m.owners.IsCharacterOwnedBy(ctx, characterID, *s.AccountID)
	if err != nil {
		return fmt.Errorf("failed to check character ownership: %w", err)
	}
	if !owned {
		return fmt.Errorf("%w: character %d", ErrNotOwner, characterID)
	}

	s.SelectedCharacterID = &characterID
	s.LastActivityAt = m.now().UTC()
	return m.put(ctx, s)
}

// DeselectCharacter clears the selected character. It is idempotent and
// succeeds when there is no live session.
func (m *Manager) DeselectCharacter(ctx context.Context, userID string) error {
	state, s, err := m.Lookup(ctx, userID)
	if err != nil || state != StateActive || s.SelectedCharacterID == nil {
		return err
	}

	s.SelectedCharacterID = nil
	return m.put(ctx, s)
}

// SetData stores an extension attribute on a live session.
func (m *Manager) SetData(ctx context.Context, userID, key string, value any) error {
	s, err := m.active(ctx, userID)
	if err != nil {
		return err
	}

	if s.Data == nil {
		s.Data = make(map[string]any)
	}
	s.Data[key] = value
	return m.put(ctx, s)
}

// Revoke deletes the session. Revoking a missing session is not an error.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if err := m.sessions.Delete(ctx, userID); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	telemetry.GetMetrics().SessionsRevokedTotal.Add(ctx, 1)
	log.Debug().Str("user_id", userID).Msg("Revoked session")

	return nil
}

// IsValid reports whether userID has a live session.
func (m *Manager) IsValid(ctx context.Context, userID string) (bool, error) {
	state, _, err := m.Lookup(ctx, userID)
	if err != nil {
		return false, err
	}
	return state == StateActive, nil
}

// TimeToLive returns the remaining lifetime of the session. ok is false when
// there is no record or the record has no hard limit. A record past its
// limit but not yet purged reports zero, never a negative duration.
func (m *Manager) TimeToLive(ctx context.Context, userID string) (ttl time.Duration, ok bool, err error) {
	state, s, err := m.Lookup(ctx, userID)
	if err != nil || state == StateNone || s.ExpiresAt == nil {
		return 0, false, err
	}

	return max(s.ExpiresAt.Sub(m.now()), 0), true, nil
}

func (m *Manager) active(ctx context.Context, userID string) (*models.Session, error) {
	state, s, err := m.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch state {
	case StateActive:
		return s, nil
	case StateExpired:
		return nil, ErrSessionExpired
	default:
		return nil, ErrNoSession
	}
}

// put writes the record with a store TTL covering its hard limit plus the
// expired retention.
func (m *Manager) put(ctx context.Context, s *models.Session) error {
	var ttl time.Duration
	if s.ExpiresAt != nil {
		ttl = max(s.ExpiresAt.Sub(m.now())+m.retention, time.Millisecond)
	}

	s.Version++
	if err := m.sessions.Put(ctx, s, ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}
