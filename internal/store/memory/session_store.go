package memory

import (
	"context"
	"sync"
	"time"

	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/store"
)

type sessionEntry struct {
	session *models.Session
	purgeAt time.Time // zero means never
}

// SessionStore implements store.SessionStore using in-memory storage.
// This implementation is for testing and single-process development only -
// data is lost on restart.
type SessionStore struct {
	mu sync.RWMutex

	sessions   map[string]*sessionEntry // user_id -> entry
	defaultTTL time.Duration
	now        func() time.Time
}

// NewSessionStore creates a new in-memory session store. defaultTTL is
// applied when Put is called with a zero ttl; 0 keeps records until deleted.
func NewSessionStore(defaultTTL time.Duration) *SessionStore {
	return &SessionStore{
		sessions:   make(map[string]*sessionEntry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// WithClock replaces the time source used for store-side expiry.
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

// Get retrieves the session for a user.
func (s *SessionStore) Get(ctx context.Context, userID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.sessions[userID]
	if !exists || s.purged(entry) {
		return nil, store.ErrSessionNotFound
	}

	// Clone to avoid external modifications
	return entry.session.Clone(), nil
}

// Put stores the session, replacing any previous record for the user.
func (s *SessionStore) Put(ctx context.Context, session *models.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ttl == 0 {
		ttl = s.defaultTTL
	}

	entry := &sessionEntry{session: session.Clone()}
	if ttl > 0 {
		entry.purgeAt = s.now().Add(ttl)
	}
	s.sessions[session.UserID] = entry

	return nil
}

// Delete deletes the session for a user (logout).
func (s *SessionStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, userID)
	return nil
}

// DeleteExpired purges records past their store TTL or their ExpiresAt.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for userID, entry := range s.sessions {
		if s.purged(entry) || entry.session.IsExpired(now) {
			delete(s.sessions, userID)
			count++
		}
	}

	return count, nil
}

// Len returns the number of records held, including ones awaiting purge.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) purged(entry *sessionEntry) bool {
	return !entry.purgeAt.IsZero() && !s.now().Before(entry.purgeAt)
}
