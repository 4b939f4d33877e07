package models

import (
	"maps"
	"time"
)

// Session binds an external identity to an account and, optionally, a
// selected character. All session data lives server side, keyed by UserID.
type Session struct {
	UserID              string     `json:"user_id"`
	AccountID           *int64     `json:"account_id,omitempty"`
	SelectedCharacterID *int64     `json:"selected_character_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	LastActivityAt      time.Time  `json:"last_activity_at"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"` // nil means no hard limit

	// Data holds forward-compatible session attributes. Values round-trip
	// through JSON in the redis and postgres stores, so numbers come back
	// as float64.
	Data map[string]any `json:"data,omitempty"`

	// Version is incremented on every write and lets callers detect
	// concurrent modification of the same user's session.
	Version int64 `json:"version"`
}

// IsExpired reports whether the session has a hard limit at or before now.
func (s *Session) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// HasAccount reports whether an account is bound to the session.
func (s *Session) HasAccount() bool {
	return s.AccountID != nil
}

// HasCharacter reports whether a character is selected.
func (s *Session) HasCharacter() bool {
	return s.SelectedCharacterID != nil
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	if s.AccountID != nil {
		id := *s.AccountID
		clone.AccountID = &id
	}
	if s.SelectedCharacterID != nil {
		id := *s.SelectedCharacterID
		clone.SelectedCharacterID = &id
	}
	if s.ExpiresAt != nil {
		at := *s.ExpiresAt
		clone.ExpiresAt = &at
	}
	if s.Data != nil {
		clone.Data = maps.Clone(s.Data)
	}
	return &clone
}
