package subscribers

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/guildhall/internal/events"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/session"
)

// SessionUpdater is the part of the session manager SessionSync drives.
type SessionUpdater interface {
	Get(ctx context.Context, userID string) (*models.Session, error)
	BindAccount(ctx context.Context, userID string, accountID int64) error
	DeselectCharacter(ctx context.Context, userID string) error
}

// SessionSync keeps the owner's session consistent with committed account
// and character changes. Users without an active session are skipped.
type SessionSync struct {
	Sessions SessionUpdater
}

// Kinds lists the event kinds SessionSync must be registered for.
func (SessionSync) Kinds() []events.Kind {
	return []events.Kind{models.KindAccountCreated, models.KindCharacterDeleted}
}

func (SessionSync) Name() string { return "session_sync" }

func (s SessionSync) Handle(ctx context.Context, e events.Event) error {
	switch ev := e.(type) {
	case models.AccountCreated:
		err := s.Sessions.BindAccount(ctx, ev.UserID, ev.AccountID)
		if inactive(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to bind account %d: %w", ev.AccountID, err)
		}

	case models.CharacterDeleted:
		sess, err := s.Sessions.Get(ctx, ev.OwnerUserID)
		if inactive(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}
		if sess.SelectedCharacterID == nil || *sess.SelectedCharacterID != ev.CharacterID {
			return nil
		}

		if err := s.Sessions.DeselectCharacter(ctx, ev.OwnerUserID); err != nil && !inactive(err) {
			return fmt.Errorf("failed to deselect character %d: %w", ev.CharacterID, err)
		}

		zerolog.Ctx(ctx).Debug().
			Str("user_id", ev.OwnerUserID).
			Int64("character_id", ev.CharacterID).
			Msg("Deselected deleted character")
	}
	return nil
}

func inactive(err error) bool {
	return errors.Is(err, session.ErrNoSession) || errors.Is(err, session.ErrSessionExpired)
}
