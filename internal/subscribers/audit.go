// Package subscribers holds the event subscribers registered at startup.
package subscribers

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/guildhall/internal/events"
	"github.com/wolfeidau/guildhall/internal/models"
)

// AuditLog writes one structured record per dispatched event.
type AuditLog struct{}

func (AuditLog) Name() string { return "audit_log" }

func (AuditLog) Handle(ctx context.Context, e events.Event) error {
	entry := zerolog.Ctx(ctx).Info().
		Str("event_id", e.ID().String()).
		Str("kind", string(e.Kind())).
		Time("occurred_at", e.OccurredAt())

	switch ev := e.(type) {
	case models.AccountCreated:
		entry = entry.Int64("account_id", ev.AccountID).Str("user_id", ev.UserID).Stringer("tier", ev.Tier)
	case models.AccountTierChanged:
		entry = entry.Int64("account_id", ev.AccountID).Stringer("previous", ev.Previous).Stringer("current", ev.Current)
	case models.CharacterCreated:
		entry = entry.Int64("account_id", ev.AccountID).Int64("character_id", ev.CharacterID).Str("class", string(ev.Class))
	case models.CharacterLevelledUp:
		entry = entry.Int64("character_id", ev.CharacterID).Int("previous_level", ev.Previous).Int("current_level", ev.Current)
	case models.CharacterRenamed:
		entry = entry.Int64("character_id", ev.CharacterID).Str("previous_name", ev.Previous).Str("current_name", ev.Current)
	case models.CharacterDeleted:
		entry = entry.Int64("character_id", ev.CharacterID).Str("user_id", ev.OwnerUserID)
	}

	entry.Msg("Domain event")
	return nil
}
