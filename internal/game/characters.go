package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfeidau/guildhall/internal/auth"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/pipeline"
	"github.com/wolfeidau/guildhall/internal/session"
)

// CreateCharacterInput describes a new character.
type CreateCharacterInput struct {
	Name  string
	Class models.CharacterClass
}

// CreateCharacter adds a character to the caller's account.
func (s *Service) CreateCharacter(ctx context.Context, caller auth.Caller, in CreateCharacterInput) (*models.Character, error) {
	return execute(ctx, s, caller, pipeline.Operation[*models.Character]{
		Name:        "CreateCharacter",
		Requirement: requireCreateCharacter,
		Validate: func(ctx context.Context, _ auth.Caller, sess *models.Session) ([]pipeline.Violation, error) {
			var v pipeline.Violations
			checkCharacterName(&v, in.Name)
			checkClass(&v, in.Class)

			accountID := *sess.AccountID

			taken, err := s.chars.CharacterNameExists(ctx, accountID, in.Name)
			if err != nil {
				return nil, err
			}
			if taken {
				v.Add("name", "unique", "another character on this account already uses this name")
			}

			existing, err := s.chars.ListCharacters(ctx, accountID)
			if err != nil {
				return nil, err
			}
			if len(existing) >= models.MaxCharactersPerAccount {
				v.Add("account_id", "character_limit", fmt.Sprintf("an account may have at most %d characters", models.MaxCharactersPerAccount))
			}

			return v, nil
		},
		Handle: func(ctx context.Context, req *pipeline.Request) (*models.Character, error) {
			character, err := models.NewCharacter(*req.Session.AccountID, in.Name, in.Class, s.now())
			if err != nil {
				return nil, err
			}
			if err := req.Tx.Characters().Add(ctx, character); err != nil {
				return nil, err
			}
			return character, nil
		},
	})
}

// SelectCharacter selects one of the caller's characters for play.
func (s *Service) SelectCharacter(ctx context.Context, caller auth.Caller, characterID int64) (*models.Session, error) {
	return execute(ctx, s, caller, pipeline.Operation[*models.Session]{
		Name:        "SelectCharacter",
		Requirement: requireSession,
		ReadOnly:    true,
		Handle: func(ctx context.Context, req *pipeline.Request) (*models.Session, error) {
			if err := s.sessions.SelectCharacter(ctx, req.Caller.UserID, characterID); err != nil {
				return nil, sessionFailure(err)
			}
			return s.sessions.Get(ctx, req.Caller.UserID)
		},
	})
}

// DeselectCharacter clears the caller's selected character.
func (s *Service) DeselectCharacter(ctx context.Context, caller auth.Caller) (*models.Session, error) {
	return execute(ctx, s, caller, pipeline.Operation[*models.Session]{
		Name:        "DeselectCharacter",
		Requirement: requireSession,
		ReadOnly:    true,
		Handle: func(ctx context.Context, req *pipeline.Request) (*models.Session, error) {
			if err := s.sessions.DeselectCharacter(ctx, req.Caller.UserID); err != nil {
				return nil, err
			}
			return s.sessions.Get(ctx, req.Caller.UserID)
		},
	})
}

// GainExperience grants experience to the selected character.
func (s *Service) GainExperience(ctx context.Context, caller auth.Caller, amount int64) (*models.Character, error) {
	return execute(ctx, s, caller, pipeline.Operation[*models.Character]{
		Name:        "GainExperience",
		Requirement: requireCharacter,
		Validate: func(context.Context, auth.Caller, *models.Session) ([]pipeline.Violation, error) {
			var v pipeline.Violations
			if amount <= 0 {
				v.Add("amount", "positive", "must be greater than zero")
			}
			return v, nil
		},
		Handle: func(ctx context.Context, req *pipeline.Request) (*models.Character, error) {
			character, err := req.Tx.Characters().Get(ctx, *req.Session.SelectedCharacterID)
			if err != nil {
				return nil, err
			}
			if _, err := character.GainExperience(amount, s.now()); err != nil {
				return nil, characterFailure(err)
			}
			if err := req.Tx.Characters().Save(ctx, character); err != nil {
				return nil, err
			}
			return character, nil
		},
	})
}

// RenameCharacter renames the selected character.
func (s *Service) RenameCharacter(ctx context.Context, caller auth.Caller, name string) (*models.Character, error) {
	return execute(ctx, s, caller, pipeline.Operation[*models.Character]{
		Name:        "RenameCharacter",
		Requirement: requireRename,
		Validate: func(ctx context.Context, _ auth.Caller, sess *models.Session) ([]pipeline.Violation, error) {
			var v pipeline.Violations
			checkCharacterName(&v, name)

			current, err := s.chars.GetCharacter(ctx, *sess.SelectedCharacterID)
			if err != nil {
				return nil, err
			}
			if models.NormalizeCharacterName(current.Name) == models.NormalizeCharacterName(name) {
				return v, nil
			}

			taken, err := s.chars.CharacterNameExists(ctx, *sess.AccountID, name)
			if err != nil {
				return nil, err
			}
			if taken {
				v.Add("name", "unique", "another character on this account already uses this name")
			}
			return v, nil
		},
		Handle: func(ctx context.Context, req *pipeline.Request) (*models.Character, error) {
			character, err := req.Tx.Characters().Get(ctx, *req.Session.SelectedCharacterID)
			if err != nil {
				return nil, err
			}
			if err := character.Rename(name, s.now()); err != nil {
				return nil, characterFailure(err)
			}
			if err := req.Tx.Characters().Save(ctx, character); err != nil {
				return nil, err
			}
			return character, nil
		},
	})
}

// DeleteCharacter deletes one of the caller's characters. A selected
// character is deselected once CharacterDeleted is dispatched.
func (s *Service) DeleteCharacter(ctx context.Context, caller auth.Caller, characterID int64) error {
	_, err := execute(ctx, s, caller, pipeline.Operation[struct{}]{
		Name:        "DeleteCharacter",
		Requirement: requireSession,
		Handle: func(ctx context.Context, req *pipeline.Request) (struct{}, error) {
			character, err := req.Tx.Characters().Get(ctx, characterID)
			if err != nil {
				return struct{}{}, err
			}
			if !ownedBySession(req.Session, character) {
				return struct{}{}, pipeline.Fail(pipeline.KindNotOwner, "character %d is not owned by this account", characterID)
			}
			if err := character.Delete(req.Caller.UserID, s.now()); err != nil {
				return struct{}{}, characterFailure(err)
			}
			return struct{}{}, req.Tx.Characters().Save(ctx, character)
		},
	})
	return err
}

// GetCharacter returns one of the caller's characters. Characters of other
// accounts are reported as not found.
func (s *Service) GetCharacter(ctx context.Context, caller auth.Caller, characterID int64) (*models.Character, error) {
	return execute(ctx, s, caller, pipeline.Operation[*models.Character]{
		Name:        "GetCharacter",
		Requirement: requireSession,
		ReadOnly:    true,
		Handle: func(ctx context.Context, req *pipeline.Request) (*models.Character, error) {
			character, err := req.Tx.Characters().Get(ctx, characterID)
			if err != nil {
				return nil, err
			}
			if !ownedBySession(req.Session, character) {
				return nil, pipeline.Fail(pipeline.KindNotFound, "character %d not found", characterID)
			}
			return character, nil
		},
	})
}

// ListCharacters returns the caller's characters ordered by identifier.
func (s *Service) ListCharacters(ctx context.Context, caller auth.Caller) ([]*models.Character, error) {
	return execute(ctx, s, caller, pipeline.Operation[[]*models.Character]{
		Name:        "ListCharacters",
		Requirement: requireSession,
		ReadOnly:    true,
		Handle: func(ctx context.Context, req *pipeline.Request) ([]*models.Character, error) {
			if req.Session.AccountID == nil {
				return []*models.Character{}, nil
			}
			return req.Tx.Characters().List(ctx, *req.Session.AccountID)
		},
	})
}

func ownedBySession(sess *models.Session, character *models.Character) bool {
	return sess.AccountID != nil && *sess.AccountID == character.AccountID
}

func sessionFailure(err error) error {
	switch {
	case errors.Is(err, session.ErrNotOwner):
		return &pipeline.DomainError{Kind: pipeline.KindNotOwner, Message: err.Error(), Err: err}
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrSessionExpired):
		return &pipeline.DomainError{Kind: pipeline.KindPrecondition, Message: err.Error(), Err: err}
	}
	return err
}

func characterFailure(err error) error {
	switch {
	case errors.Is(err, models.ErrCharacterDeleted):
		return &pipeline.DomainError{Kind: pipeline.KindNotFound, Message: err.Error(), Err: err}
	case errors.Is(err, models.ErrInvalidExperience), errors.Is(err, models.ErrCharacterNameEmpty):
		return &pipeline.DomainError{Kind: pipeline.KindPrecondition, Message: err.Error(), Err: err}
	}
	return err
}
