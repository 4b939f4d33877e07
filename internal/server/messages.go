package server

import (
	"time"

	"github.com/wolfeidau/guildhall/internal/models"
)

type Empty struct{}

type SessionView struct {
	UserID              string     `json:"user_id"`
	AccountID           *int64     `json:"account_id,omitempty"`
	SelectedCharacterID *int64     `json:"selected_character_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	LastActivityAt      time.Time  `json:"last_activity_at"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
}

type AccountView struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Tier      string    `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CharacterView struct {
	ID         int64     `json:"id"`
	AccountID  int64     `json:"account_id"`
	Name       string    `json:"name"`
	Class      string    `json:"class"`
	Level      int       `json:"level"`
	Experience int64     `json:"experience"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type LoginResponse struct {
	Session SessionView  `json:"session"`
	Account *AccountView `json:"account,omitempty"`
}

type CreateAccountRequest struct {
	Name string `json:"name"`
}

type AccountResponse struct {
	Account AccountView `json:"account"`
}

type SetAccountTierRequest struct {
	AccountID int64  `json:"account_id"`
	Tier      string `json:"tier"`
}

type CreateCharacterRequest struct {
	Name  string `json:"name"`
	Class string `json:"class"`
}

type CharacterRequest struct {
	CharacterID int64 `json:"character_id"`
}

type GainExperienceRequest struct {
	Amount int64 `json:"amount"`
}

type RenameCharacterRequest struct {
	Name string `json:"name"`
}

type CharacterResponse struct {
	Character CharacterView `json:"character"`
}

type SessionResponse struct {
	Session SessionView `json:"session"`
}

type ListCharactersResponse struct {
	Characters []CharacterView `json:"characters"`
}

func sessionView(s *models.Session) SessionView {
	return SessionView{
		UserID:              s.UserID,
		AccountID:           s.AccountID,
		SelectedCharacterID: s.SelectedCharacterID,
		CreatedAt:           s.CreatedAt,
		LastActivityAt:      s.LastActivityAt,
		ExpiresAt:           s.ExpiresAt,
	}
}

func accountView(a *models.Account) AccountView {
	return AccountView{
		ID:        a.ID,
		UserID:    a.UserID,
		Name:      a.Name,
		Tier:      a.Tier.String(),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func characterView(c *models.Character) CharacterView {
	return CharacterView{
		ID:         c.ID,
		AccountID:  c.AccountID,
		Name:       c.Name,
		Class:      string(c.Class),
		Level:      c.Level,
		Experience: c.Experience,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}
