package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/wolfeidau/guildhall/internal/auth"
)

// TokenCmd signs a development bearer token for a user.
type TokenCmd struct {
	Subject        string        `help:"User id the token identifies" required:""`
	TTL            time.Duration `help:"Token lifetime" default:"1h"`
	SigningKey     string        `help:"PEM encoded ECDSA signing key" env:"GUILDHALL_SIGNING_KEY"`
	SigningKeyFile string        `help:"Path to the PEM encoded ECDSA signing key" type:"existingfile"`
}

func (t *TokenCmd) Run(ctx context.Context) error {
	key := t.SigningKey
	if t.SigningKeyFile != "" {
		raw, err := os.ReadFile(t.SigningKeyFile)
		if err != nil {
			return fmt.Errorf("failed to read signing key: %w", err)
		}
		key = string(raw)
	}
	if key == "" {
		return errors.New("a signing key is required (--signing-key, --signing-key-file or GUILDHALL_SIGNING_KEY)")
	}

	token, err := auth.IssueToken(key, t.Subject, t.TTL)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
