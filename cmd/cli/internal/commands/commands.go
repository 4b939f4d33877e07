package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/wolfeidau/guildhall/internal/client"
	"github.com/wolfeidau/guildhall/internal/server"
)

type Globals struct {
	Debug   bool
	Version string
}

// ClientFlags are shared by every command that calls the server.
type ClientFlags struct {
	Server  string        `help:"Server URL" default:"http://localhost:8080" env:"GUILDHALL_SERVER"`
	Token   string        `help:"Bearer token identifying the player" env:"GUILDHALL_TOKEN"`
	Timeout time.Duration `help:"Request timeout" default:"30s"`
}

func (f *ClientFlags) newClient(globals *Globals) (*client.Client, error) {
	otelInterceptor, err := otelconnect.NewInterceptor()
	if err != nil {
		return nil, fmt.Errorf("failed to create interceptor: %w", err)
	}

	config := client.Config{
		ServerURL: f.Server,
		Token:     f.Token,
		Timeout:   f.Timeout,
		Debug:     globals.Debug,
	}
	return client.NewClient(config, connect.WithInterceptors(otelInterceptor)), nil
}

func printSession(out io.Writer, s *server.SessionView) {
	fmt.Fprintf(out, "User:      %s\n", s.UserID)
	fmt.Fprintf(out, "Account:   %s\n", optionalID(s.AccountID))
	fmt.Fprintf(out, "Character: %s\n", optionalID(s.SelectedCharacterID))
	if s.ExpiresAt != nil {
		fmt.Fprintf(out, "Expires:   %s\n", s.ExpiresAt.Local().Format(time.RFC3339))
	}
}

func printAccount(out io.Writer, a *server.AccountView) {
	fmt.Fprintf(out, "Account %d (%s) tier=%s\n", a.ID, a.Name, a.Tier)
}

func printCharacters(out io.Writer, characters []server.CharacterView) {
	if len(characters) == 0 {
		fmt.Fprintln(out, "No characters found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCLASS\tLEVEL\tEXPERIENCE")
	for _, c := range characters {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n", c.ID, c.Name, c.Class, c.Level, c.Experience)
	}
	_ = w.Flush()
}

func optionalID(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *id)
}
