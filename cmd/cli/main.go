package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/guildhall/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Login     commands.LoginCmd     `cmd:"" help:"Start a session"`
		Logout    commands.LogoutCmd    `cmd:"" help:"End the session"`
		Account   commands.AccountCmd   `cmd:"" help:"Manage the account"`
		Character commands.CharacterCmd `cmd:"" help:"Manage characters"`
		Token     commands.TokenCmd     `cmd:"" help:"Generate a development bearer token"`
		Debug     bool                  `help:"Enable debug mode."`
		Version   kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
