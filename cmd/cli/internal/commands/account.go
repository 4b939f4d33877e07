package commands

import (
	"context"
	"os"
)

type LoginCmd struct {
	ClientFlags `embed:""`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := l.newClient(globals)
	if err != nil {
		return err
	}

	resp, err := c.Login(ctx)
	if err != nil {
		return err
	}

	printSession(os.Stdout, &resp.Session)
	if resp.Account != nil {
		printAccount(os.Stdout, resp.Account)
	}
	return nil
}

type LogoutCmd struct {
	ClientFlags `embed:""`
}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := l.newClient(globals)
	if err != nil {
		return err
	}
	return c.Logout(ctx)
}

// AccountCmd manages the player's account.
type AccountCmd struct {
	Create  AccountCreateCmd  `cmd:"" help:"Create an account for the logged in player"`
	SetTier AccountSetTierCmd `cmd:"" name:"set-tier" help:"Change an account's tier (admin only)"`
}

type AccountCreateCmd struct {
	ClientFlags `embed:""`
	Name        string `arg:"" help:"Account display name"`
}

func (a *AccountCreateCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := a.newClient(globals)
	if err != nil {
		return err
	}

	account, err := c.CreateAccount(ctx, a.Name)
	if err != nil {
		return err
	}

	printAccount(os.Stdout, account)
	return nil
}

type AccountSetTierCmd struct {
	ClientFlags `embed:""`
	AccountID   int64  `arg:"" help:"Account id"`
	Tier        string `arg:"" help:"basic, premium, moderator or administrator"`
}

func (a *AccountSetTierCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := a.newClient(globals)
	if err != nil {
		return err
	}

	account, err := c.SetAccountTier(ctx, a.AccountID, a.Tier)
	if err != nil {
		return err
	}

	printAccount(os.Stdout, account)
	return nil
}
