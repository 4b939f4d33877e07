package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/wolfeidau/guildhall/internal/server"
)

// CharacterCmd manages the player's characters.
type CharacterCmd struct {
	List     CharacterListCmd     `cmd:"" help:"List characters"`
	Get      CharacterGetCmd      `cmd:"" help:"Show a character"`
	Create   CharacterCreateCmd   `cmd:"" help:"Create a character"`
	Select   CharacterSelectCmd   `cmd:"" help:"Select the character to play"`
	Deselect CharacterDeselectCmd `cmd:"" help:"Clear the selected character"`
	Gain     CharacterGainCmd     `cmd:"" help:"Grant experience to the selected character"`
	Rename   CharacterRenameCmd   `cmd:"" help:"Rename the selected character"`
	Delete   CharacterDeleteCmd   `cmd:"" help:"Delete a character"`
}

type CharacterListCmd struct {
	ClientFlags `embed:""`
}

func (l *CharacterListCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := l.newClient(globals)
	if err != nil {
		return err
	}

	characters, err := c.ListCharacters(ctx)
	if err != nil {
		return err
	}

	printCharacters(os.Stdout, characters)
	return nil
}

type CharacterGetCmd struct {
	ClientFlags `embed:""`
	ID          int64 `arg:"" help:"Character id"`
}

func (g *CharacterGetCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := g.newClient(globals)
	if err != nil {
		return err
	}

	character, err := c.GetCharacter(ctx, g.ID)
	if err != nil {
		return err
	}

	printCharacters(os.Stdout, []server.CharacterView{*character})
	return nil
}

type CharacterCreateCmd struct {
	ClientFlags `embed:""`
	Name        string `arg:"" help:"Character name"`
	Class       string `help:"Character class" default:"warrior" enum:"warrior,ranger,mage,cleric"`
}

func (cc *CharacterCreateCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := cc.newClient(globals)
	if err != nil {
		return err
	}

	character, err := c.CreateCharacter(ctx, cc.Name, cc.Class)
	if err != nil {
		return err
	}

	printCharacters(os.Stdout, []server.CharacterView{*character})
	return nil
}

type CharacterSelectCmd struct {
	ClientFlags `embed:""`
	ID          int64 `arg:"" help:"Character id"`
}

func (s *CharacterSelectCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := s.newClient(globals)
	if err != nil {
		return err
	}

	sess, err := c.SelectCharacter(ctx, s.ID)
	if err != nil {
		return err
	}

	printSession(os.Stdout, sess)
	return nil
}

type CharacterDeselectCmd struct {
	ClientFlags `embed:""`
}

func (d *CharacterDeselectCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := d.newClient(globals)
	if err != nil {
		return err
	}

	sess, err := c.DeselectCharacter(ctx)
	if err != nil {
		return err
	}

	printSession(os.Stdout, sess)
	return nil
}

type CharacterGainCmd struct {
	ClientFlags `embed:""`
	Amount      int64 `arg:"" help:"Experience points"`
}

func (g *CharacterGainCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := g.newClient(globals)
	if err != nil {
		return err
	}

	character, err := c.GainExperience(ctx, g.Amount)
	if err != nil {
		return err
	}

	fmt.Printf("%s is level %d with %d experience\n", character.Name, character.Level, character.Experience)
	return nil
}

type CharacterRenameCmd struct {
	ClientFlags `embed:""`
	Name        string `arg:"" help:"New name"`
}

func (r *CharacterRenameCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := r.newClient(globals)
	if err != nil {
		return err
	}

	character, err := c.RenameCharacter(ctx, r.Name)
	if err != nil {
		return err
	}

	printCharacters(os.Stdout, []server.CharacterView{*character})
	return nil
}

type CharacterDeleteCmd struct {
	ClientFlags `embed:""`
	ID          int64 `arg:"" help:"Character id"`
}

func (d *CharacterDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := d.newClient(globals)
	if err != nil {
		return err
	}

	if err := c.DeleteCharacter(ctx, d.ID); err != nil {
		return err
	}

	fmt.Printf("Character %d deleted\n", d.ID)
	return nil
}
