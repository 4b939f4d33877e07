package server

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/guildhall/internal/auth"
	"github.com/wolfeidau/guildhall/internal/game"
	httpmiddleware "github.com/wolfeidau/guildhall/internal/http"
	"github.com/wolfeidau/guildhall/internal/models"
	"github.com/wolfeidau/guildhall/internal/pipeline"
)

// GameServiceName is the fully qualified connect service name.
const GameServiceName = "guildhall.v1.GameService"

// Procedure returns the connect procedure path for a game service method.
func Procedure(method string) string {
	return "/" + GameServiceName + "/" + method
}

// GameServer adapts the game service to connect unary handlers.
type GameServer struct {
	game *game.Service
}

func NewGameServer(svc *game.Service) *GameServer {
	return &GameServer{game: svc}
}

// register mounts every game method on mux.
func (s *GameServer) register(mux *http.ServeMux, opts ...connect.HandlerOption) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux.Handle(unary(Procedure("Login"), s.login, opts))
	mux.Handle(unary(Procedure("Logout"), s.logout, opts))
	mux.Handle(unary(Procedure("CreateAccount"), s.createAccount, opts))
	mux.Handle(unary(Procedure("SetAccountTier"), s.setAccountTier, opts))
	mux.Handle(unary(Procedure("CreateCharacter"), s.createCharacter, opts))
	mux.Handle(unary(Procedure("SelectCharacter"), s.selectCharacter, opts))
	mux.Handle(unary(Procedure("DeselectCharacter"), s.deselectCharacter, opts))
	mux.Handle(unary(Procedure("GainExperience"), s.gainExperience, opts))
	mux.Handle(unary(Procedure("RenameCharacter"), s.renameCharacter, opts))
	mux.Handle(unary(Procedure("DeleteCharacter"), s.deleteCharacter, opts))
	mux.Handle(unary(Procedure("GetCharacter"), s.getCharacter, opts))
	mux.Handle(unary(Procedure("ListCharacters"), s.listCharacters, opts))
}

// unary builds a handler that resolves the caller, runs fn and maps its
// outcome. A dispatch failure still returns the committed result.
func unary[Req, Res any](procedure string, fn func(context.Context, auth.Caller, *Req) (*Res, error), opts []connect.HandlerOption) (string, http.Handler) {
	return procedure, connect.NewUnaryHandler(procedure, func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
		res, err := fn(ctx, auth.CallerFromContext(ctx), req.Msg)
		if !pipeline.Succeeded(err) {
			return nil, toConnectError(ctx, err)
		}

		resp := connect.NewResponse(res)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("Event notification failed")
			resp.Header().Set(NotificationFailedHeader, "true")
		}
		return resp, nil
	}, opts...)
}

func (s *GameServer) login(ctx context.Context, caller auth.Caller, _ *Empty) (*LoginResponse, error) {
	result, err := s.game.Login(ctx, caller, game.LoginInput{
		ClientIP: httpmiddleware.ClientIPFromContext(ctx),
	})
	if !pipeline.Succeeded(err) {
		return nil, err
	}

	resp := &LoginResponse{Session: sessionView(result.Session)}
	if result.Account != nil {
		account := accountView(result.Account)
		resp.Account = &account
	}
	return resp, err
}

func (s *GameServer) logout(ctx context.Context, caller auth.Caller, _ *Empty) (*Empty, error) {
	return &Empty{}, s.game.Logout(ctx, caller)
}

func (s *GameServer) createAccount(ctx context.Context, caller auth.Caller, req *CreateAccountRequest) (*AccountResponse, error) {
	account, err := s.game.CreateAccount(ctx, caller, game.CreateAccountInput{Name: req.Name})
	if !pipeline.Succeeded(err) {
		return nil, err
	}
	return &AccountResponse{Account: accountView(account)}, err
}

func (s *GameServer) setAccountTier(ctx context.Context, caller auth.Caller, req *SetAccountTierRequest) (*AccountResponse, error) {
	// unknown names parse to TierNone, which validation rejects
	tier, _ := models.ParseAccountTier(req.Tier)

	account, err := s.game.SetAccountTier(ctx, caller, game.SetAccountTierInput{
		AccountID: req.AccountID,
		Tier:      tier,
	})
	if !pipeline.Succeeded(err) {
		return nil, err
	}
	return &AccountResponse{Account: accountView(account)}, err
}

func (s *GameServer) createCharacter(ctx context.Context, caller auth.Caller, req *CreateCharacterRequest) (*CharacterResponse, error) {
	character, err := s.game.CreateCharacter(ctx, caller, game.CreateCharacterInput{
		Name:  req.Name,
		Class: models.CharacterClass(req.Class),
	})
	if !pipeline.Succeeded(err) {
		return nil, err
	}
	return &CharacterResponse{Character: characterView(character)}, err
}

func (s *GameServer) selectCharacter(ctx context.Context, caller auth.Caller, req *CharacterRequest) (*SessionResponse, error) {
	sess, err := s.game.SelectCharacter(ctx, caller, req.CharacterID)
	if !pipeline.Succeeded(err) {
		return nil, err
	}
	return &SessionResponse{Session: sessionView(sess)}, err
}

func (s *GameServer) deselectCharacter(ctx context.Context, caller auth.Caller, _ *Empty) (*SessionResponse, error) {
	sess, err := s.game.DeselectCharacter(ctx, caller)
	if !pipeline.Succeeded(err) {
		return nil, err
	}
	return &SessionResponse{Session: sessionView(sess)}, err
}

func (s *GameServer) gainExperience(ctx context.Context, caller auth.Caller, req *GainExperienceRequest) (*CharacterResponse, error) {
	character, err := s.game.GainExperience(ctx, caller, req.Amount)
	if !pipeline.Succeeded(err) {
		return nil, err
	}
	return &CharacterResponse{Character: characterView(character)}, err
}

func (s *GameServer) renameCharacter(ctx context.Context, caller auth.Caller, req *RenameCharacterRequest) (*CharacterResponse, error) {
	character, err := s.game.RenameCharacter(ctx, caller, req.Name)
	if !pipeline.Succeeded(err) {
		return nil, err
	}
	return &CharacterResponse{Character: characterView(character)}, err
}

func (s *GameServer) deleteCharacter(ctx context.Context, caller auth.Caller, req *CharacterRequest) (*Empty, error) {
	return &Empty{}, s.game.DeleteCharacter(ctx, caller, req.CharacterID)
}

func (s *GameServer) getCharacter(ctx context.Context, caller auth.Caller, req *CharacterRequest) (*CharacterResponse, error) {
	character, err := s.game.GetCharacter(ctx, caller, req.CharacterID)
	if err != nil {
		return nil, err
	}
	return &CharacterResponse{Character: characterView(character)}, nil
}

func (s *GameServer) listCharacters(ctx context.Context, caller auth.Caller, _ *Empty) (*ListCharactersResponse, error) {
	characters, err := s.game.ListCharacters(ctx, caller)
	if err != nil {
		return nil, err
	}

	resp := &ListCharactersResponse{Characters: make([]CharacterView, 0, len(characters))}
	for _, c := range characters {
		resp.Characters = append(resp.Characters, characterView(c))
	}
	return resp, nil
}
