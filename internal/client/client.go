package client

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/guildhall/internal/server"
)

// Config holds common client configuration
type Config struct {
	ServerURL string
	Token     string
	Timeout   time.Duration
	Debug     bool
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:8080",
		Timeout:   30 * time.Second,
		Debug:     false,
	}
}

// Client calls the game service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	opts       []connect.ClientOption
}

// NewClient creates a game service client. The configured token is sent as
// a bearer token on every call.
func NewClient(config Config, opts ...connect.ClientOption) *Client {
	httpClient := &http.Client{
		Timeout: config.Timeout,
	}

	clientOpts := append(server.ClientOptions(),
		connect.WithInterceptors(bearerToken(config.Token)))
	clientOpts = append(clientOpts, opts...)

	return &Client{
		httpClient: httpClient,
		baseURL:    config.ServerURL,
		opts:       clientOpts,
	}
}

func (c *Client) Login(ctx context.Context) (*server.LoginResponse, error) {
	return invoke[server.Empty, server.LoginResponse](ctx, c, "Login", &server.Empty{})
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := invoke[server.Empty, server.Empty](ctx, c, "Logout", &server.Empty{})
	return err
}

func (c *Client) CreateAccount(ctx context.Context, name string) (*server.AccountView, error) {
	resp, err := invoke[server.CreateAccountRequest, server.AccountResponse](ctx, c, "CreateAccount",
		&server.CreateAccountRequest{Name: name})
	if err != nil {
		return nil, err
	}
	return &resp.Account, nil
}

func (c *Client) SetAccountTier(ctx context.Context, accountID int64, tier string) (*server.AccountView, error) {
	resp, err := invoke[server.SetAccountTierRequest, server.AccountResponse](ctx, c, "SetAccountTier",
		&server.SetAccountTierRequest{AccountID: accountID, Tier: tier})
	if err != nil {
		return nil, err
	}
	return &resp.Account, nil
}

func (c *Client) CreateCharacter(ctx context.Context, name, class string) (*server.CharacterView, error) {
	resp, err := invoke[server.CreateCharacterRequest, server.CharacterResponse](ctx, c, "CreateCharacter",
		&server.CreateCharacterRequest{Name: name, Class: class})
	if err != nil {
		return nil, err
	}
	return &resp.Character, nil
}

func (c *Client) SelectCharacter(ctx context.Context, characterID int64) (*server.SessionView, error) {
	resp, err := invoke[server.CharacterRequest, server.SessionResponse](ctx, c, "SelectCharacter",
		&server.CharacterRequest{CharacterID: characterID})
	if err != nil {
		return nil, err
	}
	return &resp.Session, nil
}

func (c *Client) DeselectCharacter(ctx context.Context) (*server.SessionView, error) {
	resp, err := invoke[server.Empty, server.SessionResponse](ctx, c, "DeselectCharacter", &server.Empty{})
	if err != nil {
		return nil, err
	}
	return &resp.Session, nil
}

func (c *Client) GainExperience(ctx context.Context, amount int64) (*server.CharacterView, error) {
	resp, err := invoke[server.GainExperienceRequest, server.CharacterResponse](ctx, c, "GainExperience",
		&server.GainExperienceRequest{Amount: amount})
	if err != nil {
		return nil, err
	}
	return &resp.Character, nil
}

func (c *Client) RenameCharacter(ctx context.Context, name string) (*server.CharacterView, error) {
	resp, err := invoke[server.RenameCharacterRequest, server.CharacterResponse](ctx, c, "RenameCharacter",
		&server.RenameCharacterRequest{Name: name})
	if err != nil {
		return nil, err
	}
	return &resp.Character, nil
}

func (c *Client) DeleteCharacter(ctx context.Context, characterID int64) error {
	_, err := invoke[server.CharacterRequest, server.Empty](ctx, c, "DeleteCharacter",
		&server.CharacterRequest{CharacterID: characterID})
	return err
}

func (c *Client) GetCharacter(ctx context.Context, characterID int64) (*server.CharacterView, error) {
	resp, err := invoke[server.CharacterRequest, server.CharacterResponse](ctx, c, "GetCharacter",
		&server.CharacterRequest{CharacterID: characterID})
	if err != nil {
		return nil, err
	}
	return &resp.Character, nil
}

func (c *Client) ListCharacters(ctx context.Context) ([]server.CharacterView, error) {
	resp, err := invoke[server.Empty, server.ListCharactersResponse](ctx, c, "ListCharacters", &server.Empty{})
	if err != nil {
		return nil, err
	}
	return resp.Characters, nil
}

func invoke[Req, Res any](ctx context.Context, c *Client, method string, msg *Req) (*Res, error) {
	rpc := connect.NewClient[Req, Res](c.httpClient, c.baseURL+server.Procedure(method), c.opts...)

	resp, err := rpc.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}

	if resp.Header().Get(server.NotificationFailedHeader) == "true" {
		log.Warn().Str("method", method).Msg("Change was saved but some notifications failed")
	}
	return resp.Msg, nil
}

func bearerToken(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token != "" && req.Spec().IsClient {
				req.Header().Set("Authorization", "Bearer "+token)
			}
			return next(ctx, req)
		}
	}
}
