package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/guildhall/internal/server"
)

type testCodec struct{}

func (testCodec) Name() string { return "json" }
func (testCodec) Marshal(msg any) ([]byte, error) { return json.Marshal(msg) }
func (testCodec) Unmarshal(data []byte, msg any) error { return json.Unmarshal(data, msg) }

func TestClient_Login(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		wantHeader string
	}{
		{name: "with token", token: "abc", wantHeader: "Bearer abc"},
		{name: "anonymous", token: "", wantHeader: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotHeader string

			mux := http.NewServeMux()
			mux.Handle(server.Procedure("Login"), connect.NewUnaryHandler(server.Procedure("Login"),
				func(ctx context.Context, req *connect.Request[server.Empty]) (*connect.Response[server.LoginResponse], error) {
					gotHeader = req.Header().Get("Authorization")
					resp := connect.NewResponse(&server.LoginResponse{Session: server.SessionView{UserID: "user-1"}})
					resp.Header().Set(server.NotificationFailedHeader, "true")
					return resp, nil
				}, connect.WithCodec(testCodec{})))

			ts := httptest.NewServer(mux)
			defer ts.Close()

			c := NewClient(Config{ServerURL: ts.URL, Token: tt.token})
			resp, err := c.Login(context.Background())
			require.NoError(t, err)
			require.Equal(t, "user-1", resp.Session.UserID)
			require.Equal(t, tt.wantHeader, gotHeader)
		})
	}
}

func TestClient_ErrorsPassThrough(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle(server.Procedure("GetCharacter"), connect.NewUnaryHandler(server.Procedure("GetCharacter"),
		func(ctx context.Context, req *connect.Request[server.CharacterRequest]) (*connect.Response[server.CharacterResponse], error) {
			return nil, connect.NewError(connect.CodeNotFound, errors.New("character not found"))
		}, connect.WithCodec(testCodec{})))

	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := NewClient(Config{ServerURL: ts.URL})
	_, err := c.GetCharacter(context.Background(), 42)
	require.Error(t, err)
	require.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}
