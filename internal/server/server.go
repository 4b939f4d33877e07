package server

import (
	"net/http"

	"connectrpc.com/connect"
	connectcors "connectrpc.com/cors"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/guildhall/internal/auth"
	"github.com/wolfeidau/guildhall/internal/game"
	httpmiddleware "github.com/wolfeidau/guildhall/internal/http"
	"github.com/wolfeidau/guildhall/internal/logger"
)

// Config controls the HTTP surface of the server.
type Config struct {
	// CORSOrigins lists the browser origins allowed to call the API. CORS
	// is disabled when empty.
	CORSOrigins []string

	// TrustProxy makes client IP extraction honour forwarding headers.
	TrustProxy bool
}

// Server wraps the HTTP server and game service
type Server struct {
	cfg    Config
	tokens *auth.TokenVerifier
	game   *GameServer
}

// NewServer creates a new server. Callers are identified by bearer tokens
// checked with tokens.
func NewServer(svc *game.Service, tokens *auth.TokenVerifier, cfg Config) *Server {
	return &Server{
		cfg:    cfg,
		tokens: tokens,
		game:   NewGameServer(svc),
	}
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler(log zerolog.Logger, interceptors ...connect.Interceptor) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	interceptors = append([]connect.Interceptor{logger.NewConnectRequests(log)}, interceptors...)
	s.game.register(mux, connect.WithInterceptors(interceptors...))

	var handler http.Handler = mux
	handler = s.tokens.Middleware()(handler)
	handler = httpmiddleware.ClientIPMiddleware(s.cfg.TrustProxy)(handler)

	if len(s.cfg.CORSOrigins) > 0 {
		handler = withCORS(s.cfg.CORSOrigins, handler)
	}

	return handler
}

// withCORS adds CORS support to a Connect HTTP handler.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: connectcors.AllowedMethods(),
		AllowedHeaders: append(connectcors.AllowedHeaders(), "Authorization"),
		ExposedHeaders: append(connectcors.ExposedHeaders(),
			NotificationFailedHeader, ViolationHeader, DenialHeader),
	})
	return middleware.Handler(h)
}
