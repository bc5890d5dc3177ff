package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/teemow/calassist/internal/google"
	"github.com/teemow/calassist/internal/instrumentation"
	"github.com/teemow/calassist/internal/logging"
	"github.com/teemow/calassist/internal/session"
	"github.com/teemow/calassist/internal/web"
)

const (
	callbackPath = "/oauth2callback"

	// Chat turns wait on the model, so writes get far more room than reads.
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 3 * time.Minute
	idleTimeout       = 120 * time.Second
)

// Assistant answers chat turns.
type Assistant interface {
	Chat(ctx context.Context, text string) string
}

// CredentialStore is the part of google.Store the façade needs.
type CredentialStore interface {
	Authorized(ctx context.Context) bool
	Save(ctx context.Context, creds *google.Credentials) error
}

// Config configures a Server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	Assistant   Assistant
	Credentials CredentialStore
	Sessions    *session.Manager
	Health      *HealthChecker

	// ClientSecretFile is the Google OAuth client configuration.
	ClientSecretFile string
	// BaseURL is the public URL of the service. When empty the OAuth
	// redirect URI is derived from each request.
	BaseURL            string
	CORSAllowedOrigins []string
	// AuthorizeFailed is the plain-text body sent when authorization
	// cannot start or finish.
	AuthorizeFailed string

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Server is the HTTP façade.
type Server struct {
	router     chi.Router
	httpServer *http.Server

	assistant        Assistant
	creds            CredentialStore
	sessions         *session.Manager
	health           *HealthChecker
	clientSecretFile string
	baseURL          string
	authorizeFailed  string

	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// New builds the router and its handlers.
func New(config Config) (*Server, error) {
	if config.Assistant == nil || config.Credentials == nil || config.Sessions == nil {
		return nil, errors.New("assistant, credentials and sessions are required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithService(logger, "http")

	health := config.Health
	if health == nil {
		health = NewHealthChecker(healthStatusOK, healthStatusNotReady)
	}

	if config.BaseURL != "" {
		if err := validateHTTPSRequirement(config.BaseURL); err != nil {
			logger.Warn("OAuth redirect URI is not served over HTTPS", logging.Err(err))
		}
	}

	s := &Server{
		assistant:        config.Assistant,
		creds:            config.Credentials,
		sessions:         config.Sessions,
		health:           health,
		clientSecretFile: config.ClientSecretFile,
		baseURL:          config.BaseURL,
		authorizeFailed:  config.AuthorizeFailed,
		logger:           logger,
		metrics:          config.Metrics,
	}
	s.router = s.routes(config.CORSAllowedOrigins)
	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s, nil
}

func (s *Server) routes(allowedOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrumentationMiddleware)
	r.Use(s.recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	s.health.RegisterHealthEndpoints(r)

	r.Group(func(r chi.Router) {
		r.Use(s.sessions.Middleware)
		r.Method(http.MethodGet, "/", web.Handler())
		r.Post("/chat", s.handleChat)
		r.Get("/authorize", s.handleAuthorize)
		r.Get(callbackPath, s.handleOAuthCallback)
		r.Get("/auth_status", s.handleAuthStatus)
	})
	return r
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Health returns the server's health checker.
func (s *Server) Health() *HealthChecker {
	return s.health
}

// Start listens on the configured address and serves until Shutdown. It
// returns http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown marks the server as draining and stops it gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetShuttingDown()
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
