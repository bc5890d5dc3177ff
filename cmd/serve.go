package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/calassist/internal/config"
	"github.com/teemow/calassist/internal/instrumentation"
	"github.com/teemow/calassist/internal/logging"
	"github.com/teemow/calassist/internal/server"
	"github.com/teemow/calassist/internal/session"
)

const (
	sessionCleanupInterval = 10 * time.Minute
	metricsStartupTimeout  = 5 * time.Second
)

// serveOverrides holds the flags that were explicitly set on the command
// line. Unset flags leave the environment configuration untouched.
type serveOverrides struct {
	port           *int
	baseURL        *string
	logFormat      *string
	metricsEnabled *bool
	metricsAddr    *string
	debug          bool
}

func (o serveOverrides) apply(cfg *config.Config) error {
	if o.port != nil {
		cfg.Port = *o.port
	}
	if o.baseURL != nil {
		cfg.BaseURL = strings.TrimSuffix(*o.baseURL, "/")
	}
	if o.logFormat != nil {
		cfg.LogFormat = *o.logFormat
	}
	if o.metricsEnabled != nil {
		cfg.MetricsEnabled = *o.metricsEnabled
	}
	if o.metricsAddr != nil {
		cfg.MetricsAddr = *o.metricsAddr
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}
	return cfg.Validate()
}

func newServeCmd() *cobra.Command {
	var (
		port           int
		baseURL        string
		logFormat      string
		metricsEnabled bool
		metricsAddr    string
		debug          bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat web service",
		Long: `Start the calassist web service.

The service loads the language model, then serves the chat UI on / and the
JSON API on /chat. Google Calendar access is granted by visiting /authorize
in a browser; the resulting token is stored in TOKEN_FILE.

Configuration is read from the environment and an optional .env file.
Flags override the corresponding environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			o := serveOverrides{debug: debug}
			flags := cmd.Flags()
			if flags.Changed("port") {
				o.port = &port
			}
			if flags.Changed("base-url") {
				o.baseURL = &baseURL
			}
			if flags.Changed("log-format") {
				o.logFormat = &logFormat
			}
			if flags.Changed("metrics") {
				o.metricsEnabled = &metricsEnabled
			}
			if flags.Changed("metrics-addr") {
				o.metricsAddr = &metricsAddr
			}
			return runServe(o)
		},
	}

	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "HTTP listen port. Can also use PORT env var.")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Public base URL used for the OAuth redirect URI. Can also use BASE_URL env var.")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format (text or json). Can also use LOG_FORMAT env var.")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics", true, "Serve Prometheus metrics on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", config.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	return cmd
}

func runServe(overrides serveOverrides) error {
	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := overrides.apply(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := setupLogger(os.Stderr, cfg, false)
	if err != nil {
		return err
	}
	logger = logging.WithService(logger, "calassist")
	if cfg.SecretKeyGenerated {
		logger.Warn("SECRET_KEY is not set, using a random key; sessions will not survive a restart")
	}

	provider, err := newInstrumentation(ctx)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	a, err := buildApp(cfg, logger, provider)
	if err != nil {
		return err
	}

	metricsServer, err := startMetricsServer(cfg, provider, logger)
	if err != nil {
		return err
	}
	if metricsServer != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown failed", logging.Err(err))
			}
		}()
	}

	sessions := session.NewManager(session.Config{
		Secret:          cfg.SecretKey,
		Timeout:         cfg.SessionTimeout,
		CleanupInterval: sessionCleanupInterval,
		Logger:          logger,
		Metrics:         provider.Metrics(),
	})
	defer sessions.Stop()

	health := server.NewHealthChecker(a.lexicon.Replies.HealthOK, a.lexicon.Replies.HealthNotLoaded)

	srv, err := server.New(server.Config{
		Addr:               cfg.ListenAddr(),
		Assistant:          a.router,
		Credentials:        a.store,
		Sessions:           sessions,
		Health:             health,
		ClientSecretFile:   cfg.ClientSecretFile,
		BaseURL:            cfg.BaseURL,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AuthorizeFailed:    a.lexicon.Replies.AuthorizeFailed,
		Logger:             logger,
		Metrics:            provider.Metrics(),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// The listener comes up before the model so probes can observe the
	// not-ready state during a long load.
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()
	logger.Info("HTTP server listening", "addr", cfg.ListenAddr(), "model", cfg.ModelName, "timezone", cfg.CalendarTimezone)

	if err := a.generator.Load(ctx); err != nil {
		shutdownServer(srv, logger)
		return fmt.Errorf("failed to load model %s: %w", cfg.ModelName, err)
	}
	health.SetReady(true)
	logger.Info("model loaded, service ready", "model", a.generator.Model())

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		if err := shutdownServer(srv, logger); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err, ok := <-serverDone:
		if ok && err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		logger.Info("HTTP server stopped normally")
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}

func shutdownServer(srv *server.Server, logger *slog.Logger) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		logger.Error("HTTP server shutdown failed", logging.Err(err))
	}
	return err
}

// startMetricsServer starts the dedicated Prometheus listener when enabled.
// It returns nil when metrics are disabled.
func startMetricsServer(cfg *config.Config, provider *instrumentation.Provider, logger *slog.Logger) (*server.MetricsServer, error) {
	if !cfg.MetricsEnabled {
		return nil, nil
	}
	if !provider.PrometheusEnabled() {
		logger.Warn("metrics server requested but the prometheus exporter is not active")
		return nil, nil
	}

	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    cfg.MetricsAddr,
		InstrumentationProvider: provider,
		Logger:                  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	// Use ready channel to confirm metrics server started successfully
	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-metricsReady:
		logger.Info("metrics server started", "addr", metricsServer.Addr())
		return metricsServer, nil
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(metricsStartupTimeout):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
}
