package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/teemow/calassist/internal/assistant"
	"github.com/teemow/calassist/internal/calendar"
	"github.com/teemow/calassist/internal/config"
	"github.com/teemow/calassist/internal/google"
	"github.com/teemow/calassist/internal/instrumentation"
	"github.com/teemow/calassist/internal/llm"
	"github.com/teemow/calassist/internal/logging"
)

// app holds the process-wide services shared by the serve and mcp
// commands. It is built once and passed by reference to every handler.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	lexicon   *assistant.Lexicon
	store     *google.Store
	gateway   *calendar.Gateway
	generator *llm.Generator
	router    *assistant.Router
}

// loadConfig loads the .env file and the environment.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupLogger builds the process logger and installs it as the slog default.
func setupLogger(w io.Writer, cfg *config.Config, debug bool) (*slog.Logger, error) {
	levelName := cfg.LogLevel
	if debug {
		levelName = "debug"
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(w, cfg.LogFormat, level)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

func newInstrumentation(ctx context.Context) (*instrumentation.Provider, error) {
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	return provider, nil
}

// buildApp wires store, gateway, generator and router. The model is not
// loaded here; callers decide how a load failure is handled.
func buildApp(cfg *config.Config, logger *slog.Logger, provider *instrumentation.Provider) (*app, error) {
	lex, err := assistant.LoadLexicon(cfg.Language, cfg.LexiconFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load lexicon: %w", err)
	}

	metrics := provider.Metrics()

	store := google.NewStore(google.StoreConfig{
		TokenFile:        cfg.TokenFile,
		ClientSecretFile: cfg.ClientSecretFile,
		Logger:           logger,
		Metrics:          metrics,
	})

	gateway, err := calendar.NewGateway(calendar.Config{
		Tokens:     store,
		CalendarID: cfg.CalendarID,
		Location:   cfg.Location(),
		Logger:     logger,
		Metrics:    metrics,
		Audit:      provider.Audit(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar gateway: %w", err)
	}

	generator := llm.New(llm.Config{
		Model:     cfg.ModelName,
		BaseURL:   cfg.ModelBaseURL,
		APIKey:    cfg.ModelAPIKey,
		CachePath: cfg.ModelPath,
		Timeout:   cfg.ModelTimeout,
		Fallback:  lex.Replies.Apology,
		Logger:    logger,
		Metrics:   metrics,
	})

	router, err := assistant.NewRouter(assistant.Config{
		Lexicon:     lex,
		Generator:   generator,
		Calendar:    gateway,
		Credentials: store,
		Location:    cfg.Location(),
		Logger:      logger,
		Metrics:     metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		lexicon:   lex,
		store:     store,
		gateway:   gateway,
		generator: generator,
		router:    router,
	}, nil
}
