package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teemow/calassist/internal/instrumentation"
	"github.com/teemow/calassist/internal/logging"
)

const (
	// DefaultMaxLength is the completion budget used for assistant prompts.
	DefaultMaxLength = 512

	// DefaultFallback is returned when generation fails.
	DefaultFallback = "Sorry, I could not process your request."

	descriptorFile = "config.json"
	temperature    = 0.7
	topP           = 0.9
)

var (
	// ErrNotLoaded is returned by generation before Load succeeded.
	ErrNotLoaded = errors.New("model not loaded")

	errNoChoices = errors.New("model returned no choices")
)

// Config configures a Generator.
type Config struct {
	// Model is the model identifier served by the endpoint.
	Model string
	// BaseURL is the OpenAI-compatible API root, e.g. http://localhost:11434/v1.
	BaseURL string
	APIKey  string
	// CachePath is the local model cache directory.
	CachePath string
	// Timeout bounds one generation request.
	Timeout time.Duration
	// Fallback replaces DefaultFallback.
	Fallback string

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Descriptor is the model metadata written to the local cache.
type Descriptor struct {
	ID        string    `json:"id"`
	OwnedBy   string    `json:"owned_by,omitempty"`
	BaseURL   string    `json:"base_url"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Generator produces completions from a language model. It is built once
// at startup and shared by all request handlers.
type Generator struct {
	client    *openai.Client
	model     string
	baseURL   string
	cachePath string
	fallback  string
	logger    *slog.Logger
	metrics   *instrumentation.Metrics

	loaded atomic.Bool
}

// New creates a Generator. Call Load before generating.
func New(config Config) *Generator {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	fallback := config.Fallback
	if fallback == "" {
		fallback = DefaultFallback
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     config.Model,
		baseURL:   clientConfig.BaseURL,
		cachePath: config.CachePath,
		fallback:  fallback,
		logger:    logging.WithService(logger, "llm"),
		metrics:   config.Metrics,
	}
}

// Model returns the model identifier.
func (g *Generator) Model() string {
	return g.model
}

// Fallback returns the apology returned on failure.
func (g *Generator) Fallback() string {
	return g.fallback
}

// Loaded reports whether Load has completed.
func (g *Generator) Loaded() bool {
	return g.loaded.Load()
}

// Load prepares the model. A descriptor for the configured model in the
// local cache is used as-is; otherwise the model is looked up on the
// endpoint and the descriptor is written to the cache.
func (g *Generator) Load(ctx context.Context) error {
	if desc, err := g.readDescriptor(); err == nil && desc.ID == g.model {
		g.logger.Info("model loaded from local cache", "model", g.model, "path", g.cachePath)
		g.loaded.Store(true)
		return nil
	}

	g.logger.Info("fetching model", "model", g.model, "endpoint", g.baseURL)
	m, err := g.client.GetModel(ctx, g.model)
	if err != nil {
		return fmt.Errorf("failed to load model %s: %w", g.model, err)
	}

	desc := Descriptor{
		ID:        g.model,
		OwnedBy:   m.OwnedBy,
		BaseURL:   g.baseURL,
		FetchedAt: time.Now().UTC(),
	}
	if err := g.writeDescriptor(desc); err != nil {
		g.logger.Warn("failed to cache model descriptor", logging.Err(err))
	} else {
		g.logger.Info("model cached", "model", g.model, "path", g.cachePath)
	}

	g.loaded.Store(true)
	return nil
}

func (g *Generator) descriptorPath() string {
	return filepath.Join(g.cachePath, descriptorFile)
}

func (g *Generator) readDescriptor() (*Descriptor, error) {
	if g.cachePath == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(g.descriptorPath())
	if err != nil {
		return nil, err
	}
	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

func (g *Generator) writeDescriptor(desc Descriptor) error {
	if g.cachePath == "" {
		return nil
	}
	if err := os.MkdirAll(g.cachePath, 0755); err != nil {
		return fmt.Errorf("failed to create model cache: %w", err)
	}
	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(g.descriptorPath(), data, 0644)
}

// Generate returns the model's completion of prompt with any echoed prompt
// removed. On failure it returns the fallback apology; callers cannot tell
// the two apart.
func (g *Generator) Generate(ctx context.Context, prompt string, maxLength int) string {
	ctx, span := instrumentation.StartModelSpan(ctx, g.model)
	defer span.End()

	start := time.Now()
	text, err := g.complete(ctx, prompt, maxLength)
	duration := time.Since(start)

	if err != nil {
		instrumentation.SetSpanError(span, err)
		g.metrics.RecordModelGeneration(ctx, instrumentation.StatusError, duration)
		g.logger.Error("generation failed", logging.Err(err), slog.Duration("duration", duration))
		return g.fallback
	}

	instrumentation.SetSpanSuccess(span)
	g.metrics.RecordModelGeneration(ctx, instrumentation.StatusSuccess, duration)
	return text
}

func (g *Generator) complete(ctx context.Context, prompt string, maxLength int) (string, error) {
	if !g.Loaded() {
		return "", ErrNotLoaded
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxLength,
		Temperature: temperature,
		TopP:        topP,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}

	return stripPrompt(resp.Choices[0].Message.Content, prompt), nil
}

func stripPrompt(text, prompt string) string {
	text = strings.TrimPrefix(text, prompt)
	return strings.TrimSpace(text)
}
