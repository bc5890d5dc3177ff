package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // container images often ship without zoneinfo

	"github.com/joho/godotenv"
)

// Supported assistant languages.
const (
	LanguageEnglish = "en"
	LanguageChinese = "zh"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultModelName        = "Qwen/Qwen2.5-0.5B-Instruct"
	DefaultModelPath        = "/app/models"
	DefaultModelBaseURL     = "http://localhost:11434/v1"
	DefaultModelTimeout     = 60 * time.Second
	DefaultClientSecretFile = "/app/credentials/client_secret.json"
	DefaultTokenFile        = "/app/credentials/token.json"
	DefaultPort             = 8080
	DefaultCalendarTimezone = "Asia/Shanghai"
	DefaultCalendarID       = "primary"
	DefaultSessionTimeout   = 24 * time.Hour
	DefaultMetricsAddr      = ":9090"
)

// Config holds the runtime configuration of the calassist service.
type Config struct {
	// Language model endpoint
	ModelName    string
	ModelPath    string
	ModelBaseURL string
	ModelAPIKey  string
	ModelTimeout time.Duration

	// Google OAuth
	ClientSecretFile string
	TokenFile        string

	// HTTP server
	SecretKey          string
	SecretKeyGenerated bool
	Port               int
	BaseURL            string
	SessionTimeout     time.Duration
	CORSAllowedOrigins []string

	// Calendar
	CalendarTimezone string
	CalendarID       string

	// Assistant
	Language    string
	LexiconFile string

	// Logging and metrics
	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
	MetricsAddr    string
}

// LoadEnvFile loads variables from the given .env files (".env" when none are
// given) without overriding variables already present in the environment.
// A missing file is not an error.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// Load builds a Config from the environment and validates it.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		ModelName:          getEnvOrDefault("MODEL_NAME", DefaultModelName),
		ModelPath:          getEnvOrDefault("MODEL_PATH", DefaultModelPath),
		ModelBaseURL:       getEnvOrDefault("MODEL_BASE_URL", DefaultModelBaseURL),
		ModelAPIKey:        os.Getenv("MODEL_API_KEY"),
		ClientSecretFile:   getEnvOrDefault("CLIENT_SECRET_FILE", DefaultClientSecretFile),
		TokenFile:          getEnvOrDefault("TOKEN_FILE", DefaultTokenFile),
		SecretKey:          os.Getenv("SECRET_KEY"),
		BaseURL:            strings.TrimSuffix(os.Getenv("BASE_URL"), "/"),
		CORSAllowedOrigins: SplitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		CalendarTimezone:   getEnvOrDefault("CALENDAR_TIMEZONE", DefaultCalendarTimezone),
		CalendarID:         getEnvOrDefault("CALENDAR_ID", DefaultCalendarID),
		Language:           strings.ToLower(getEnvOrDefault("ASSISTANT_LANGUAGE", LanguageEnglish)),
		LexiconFile:        os.Getenv("LEXICON_FILE"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          getEnvOrDefault("LOG_FORMAT", "text"),
		MetricsAddr:        getEnvOrDefault("METRICS_ADDR", DefaultMetricsAddr),
	}

	var err error
	if cfg.ModelTimeout, err = getEnvDurationOrDefault("MODEL_TIMEOUT", DefaultModelTimeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.SessionTimeout, err = getEnvDurationOrDefault("SESSION_TIMEOUT", DefaultSessionTimeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.Port, err = getEnvIntOrDefault("PORT", DefaultPort); err != nil {
		errs = append(errs, err)
	}
	if cfg.MetricsEnabled, err = getEnvBoolOrDefault("METRICS_ENABLED", true); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cfg.SecretKey == "" {
		key, err := randomKey()
		if err != nil {
			return nil, err
		}
		cfg.SecretKey = key
		cfg.SecretKeyGenerated = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port))
	}
	if c.ModelTimeout <= 0 {
		errs = append(errs, fmt.Errorf("model timeout must be positive, got %s", c.ModelTimeout))
	}
	if c.SessionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("session timeout must be positive, got %s", c.SessionTimeout))
	}
	if _, err := time.LoadLocation(c.CalendarTimezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid calendar timezone %q: %w", c.CalendarTimezone, err))
	}
	if c.Language != LanguageEnglish && c.Language != LanguageChinese {
		errs = append(errs, fmt.Errorf("invalid assistant language %q, must be one of: en, zh", c.Language))
	}
	if c.ModelName == "" {
		errs = append(errs, errors.New("model name is required"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}

	return errors.Join(errs...)
}

// Location returns the configured calendar time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.CalendarTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ListenAddr returns the HTTP listen address for the configured port.
func (c *Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

// SplitList splits a comma-separated value, trimming whitespace and dropping empty items.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func randomKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvBoolOrDefault(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}
