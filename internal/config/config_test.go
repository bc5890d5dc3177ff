package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"MODEL_NAME", "MODEL_PATH", "MODEL_BASE_URL", "MODEL_API_KEY", "MODEL_TIMEOUT",
	"CLIENT_SECRET_FILE", "TOKEN_FILE", "SECRET_KEY", "PORT", "BASE_URL",
	"CALENDAR_TIMEZONE", "CALENDAR_ID", "ASSISTANT_LANGUAGE", "LEXICON_FILE",
	"SESSION_TIMEOUT", "CORS_ALLOWED_ORIGINS", "LOG_LEVEL", "LOG_FORMAT",
	"METRICS_ENABLED", "METRICS_ADDR",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultModelName, cfg.ModelName)
	assert.Equal(t, DefaultModelPath, cfg.ModelPath)
	assert.Equal(t, DefaultModelBaseURL, cfg.ModelBaseURL)
	assert.Equal(t, DefaultModelTimeout, cfg.ModelTimeout)
	assert.Equal(t, DefaultClientSecretFile, cfg.ClientSecretFile)
	assert.Equal(t, DefaultTokenFile, cfg.TokenFile)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultCalendarTimezone, cfg.CalendarTimezone)
	assert.Equal(t, DefaultCalendarID, cfg.CalendarID)
	assert.Equal(t, LanguageEnglish, cfg.Language)
	assert.Equal(t, DefaultSessionTimeout, cfg.SessionTimeout)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, ":8080", cfg.ListenAddr())

	// No SECRET_KEY means a random per-process key
	assert.True(t, cfg.SecretKeyGenerated)
	assert.Len(t, cfg.SecretKey, 64)
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODEL_NAME", "qwen2.5:0.5b")
	t.Setenv("MODEL_TIMEOUT", "30s")
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("PORT", "5000")
	t.Setenv("BASE_URL", "https://cal.example.com/")
	t.Setenv("CALENDAR_TIMEZONE", "Europe/Berlin")
	t.Setenv("ASSISTANT_LANGUAGE", "ZH")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "qwen2.5:0.5b", cfg.ModelName)
	assert.Equal(t, 30*time.Second, cfg.ModelTimeout)
	assert.Equal(t, "s3cret", cfg.SecretKey)
	assert.False(t, cfg.SecretKeyGenerated)
	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, "https://cal.example.com", cfg.BaseURL)
	assert.Equal(t, LanguageChinese, cfg.Language)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		value       string
		errContains string
	}{
		{"bad duration", "MODEL_TIMEOUT", "soon", "invalid MODEL_TIMEOUT"},
		{"bad port", "PORT", "http", "invalid PORT"},
		{"port out of range", "PORT", "70000", "invalid port"},
		{"bad bool", "METRICS_ENABLED", "maybe", "invalid METRICS_ENABLED"},
		{"bad timezone", "CALENDAR_TIMEZONE", "Mars/Olympus", "invalid calendar timezone"},
		{"bad language", "ASSISTANT_LANGUAGE", "fr", "invalid assistant language"},
		{"negative session timeout", "SESSION_TIMEOUT", "-1h", "session timeout must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	// Registers restoration, then truly unsets so godotenv may fill it in
	t.Setenv("CALASSIST_DOTENV_VALUE", "")
	require.NoError(t, os.Unsetenv("CALASSIST_DOTENV_VALUE"))
	t.Setenv("CALASSIST_DOTENV_KEEP", "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	content := "CALASSIST_DOTENV_VALUE=from-dotenv\nCALASSIST_DOTENV_KEEP=from-file\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	require.NoError(t, LoadEnvFile(path))

	assert.Equal(t, "from-dotenv", os.Getenv("CALASSIST_DOTENV_VALUE"))
	assert.Equal(t, "from-env", os.Getenv("CALASSIST_DOTENV_KEEP"))
}

func TestLoadEnvFile_Missing(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")))
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a,b", []string{"a", "b"}},
		{" a , b ,, c ", []string{"a", "b", "c"}},
		{",,", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.input))
		})
	}
}
