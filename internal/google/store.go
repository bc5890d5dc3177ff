package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/teemow/calassist/internal/instrumentation"
	"github.com/teemow/calassist/internal/logging"
)

// ErrNoCredentials is returned when no usable credentials exist.
var ErrNoCredentials = errors.New("no credentials")

// FileStore persists credentials in a single JSON file. The file is the
// source of truth across sessions.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the token file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads credentials from the file. Any read or decode failure is
// reported as ErrNoCredentials.
func (f *FileStore) Load() (*Credentials, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCredentials, err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("%w: failed to decode token file: %v", ErrNoCredentials, err)
	}
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token file holds no tokens", ErrNoCredentials)
	}
	return &creds, nil
}

// Save writes credentials to the file, creating its directory when absent.
// The previous contents are replaced atomically.
func (f *FileStore) Save(creds *Credentials) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary token file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return fmt.Errorf("failed to set token file permissions: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// CredentialCache is the session-scoped overlay on top of the token file.
type CredentialCache interface {
	Credentials() *Credentials
	SetCredentials(creds *Credentials)
}

type cacheKey struct{}

// WithCache returns a context carrying the session credential cache.
func WithCache(ctx context.Context, cache CredentialCache) context.Context {
	return context.WithValue(ctx, cacheKey{}, cache)
}

// CacheFromContext returns the session credential cache, if any.
func CacheFromContext(ctx context.Context) (CredentialCache, bool) {
	cache, ok := ctx.Value(cacheKey{}).(CredentialCache)
	return cache, ok && cache != nil
}

// StoreConfig configures a Store.
type StoreConfig struct {
	// TokenFile is the durable credential file.
	TokenFile string

	// ClientSecretFile is the OAuth client configuration used for refresh exchanges.
	ClientSecretFile string

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Store is the two-tier credential store: the session overlay carried in the
// request context, backed by the durable token file.
//
// Lookup order is overlay, then file; a file hit warms the overlay.
// Writes go to the file first, then the overlay. When the credentials found
// are expired, the file is consulted again before refreshing, so a token
// already refreshed by another session is reused instead of refreshed twice.
type Store struct {
	file             *FileStore
	clientSecretFile string
	logger           *slog.Logger
	metrics          *instrumentation.Metrics

	refreshMu sync.Mutex
}

// NewStore creates a credential store.
func NewStore(config StoreConfig) *Store {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		file:             NewFileStore(config.TokenFile),
		clientSecretFile: config.ClientSecretFile,
		logger:           logging.WithService(logger, "credentials"),
		metrics:          config.Metrics,
	}
}

// File returns the durable tier.
func (s *Store) File() *FileStore {
	return s.file
}

// Get returns the current credentials without checking expiry.
func (s *Store) Get(ctx context.Context) (*Credentials, error) {
	cache, hasCache := CacheFromContext(ctx)
	if hasCache {
		if creds := cache.Credentials(); creds != nil {
			return creds.Clone(), nil
		}
	}

	creds, err := s.file.Load()
	if err != nil {
		return nil, err
	}
	if hasCache {
		cache.SetCredentials(creds.Clone())
	}
	return creds, nil
}

// Save writes credentials to the token file and then to the session overlay.
func (s *Store) Save(ctx context.Context, creds *Credentials) error {
	if creds == nil {
		return errors.New("credentials are required")
	}
	if err := s.file.Save(creds); err != nil {
		return err
	}
	if cache, ok := CacheFromContext(ctx); ok {
		cache.SetCredentials(creds.Clone())
	}
	return nil
}

// Valid returns usable credentials, applying the refresh policy: valid
// credentials are returned as-is; expired credentials with a refresh token
// are refreshed and saved; anything else is ErrNoCredentials.
func (s *Store) Valid(ctx context.Context) (*Credentials, error) {
	creds, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if creds.Valid() {
		return creds, nil
	}
	return s.refresh(ctx, creds)
}

// Authorized reports whether usable credentials exist.
func (s *Store) Authorized(ctx context.Context) bool {
	_, err := s.Valid(ctx)
	return err == nil
}
