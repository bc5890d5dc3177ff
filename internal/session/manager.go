package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/calassist/internal/instrumentation"
	"github.com/teemow/calassist/internal/logging"
)

const (
	// DefaultCookieName is the name of the session cookie.
	DefaultCookieName = "calassist_session"

	defaultTimeout         = 24 * time.Hour
	defaultCleanupInterval = 10 * time.Minute
)

// Config configures a Manager.
type Config struct {
	// Secret signs session cookies.
	Secret string
	// Timeout is the idle time after which a session expires.
	Timeout time.Duration
	// CleanupInterval is how often expired sessions are swept.
	CleanupInterval time.Duration
	CookieName      string

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Manager keeps browser sessions in memory and expires idle ones.
type Manager struct {
	sessions   map[string]*Session
	mu         sync.RWMutex
	secret     []byte
	timeout    time.Duration
	cookieName string

	cleanupTicker *time.Ticker
	cleanupDone   chan struct{}
	stopOnce      sync.Once

	logger  *slog.Logger
	metrics *instrumentation.Metrics
	now     func() time.Time
}

// NewManager creates a Manager and starts its cleanup loop. Call Stop to end it.
func NewManager(config Config) *Manager {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	interval := config.CleanupInterval
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	cookieName := config.CookieName
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		sessions:      make(map[string]*Session),
		secret:        []byte(config.Secret),
		timeout:       timeout,
		cookieName:    cookieName,
		cleanupTicker: time.NewTicker(interval),
		cleanupDone:   make(chan struct{}),
		logger:        logging.WithService(logger, "session"),
		metrics:       config.Metrics,
		now:           time.Now,
	}

	go m.cleanupExpiredSessions()

	return m
}

// Create starts a new session held by the manager.
func (m *Manager) Create(ctx context.Context) *Session {
	s := m.newSession()
	m.store(ctx, s)
	return s
}

func (m *Manager) newSession() *Session {
	now := m.now()
	return &Session{
		id:         uuid.NewString(),
		createdAt:  now,
		lastAccess: now,
	}
}

func (m *Manager) store(ctx context.Context, s *Session) {
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.metrics.IncrementActiveSessions(ctx)
	m.logger.Debug("session created", logging.Session(s.id))
}

// Get returns a live session and refreshes its last access time.
// Expired sessions are removed and reported as absent.
func (m *Manager) Get(ctx context.Context, id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := m.now()
	if s.idleSince(now) > m.timeout {
		m.Remove(ctx, id)
		return nil, false
	}
	s.touch(now)
	return s, true
}

// Remove deletes a session.
func (m *Manager) Remove(ctx context.Context, id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		m.metrics.DecrementActiveSessions(ctx)
	}
}

// Count returns the number of sessions held.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// sweep removes sessions idle for longer than the timeout.
func (m *Manager) sweep() int {
	now := m.now()

	m.mu.Lock()
	expired := 0
	for id, s := range m.sessions {
		if s.idleSince(now) > m.timeout {
			delete(m.sessions, id)
			expired++
		}
	}
	m.mu.Unlock()

	for i := 0; i < expired; i++ {
		m.metrics.DecrementActiveSessions(context.Background())
	}
	return expired
}

func (m *Manager) cleanupExpiredSessions() {
	for {
		select {
		case <-m.cleanupTicker.C:
			if n := m.sweep(); n > 0 {
				m.logger.Info("Cleaned up expired sessions", "count", n)
			}
		case <-m.cleanupDone:
			return
		}
	}
}

// Stop stops the cleanup loop. It is safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.cleanupTicker.Stop()
		close(m.cleanupDone)
	})
}
