package session

import (
	"context"
	"sync"
	"time"

	"github.com/teemow/calassist/internal/google"
)

// Session is one browser session. It carries the session tier of the
// credential store and the pending OAuth state.
//
// A session that came without a cookie is not held by the Manager until an
// authorization starts on it. Until then its credential overlay lives for
// the request only; the token file already holds anything written there.
type Session struct {
	id        string
	createdAt time.Time

	keep     func()
	keepOnce sync.Once

	mu         sync.Mutex
	lastAccess time.Time
	creds      *google.Credentials
	state      string
}

var _ google.CredentialCache = (*Session)(nil)

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Credentials returns the cached credentials, or nil.
func (s *Session) Credentials() *google.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds.Clone()
}

// SetCredentials replaces the cached credentials.
func (s *Session) SetCredentials(creds *google.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds.Clone()
}

// SetState stores the OAuth state of an authorization in progress.
func (s *Session) SetState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	if s.keep != nil {
		s.keepOnce.Do(s.keep)
	}
}

// TakeState returns the pending OAuth state and clears it, so a state
// value is accepted at most once.
func (s *Session) TakeState() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.state
	s.state = ""
	return state
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastAccess)
}

type sessionKey struct{}

// WithSession returns a context carrying the session.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session carried by ctx.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}
