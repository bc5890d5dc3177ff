package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calassist/internal/google"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(t *testing.T, timeout time.Duration) (*Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(Config{Secret: "test-secret", Timeout: timeout, CleanupInterval: time.Hour})
	m.now = clock.Now
	t.Cleanup(m.Stop)
	return m, clock
}

func TestManager_CreateGetRemove(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, time.Hour)

	s := m.Create(ctx)
	require.NotEmpty(t, s.ID())
	assert.Equal(t, 1, m.Count())

	got, ok := m.Get(ctx, s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	m.Remove(ctx, s.ID())
	_, ok = m.Get(ctx, s.ID())
	assert.False(t, ok)
	assert.Equal(t, 0, m.Count())

	// Removing twice is harmless
	m.Remove(ctx, s.ID())
}

func TestManager_IdleExpiry(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestManager(t, time.Hour)

	active := m.Create(ctx)
	idle := m.Create(ctx)

	clock.Advance(40 * time.Minute)
	_, ok := m.Get(ctx, active.ID())
	require.True(t, ok)

	clock.Advance(40 * time.Minute)
	assert.Equal(t, 1, m.sweep())
	assert.Equal(t, 1, m.Count())

	_, ok = m.Get(ctx, idle.ID())
	assert.False(t, ok)
	_, ok = m.Get(ctx, active.ID())
	assert.True(t, ok)

	clock.Advance(2 * time.Hour)
	_, ok = m.Get(ctx, active.ID())
	assert.False(t, ok, "expired session is dropped on access")
	assert.Equal(t, 0, m.Count())
}

func TestManager_StopIdempotent(t *testing.T) {
	m := NewManager(Config{Secret: "s"})
	m.Stop()
	m.Stop()
}

func TestSession_CredentialsAndState(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	s := m.Create(context.Background())

	assert.Nil(t, s.Credentials())
	creds := &google.Credentials{AccessToken: "a", Scopes: []string{"x"}}
	s.SetCredentials(creds)
	creds.Scopes[0] = "mutated"
	assert.Equal(t, "x", s.Credentials().Scopes[0])

	s.SetState("st")
	assert.Equal(t, "st", s.TakeState())
	assert.Empty(t, s.TakeState(), "state is single use")
}

func TestFromContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	m, _ := newTestManager(t, time.Hour)
	s := m.Create(context.Background())
	got, ok := FromContext(WithSession(context.Background(), s))
	require.True(t, ok)
	assert.Same(t, s, got)
}
