package resources

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calassist/internal/calendar"
)

type fakeLister struct {
	events []calendar.Event
	err    error
	limit  int
}

func (f *fakeLister) ListUpcoming(_ context.Context, limit int) ([]calendar.Event, error) {
	f.limit = limit
	return f.events, f.err
}

type fakeAuth bool

func (f fakeAuth) Authorized(context.Context) bool { return bool(f) }

func readRequest(uri string) mcp.ReadResourceRequest {
	var req mcp.ReadResourceRequest
	req.Params.URI = uri
	return req
}

func TestRegisterCalendarResources(t *testing.T) {
	s := mcpserver.NewMCPServer("test", "1.0.0", mcpserver.WithResourceCapabilities(false, false))

	assert.Error(t, RegisterCalendarResources(s, nil, fakeAuth(true)))
	assert.NoError(t, RegisterCalendarResources(s, &fakeLister{}, fakeAuth(true)))
}

func TestHandleUpcomingEvents(t *testing.T) {
	lister := &fakeLister{events: []calendar.Event{
		{ID: "a", Title: "Standup", StartText: "2025-01-15T09:00:00+08:00", ColorID: calendar.ImportantColorID},
		{ID: "b", Title: "Holiday", StartText: "2025-01-20", AllDay: true, End: time.Date(2025, 1, 21, 0, 0, 0, 0, time.UTC)},
	}}

	contents, err := handleUpcomingEvents(context.Background(), readRequest(UpcomingEventsURI), lister)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, upcomingLimit, lister.limit)

	text, ok := contents[0].(*mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, UpcomingEventsURI, text.URI)
	assert.Equal(t, "application/json", text.MIMEType)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Standup", got[0]["title"])
	assert.Equal(t, true, got[0]["important"])
	assert.NotContains(t, got[0], "end")
	assert.Equal(t, "2025-01-20", got[1]["start"])
	assert.Equal(t, true, got[1]["allDay"])
	assert.Equal(t, false, got[1]["important"])
}

func TestHandleUpcomingEvents_Error(t *testing.T) {
	lister := &fakeLister{err: calendar.ErrUnavailable}

	_, err := handleUpcomingEvents(context.Background(), readRequest(UpcomingEventsURI), lister)
	require.Error(t, err)
	assert.True(t, errors.Is(err, calendar.ErrUnavailable))
}

func TestHandleAuthStatus(t *testing.T) {
	for _, authorized := range []bool{true, false} {
		contents, err := handleAuthStatus(context.Background(), readRequest(AuthStatusURI), fakeAuth(authorized))
		require.NoError(t, err)

		text := contents[0].(*mcp.TextResourceContents)
		var got map[string]bool
		require.NoError(t, json.Unmarshal([]byte(text.Text), &got))
		assert.Equal(t, authorized, got["authorized"])
	}
}
