package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calassist/internal/calendar"
)

const (
	UpcomingEventsURI = "calendar://events/upcoming"
	AuthStatusURI     = "calendar://auth/status"

	upcomingLimit = 10
)

// Lister lists upcoming events.
type Lister interface {
	ListUpcoming(ctx context.Context, limit int) ([]calendar.Event, error)
}

// Authorizer reports whether usable credentials exist.
type Authorizer interface {
	Authorized(ctx context.Context) bool
}

type eventResource struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Start     string    `json:"start"`
	End       time.Time `json:"end,omitzero"`
	AllDay    bool      `json:"allDay,omitempty"`
	Location  string    `json:"location,omitempty"`
	Important bool      `json:"important"`
	Link      string    `json:"link,omitempty"`
}

// RegisterCalendarResources registers the calendar resources.
func RegisterCalendarResources(s *mcpserver.MCPServer, events Lister, auth Authorizer) error {
	if events == nil || auth == nil {
		return errors.New("event lister and authorizer are required")
	}

	upcoming := mcp.NewResource(
		UpcomingEventsURI,
		"Upcoming Events",
		mcp.WithResourceDescription("The next events on the connected calendar, ordered by start time"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(upcoming, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleUpcomingEvents(ctx, request, events)
	})

	status := mcp.NewResource(
		AuthStatusURI,
		"Calendar Authorization",
		mcp.WithResourceDescription("Whether calendar credentials are stored and usable"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(status, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleAuthStatus(ctx, request, auth)
	})

	return nil
}

func handleUpcomingEvents(ctx context.Context, request mcp.ReadResourceRequest, events Lister) ([]mcp.ResourceContents, error) {
	list, err := events.ListUpcoming(ctx, upcomingLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming events: %w", err)
	}

	out := make([]eventResource, 0, len(list))
	for _, e := range list {
		out = append(out, eventResource{
			ID:        e.ID,
			Title:     e.Title,
			Start:     e.StartText,
			End:       e.End,
			AllDay:    e.AllDay,
			Location:  e.Location,
			Important: e.Important(),
			Link:      e.HTMLLink,
		})
	}
	return jsonContents(request.Params.URI, out)
}

func handleAuthStatus(ctx context.Context, request mcp.ReadResourceRequest, auth Authorizer) ([]mcp.ResourceContents, error) {
	return jsonContents(request.Params.URI, map[string]bool{
		"authorized": auth.Authorized(ctx),
	})
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
