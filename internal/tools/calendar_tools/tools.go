package calendar_tools

import (
	"context"
	"errors"
	"log/slog"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calassist/internal/calendar"
	"github.com/teemow/calassist/internal/instrumentation"
	"github.com/teemow/calassist/internal/tools/common"
)

const (
	defaultListLimit = 10
	maxListLimit     = 50
)

// Calendar is the gateway surface the tools use.
type Calendar interface {
	ListUpcoming(ctx context.Context, limit int) ([]calendar.Event, error)
	GetEvent(ctx context.Context, eventID string) (*calendar.Event, error)
	CreateEvent(ctx context.Context, input calendar.EventInput) (*calendar.Event, error)
	MarkImportant(ctx context.Context, eventID string) (*calendar.Event, error)
	Location() *time.Location
}

// Assistant answers chat turns.
type Assistant interface {
	Chat(ctx context.Context, text string) string
}

// Deps are the collaborators of the tools.
type Deps struct {
	Calendar  Calendar
	Assistant Assistant
	Metrics   *instrumentation.Metrics
	Logger    *slog.Logger
}

// RegisterCalendarTools registers all calendar and assistant tools.
func RegisterCalendarTools(s *mcpserver.MCPServer, deps Deps) error {
	tools, err := calendarTools(deps)
	if err != nil {
		return err
	}
	s.AddTools(tools...)
	return nil
}

func calendarTools(deps Deps) ([]mcpserver.ServerTool, error) {
	if deps.Calendar == nil || deps.Assistant == nil {
		return nil, errors.New("calendar and assistant are required")
	}

	tools := append(eventTools(deps.Calendar), assistantTools(deps.Assistant)...)
	for i := range tools {
		tools[i].Handler = common.InstrumentedToolHandler(tools[i].Tool.Name, deps.Metrics, deps.Logger, tools[i].Handler)
	}
	return tools, nil
}

// toolError maps gateway errors to messages a client can act on.
func toolError(action string, err error) string {
	switch {
	case errors.Is(err, calendar.ErrUnavailable):
		return "The calendar is not authorized. Open the assistant's /authorize page in a browser, then retry."
	case errors.Is(err, calendar.ErrNotFound):
		return "Event not found."
	default:
		return "Failed to " + action + ": " + err.Error()
	}
}
