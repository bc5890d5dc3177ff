package calendar_tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calassist/internal/calendar"
	"github.com/teemow/calassist/internal/tools/batch"
)

func eventTools(cal Calendar) []mcpserver.ServerTool {
	listTool := mcp.NewTool("calendar_list_upcoming",
		mcp.WithDescription("List upcoming events on the connected calendar, ordered by start time"),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of events (default %d, at most %d)", defaultListLimit, maxListLimit)),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	getTool := mcp.NewTool("calendar_get_event",
		mcp.WithDescription("Get details of a calendar event"),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to retrieve"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	createTool := mcp.NewTool("calendar_create_event",
		mcp.WithDescription("Create an event with an email reminder one day before and a popup 30 minutes before"),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time, e.g. '2025-01-15T14:00:00+08:00' or '2025-01-15 14:00' (calendar time zone)"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End time, same formats as start"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
		mcp.WithBoolean("important",
			mcp.Description("Mark the event as important (red color)"),
		),
	)

	markTool := mcp.NewTool("calendar_mark_important",
		mcp.WithDescription("Mark one or more events as important (red color)"),
		mcp.WithString("eventIds",
			mcp.Required(),
			mcp.Description("Event ID, or a JSON array of event IDs"),
		),
		mcp.WithIdempotentHintAnnotation(true),
	)

	return []mcpserver.ServerTool{
		{Tool: listTool, Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListUpcoming(ctx, request, cal)
		}},
		{Tool: getTool, Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetEvent(ctx, request, cal)
		}},
		{Tool: createTool, Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateEvent(ctx, request, cal)
		}},
		{Tool: markTool, Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleMarkImportant(ctx, request, cal)
		}},
	}
}

func handleListUpcoming(ctx context.Context, request mcp.CallToolRequest, cal Calendar) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	events, err := cal.ListUpcoming(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(toolError("list events", err)), nil
	}
	if len(events) == 0 {
		return mcp.NewToolResultText("No upcoming events."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Upcoming events (%d):\n", len(events))
	for i, e := range events {
		fmt.Fprintf(&b, "%d. %s (%s)", i+1, e.Title, e.StartText)
		if e.Important() {
			b.WriteString(" [important]")
		}
		fmt.Fprintf(&b, "\n   ID: %s\n", e.ID)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleGetEvent(ctx context.Context, request mcp.CallToolRequest, cal Calendar) (*mcp.CallToolResult, error) {
	eventID, err := request.RequireString("eventId")
	if err != nil || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	event, err := cal.GetEvent(ctx, eventID)
	if err != nil {
		return mcp.NewToolResultError(toolError("get event", err)), nil
	}
	return mcp.NewToolResultText(formatEvent(event)), nil
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, cal Calendar) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil || strings.TrimSpace(title) == "" {
		return mcp.NewToolResultError("title is required"), nil
	}

	loc := cal.Location()
	start, err := parseTimeArg(request, "start", loc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := parseTimeArg(request, "end", loc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !end.After(start) {
		return mcp.NewToolResultError("end must be after start"), nil
	}

	event, err := cal.CreateEvent(ctx, calendar.EventInput{
		Title:       strings.TrimSpace(title),
		Start:       start,
		End:         end,
		Description: request.GetString("description", ""),
		Location:    request.GetString("location", ""),
		Important:   request.GetBool("important", false),
	})
	if err != nil {
		return mcp.NewToolResultError(toolError("create event", err)), nil
	}
	return mcp.NewToolResultText("Event created.\n" + formatEvent(event)), nil
}

func handleMarkImportant(ctx context.Context, request mcp.CallToolRequest, cal Calendar) (*mcp.CallToolResult, error) {
	ids, err := batch.ParseIDs(request.GetArguments()["eventIds"], "eventIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results := batch.Process(ctx, ids, func(ctx context.Context, id string) (string, error) {
		event, err := cal.MarkImportant(ctx, id)
		if err != nil {
			return "", errors.New(toolError("mark event", err))
		}
		return fmt.Sprintf("Marked %q as important", event.Title), nil
	})

	if len(results) == 1 {
		if results[0].Status == batch.StatusError {
			return mcp.NewToolResultError(results[0].Error), nil
		}
		return mcp.NewToolResultText(results[0].Result), nil
	}
	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func parseTimeArg(request mcp.CallToolRequest, name string, loc *time.Location) (time.Time, error) {
	text, err := request.RequireString(name)
	if err != nil || strings.TrimSpace(text) == "" {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	t, err := calendar.ParseEventTime(text, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %v", name, err)
	}
	return t, nil
}

func formatEvent(event *calendar.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n", event.Title)
	fmt.Fprintf(&b, "ID: %s\n", event.ID)
	if event.AllDay {
		fmt.Fprintf(&b, "Date: %s (all day)\n", event.StartText)
	} else {
		fmt.Fprintf(&b, "Start: %s\n", event.Start.Format(time.RFC3339))
		fmt.Fprintf(&b, "End: %s\n", event.End.Format(time.RFC3339))
	}
	if event.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", event.Location)
	}
	if event.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", event.Description)
	}
	if event.Important() {
		b.WriteString("Important: yes\n")
	}
	if event.HTMLLink != "" {
		fmt.Fprintf(&b, "Link: %s\n", event.HTMLLink)
	}
	return b.String()
}
