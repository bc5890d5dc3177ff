package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/calassist/internal/google"
	"github.com/teemow/calassist/internal/instrumentation"
	"github.com/teemow/calassist/internal/logging"
)

var (
	// ErrUnavailable is returned when no valid credentials exist.
	ErrUnavailable = errors.New("calendar operation unavailable: not authorized")

	// ErrNotFound is returned when an event id does not exist.
	ErrNotFound = errors.New("event not found")
)

// Config configures a Gateway.
type Config struct {
	Tokens     google.TokenProvider
	CalendarID string
	Location   *time.Location

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger

	// ClientOptions are appended to the options of every calendar service.
	ClientOptions []option.ClientOption
}

// Gateway performs calendar operations on behalf of the connected account.
// Every call obtains a fresh service handle from the token provider, so
// refreshed credentials are picked up without restarting.
type Gateway struct {
	tokens        google.TokenProvider
	calendarID    string
	loc           *time.Location
	logger        *slog.Logger
	metrics       *instrumentation.Metrics
	audit         *instrumentation.AuditLogger
	clientOptions []option.ClientOption
	now           func() time.Time
}

// NewGateway creates a Gateway.
func NewGateway(config Config) (*Gateway, error) {
	if config.Tokens == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}
	calendarID := config.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	loc := config.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{
		tokens:        config.Tokens,
		calendarID:    calendarID,
		loc:           loc,
		logger:        logging.WithService(logger, instrumentation.ServiceCalendar),
		metrics:       config.Metrics,
		audit:         config.Audit,
		clientOptions: config.ClientOptions,
		now:           time.Now,
	}, nil
}

// Location returns the zone new events are created in.
func (g *Gateway) Location() *time.Location {
	return g.loc
}

// service builds a calendar service from the current valid credentials.
func (g *Gateway) service(ctx context.Context) (*calendar.Service, error) {
	tok, err := g.tokens.Token(ctx)
	if err != nil {
		if !errors.Is(err, google.ErrNoCredentials) {
			g.logger.Warn("failed to obtain credentials", logging.Err(err))
		}
		return nil, ErrUnavailable
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok))

	// Force HTTP/1.1 by disabling HTTP/2
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ForceAttemptHTTP2 = false
	client.Transport.(*oauth2.Transport).Base = base

	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, g.clientOptions...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return svc, nil
}

// observe records the outcome of one provider call.
func (g *Gateway) observe(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		g.logger.Error("calendar call failed", logging.Operation(operation), logging.Err(err))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	g.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, operation, status, time.Since(start))
}

// ListUpcoming returns up to limit events starting now, ordered by start
// time, with recurring events expanded into single occurrences. An empty
// calendar yields an empty, non-nil slice.
func (g *Gateway) ListUpcoming(ctx context.Context, limit int) ([]Event, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationList)
	defer span.End()

	svc, err := g.service(ctx)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	start := time.Now()
	resp, err := svc.Events.List(g.calendarID).
		TimeMin(g.now().Format(time.RFC3339)).
		MaxResults(int64(limit)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	g.observe(ctx, span, instrumentation.OperationList, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, toEvent(item))
	}
	return events, nil
}

// GetEvent fetches one event by id.
func (g *Gateway) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationGet,
		attribute.String(instrumentation.SpanAttrResourceID, eventID))
	defer span.End()

	svc, err := g.service(ctx)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	raw, err := g.get(ctx, span, svc, eventID)
	if err != nil {
		return nil, err
	}
	event := toEvent(raw)
	return &event, nil
}

func (g *Gateway) get(ctx context.Context, span trace.Span, svc *calendar.Service, eventID string) (*calendar.Event, error) {
	start := time.Now()
	raw, err := svc.Events.Get(g.calendarID, eventID).Context(ctx).Do()
	g.observe(ctx, span, instrumentation.OperationGet, start, err)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, eventID)
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return raw, nil
}

// CreateEvent creates an event in the configured zone with the fixed
// reminder policy, colored as important when requested.
func (g *Gateway) CreateEvent(ctx context.Context, input EventInput) (*Event, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationCreate)
	defer span.End()

	svc, err := g.service(ctx)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	zone := g.loc.String()
	event := &calendar.Event{
		Summary:     input.Title,
		Description: input.Description,
		Location:    input.Location,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.In(g.loc).Format(time.RFC3339),
			TimeZone: zone,
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.In(g.loc).Format(time.RFC3339),
			TimeZone: zone,
		},
		Reminders: fixedReminders(),
	}
	if input.Important {
		event.ColorId = ImportantColorID
	}

	start := time.Now()
	created, err := svc.Events.Insert(g.calendarID, event).Context(ctx).Do()
	g.observe(ctx, span, instrumentation.OperationCreate, start, err)

	change := instrumentation.CalendarChange{
		Action:   instrumentation.AuditActionCreateEvent,
		Source:   instrumentation.AuditSource(ctx),
		Title:    input.Title,
		Duration: time.Since(start),
		Err:      err,
	}
	if err != nil {
		g.audit.LogCalendarChange(ctx, change)
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	change.EventID = created.Id
	g.audit.LogCalendarChange(ctx, change)

	result := toEvent(created)
	return &result, nil
}

// MarkImportant fetches the event, sets the importance color and writes it back.
func (g *Gateway) MarkImportant(ctx context.Context, eventID string) (*Event, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationUpdate,
		attribute.String(instrumentation.SpanAttrResourceID, eventID))
	defer span.End()

	svc, err := g.service(ctx)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	began := time.Now()
	change := instrumentation.CalendarChange{
		Action:  instrumentation.AuditActionMarkImportant,
		Source:  instrumentation.AuditSource(ctx),
		EventID: eventID,
	}

	raw, err := g.get(ctx, span, svc, eventID)
	if err != nil {
		change.Err, change.Duration = err, time.Since(began)
		g.audit.LogCalendarChange(ctx, change)
		return nil, err
	}
	change.Title = raw.Summary
	raw.ColorId = ImportantColorID

	start := time.Now()
	updated, err := svc.Events.Update(g.calendarID, eventID, raw).Context(ctx).Do()
	g.observe(ctx, span, instrumentation.OperationUpdate, start, err)
	change.Duration = time.Since(began)
	if err != nil {
		change.Err = err
		g.audit.LogCalendarChange(ctx, change)
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, eventID)
		}
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	g.audit.LogCalendarChange(ctx, change)

	result := toEvent(updated)
	return &result, nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
