package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/calassist/internal/calendar"
	"github.com/teemow/calassist/internal/instrumentation"
	"github.com/teemow/calassist/internal/llm"
	"github.com/teemow/calassist/internal/logging"
)

// listLimit is the number of upcoming events listed and searched for matches.
const listLimit = 10

// Outcome labels recorded for turns that never reach classification.
const (
	outcomeUnauthorized = "unauthorized"
	outcomeEmpty        = "empty"
	outcomeChat         = "chat"
)

// Generator produces a completion for a prompt. It never fails; failures
// surface as an apology text.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxLength int) string
}

// Calendar is the subset of the calendar gateway the router uses.
type Calendar interface {
	ListUpcoming(ctx context.Context, limit int) ([]calendar.Event, error)
	CreateEvent(ctx context.Context, input calendar.EventInput) (*calendar.Event, error)
	MarkImportant(ctx context.Context, eventID string) (*calendar.Event, error)
}

// Authorizer reports whether usable calendar credentials exist.
type Authorizer interface {
	Authorized(ctx context.Context) bool
}

// Config configures a Router.
type Config struct {
	Lexicon     *Lexicon
	Generator   Generator
	Calendar    Calendar
	Credentials Authorizer
	// Location is the zone for times the model writes without an offset.
	Location *time.Location
	// MaxLength is the completion budget per model call.
	MaxLength int

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Router turns one chat message into a calendar operation and a reply.
// It keeps no state between calls.
type Router struct {
	lex       *Lexicon
	gen       Generator
	cal       Calendar
	creds     Authorizer
	loc       *time.Location
	maxLength int
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
}

// NewRouter creates a Router.
func NewRouter(config Config) (*Router, error) {
	if config.Lexicon == nil {
		return nil, errors.New("lexicon is required")
	}
	if config.Generator == nil || config.Calendar == nil || config.Credentials == nil {
		return nil, errors.New("generator, calendar and credentials are required")
	}

	loc := config.Location
	if loc == nil {
		loc = time.UTC
	}
	maxLength := config.MaxLength
	if maxLength <= 0 {
		maxLength = llm.DefaultMaxLength
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		lex:       config.Lexicon,
		gen:       config.Generator,
		cal:       config.Calendar,
		creds:     config.Credentials,
		loc:       loc,
		maxLength: maxLength,
		logger:    logging.WithService(logger, "assistant"),
		metrics:   config.Metrics,
	}, nil
}

// Lexicon returns the router's lexicon.
func (r *Router) Lexicon() *Lexicon {
	return r.lex
}

// Chat answers one chat turn. Without usable credentials every input,
// empty or not, gets the authorization reply and the model is not called.
// Otherwise empty input gets a prompt to type something, input mentioning
// the calendar is handled as a calendar request, and anything else gets a
// general assistant reply.
func (r *Router) Chat(ctx context.Context, text string) string {
	ctx, span := instrumentation.StartSpan(ctx, "assistant.chat")
	defer span.End()

	if !r.authorized(ctx, span) {
		return r.lex.Replies.Unauthorized
	}
	if strings.TrimSpace(text) == "" {
		r.metrics.RecordChatTurn(ctx, outcomeEmpty)
		return r.lex.Replies.EmptyMessage
	}
	if r.lex.MentionsCalendar(text) {
		return r.handle(ctx, span, text)
	}

	r.metrics.RecordChatTurn(ctx, outcomeChat)
	span.SetAttributes(attribute.String(instrumentation.SpanAttrIntent, outcomeChat))
	return r.gen.Generate(ctx, r.lex.ChatPrompt(text), r.maxLength)
}

// Handle runs the calendar pipeline for text: authorization check, intent
// analysis by the model, classification and the matching calendar
// operation. It always returns a reply; faults become fixed messages.
func (r *Router) Handle(ctx context.Context, text string) string {
	ctx, span := instrumentation.StartSpan(ctx, "assistant.handle")
	defer span.End()

	if !r.authorized(ctx, span) {
		return r.lex.Replies.Unauthorized
	}
	return r.handle(ctx, span, text)
}

func (r *Router) authorized(ctx context.Context, span trace.Span) bool {
	if r.creds.Authorized(ctx) {
		return true
	}
	r.metrics.RecordChatTurn(ctx, outcomeUnauthorized)
	span.SetAttributes(attribute.String(instrumentation.SpanAttrIntent, outcomeUnauthorized))
	return false
}

func (r *Router) handle(ctx context.Context, span trace.Span, text string) string {
	intent := IntentNone
	reply := r.guard(ctx, r.lex.Replies.ErrorRetry, func() string {
		analysis := r.gen.Generate(ctx, r.lex.IntentPrompt(text), r.maxLength)
		intent = Classify(analysis, r.lex.Markers)
		r.logger.Debug("intent classified", logging.Intent(string(intent)))

		switch intent {
		case IntentQuery:
			return r.query(ctx)
		case IntentCreate:
			return r.guard(ctx, r.lex.Replies.CreateError, func() string {
				return r.create(ctx, text, analysis)
			})
		case IntentMark:
			return r.mark(ctx, text)
		default:
			return r.lex.Replies.NotUnderstood
		}
	})

	span.SetAttributes(attribute.String(instrumentation.SpanAttrIntent, string(intent)))
	r.metrics.RecordChatTurn(ctx, string(intent))
	return reply
}

// guard runs fn and converts a panic into the fallback reply.
func (r *Router) guard(ctx context.Context, fallback string, fn func() string) (reply string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "calendar request panicked",
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
			reply = fallback
		}
	}()
	return fn()
}

func (r *Router) query(ctx context.Context) string {
	events, err := r.cal.ListUpcoming(ctx, listLimit)
	if err != nil {
		return r.calendarFailure(ctx, err)
	}
	if len(events) == 0 {
		return r.lex.Replies.NoEvents
	}

	var b strings.Builder
	b.WriteString(r.lex.Replies.EventsHeader)
	for i, ev := range events {
		fmt.Fprintf(&b, r.lex.Replies.EventLine, i+1, ev.Title, ev.StartText)
	}
	return b.String()
}

func (r *Router) create(ctx context.Context, text, analysis string) string {
	input, err := BuildEventInput(ParseFields(analysis), r.lex.Labels, r.loc, r.lex.MarksImportant(text))
	if err != nil {
		r.logger.Info("incomplete event details", logging.Err(err))
		return r.lex.Replies.CreateIncomplete
	}

	if _, err := r.cal.CreateEvent(ctx, input); err != nil {
		if errors.Is(err, calendar.ErrUnavailable) {
			return r.lex.Replies.Unauthorized
		}
		return r.lex.Replies.CreateIncomplete
	}
	return fmt.Sprintf(r.lex.Replies.Created, input.Title)
}

func (r *Router) mark(ctx context.Context, text string) string {
	events, err := r.cal.ListUpcoming(ctx, listLimit)
	if err != nil {
		return r.calendarFailure(ctx, err)
	}
	if len(events) == 0 {
		return r.lex.Replies.NoMarkCandidates
	}

	ev, ok := MatchEvent(events, text)
	if !ok {
		return r.lex.Replies.NoMatch
	}
	if _, err := r.cal.MarkImportant(ctx, ev.ID); err != nil {
		if errors.Is(err, calendar.ErrNotFound) {
			return r.lex.Replies.NoMatch
		}
		return r.calendarFailure(ctx, err)
	}
	return fmt.Sprintf(r.lex.Replies.Marked, ev.Title)
}

func (r *Router) calendarFailure(ctx context.Context, err error) string {
	if errors.Is(err, calendar.ErrUnavailable) {
		return r.lex.Replies.Unauthorized
	}
	r.logger.WarnContext(ctx, "calendar operation failed", logging.Err(err))
	return r.lex.Replies.CalendarError
}
