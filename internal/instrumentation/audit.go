package instrumentation

import (
	"context"
	"log/slog"
	"time"
)

// Audit actions for calendar mutations.
const (
	AuditActionCreateEvent   = "create_event"
	AuditActionMarkImportant = "mark_important"
)

// Sources of calendar mutations.
const (
	AuditSourceChat = "chat"
	AuditSourceMCP  = "mcp"
)

type auditSourceKey struct{}

// WithAuditSource marks ctx with the surface a mutation originates from.
func WithAuditSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, auditSourceKey{}, source)
}

// AuditSource returns the source set by WithAuditSource, or "unknown".
func AuditSource(ctx context.Context) string {
	if s, ok := ctx.Value(auditSourceKey{}).(string); ok && s != "" {
		return s
	}
	return "unknown"
}

// CalendarChange is one audited mutation of the connected calendar.
type CalendarChange struct {
	Action   string
	Source   string
	EventID  string
	Title    string
	Duration time.Duration
	Err      error
}

// AuditLogger writes an audit trail of calendar mutations. Reads are not audited.
type AuditLogger struct {
	logger *slog.Logger
	config AuditLoggingConfig
}

// NewAuditLogger creates an AuditLogger writing to logger.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger: logger.With("audit", true),
		config: config,
	}
}

// LogCalendarChange records a mutation. It is safe to call on a nil logger.
func (a *AuditLogger) LogCalendarChange(ctx context.Context, change CalendarChange) {
	if a == nil || !a.config.Enabled {
		return
	}

	attrs := []slog.Attr{
		slog.String("action", change.Action),
		slog.String("source", change.Source),
		slog.Duration("duration", change.Duration),
		slog.Bool("success", change.Err == nil),
	}
	if change.EventID != "" {
		attrs = append(attrs, slog.String("event_id", change.EventID))
	}
	if a.config.IncludeTitles && change.Title != "" {
		attrs = append(attrs, slog.String("title", change.Title))
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID))
	}
	if change.Err != nil {
		attrs = append(attrs, slog.String("error", change.Err.Error()))
		a.logger.LogAttrs(ctx, slog.LevelWarn, "calendar change failed", attrs...)
		return
	}
	a.logger.LogAttrs(ctx, slog.LevelInfo, "calendar change", attrs...)
}
