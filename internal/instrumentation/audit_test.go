package instrumentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger_LogCalendarChange(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	al := NewAuditLogger(logger, AuditLoggingConfig{Enabled: true})

	al.LogCalendarChange(context.Background(), CalendarChange{
		Action:  AuditActionCreateEvent,
		Source:  "chat",
		EventID: "evt1",
		Title:   "Dentist",
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "calendar change", entry["msg"])
	assert.Equal(t, AuditActionCreateEvent, entry["action"])
	assert.Equal(t, "evt1", entry["event_id"])
	assert.Equal(t, true, entry["success"])
	assert.NotContains(t, entry, "title")
}

func TestAuditLogger_FailureIncludesError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	al := NewAuditLogger(logger, AuditLoggingConfig{Enabled: true, IncludeTitles: true})

	al.LogCalendarChange(context.Background(), CalendarChange{
		Action: AuditActionMarkImportant,
		Source: "mcp",
		Title:  "Standup",
		Err:    errors.New("not found"),
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "not found", entry["error"])
	assert.Equal(t, "Standup", entry["title"])
}

func TestAuditLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)), AuditLoggingConfig{Enabled: false})
	al.LogCalendarChange(context.Background(), CalendarChange{Action: AuditActionCreateEvent})
	assert.Zero(t, buf.Len())

	var nilLogger *AuditLogger
	nilLogger.LogCalendarChange(context.Background(), CalendarChange{})
}

func TestAuditSource(t *testing.T) {
	assert.Equal(t, "unknown", AuditSource(context.Background()))
	assert.Equal(t, AuditSourceMCP, AuditSource(WithAuditSource(context.Background(), AuditSourceMCP)))
}
