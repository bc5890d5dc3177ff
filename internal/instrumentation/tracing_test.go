package instrumentation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestStartGoogleAPISpan(t *testing.T) {
	recorder := withRecorder(t)

	ctx, span := StartGoogleAPISpan(context.Background(), ServiceCalendar, OperationList)
	assert.NotEmpty(t, GetTraceID(ctx))
	SetSpanSuccess(span)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "google.calendar.list", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
}

func TestStartModelAndToolSpans(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartModelSpan(context.Background(), "qwen2.5:0.5b")
	span.End()
	_, span = StartToolSpan(context.Background(), "assistant_chat")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "llm.generate", spans[0].Name())
	assert.Equal(t, "tool.assistant_chat", spans[1].Name())
}

func TestSetSpanError(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartSpan(context.Background(), "assistant.handle")
	SetSpanError(span, nil) // no-op
	SetSpanError(span, errors.New("boom"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}
