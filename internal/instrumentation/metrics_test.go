package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

// counterTotal sums all data points of the named Int64 sum metric.
func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestMetrics_Counters(t *testing.T) {
	ctx := context.Background()
	m, reader := newTestMetrics(t)

	m.RecordHTTPRequest(ctx, "POST", "/chat", 200, 100*time.Millisecond)
	m.RecordHTTPRequest(ctx, "GET", "/health", 503, time.Millisecond)
	m.RecordGoogleAPIOperation(ctx, ServiceCalendar, OperationList, StatusSuccess, 200*time.Millisecond)
	m.RecordOAuthAuth(ctx, OAuthResultSuccess)
	m.RecordOAuthTokenRefresh(ctx, OAuthResultFailure)
	m.RecordOAuthTokenRefresh(ctx, OAuthResultSuccess)
	m.RecordChatTurn(ctx, "query")
	m.RecordModelGeneration(ctx, StatusError, 2*time.Second)
	m.RecordToolInvocation(ctx, "calendar_list_upcoming", StatusSuccess, 10*time.Millisecond)

	assert.Equal(t, int64(2), counterTotal(t, reader, "http_requests_total"))
	assert.Equal(t, int64(1), counterTotal(t, reader, "google_api_operations_total"))
	assert.Equal(t, int64(1), counterTotal(t, reader, "oauth_auth_total"))
	assert.Equal(t, int64(2), counterTotal(t, reader, "oauth_token_refresh_total"))
	assert.Equal(t, int64(1), counterTotal(t, reader, "chat_turns_total"))
	assert.Equal(t, int64(1), counterTotal(t, reader, "model_generations_total"))
	assert.Equal(t, int64(1), counterTotal(t, reader, "mcp_tool_invocations_total"))
}

func TestMetrics_ActiveSessions(t *testing.T) {
	ctx := context.Background()
	m, reader := newTestMetrics(t)

	m.IncrementActiveSessions(ctx)
	m.IncrementActiveSessions(ctx)
	m.DecrementActiveSessions(ctx)

	assert.Equal(t, int64(1), counterTotal(t, reader, "active_sessions"))
}

func TestMetrics_NoOp(t *testing.T) {
	ctx := context.Background()

	// Zero value and nil receivers must be safe
	for _, m := range []*Metrics{{}, nil} {
		m.RecordHTTPRequest(ctx, "GET", "/", 200, time.Millisecond)
		m.RecordGoogleAPIOperation(ctx, ServiceCalendar, OperationCreate, StatusSuccess, time.Millisecond)
		m.RecordOAuthAuth(ctx, OAuthResultSuccess)
		m.RecordOAuthTokenRefresh(ctx, OAuthResultExpired)
		m.RecordChatTurn(ctx, "none")
		m.RecordModelGeneration(ctx, StatusSuccess, time.Millisecond)
		m.RecordToolInvocation(ctx, "assistant_chat", StatusSuccess, time.Millisecond)
		m.IncrementActiveSessions(ctx)
		m.DecrementActiveSessions(ctx)
	}
}
