package common

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calassist/internal/instrumentation"
	"github.com/teemow/calassist/internal/logging"
)

// InstrumentedToolHandler wraps a tool handler with a tool span, the
// mcp_tool_invocations_total metric and a debug log line. Calendar changes
// made inside the handler are audited with source "mcp".
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", metrics, logger, handler))
func InstrumentedToolHandler(
	toolName string,
	metrics *instrumentation.Metrics,
	logger *slog.Logger,
	handler mcpserver.ToolHandlerFunc,
) mcpserver.ToolHandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithTool(logger, toolName)

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = instrumentation.WithAuditSource(ctx, instrumentation.AuditSourceMCP)
		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		defer span.End()

		start := time.Now()
		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		switch {
		case err != nil:
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, err)
		case result != nil && result.IsError:
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, errors.New(ResultText(result)))
		default:
			instrumentation.SetSpanSuccess(span)
		}

		metrics.RecordToolInvocation(ctx, toolName, status, duration)
		logger.Debug("tool invoked",
			logging.Status(status),
			"duration", duration,
			logging.Err(err),
		)

		return result, err
	}
}

// ResultText joins the text content of a tool result.
func ResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var text string
	for _, c := range result.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			text += tc.Text
		}
	}
	return text
}
