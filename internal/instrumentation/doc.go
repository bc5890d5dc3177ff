// Package instrumentation provides OpenTelemetry metrics and tracing for calassist.
//
// # Metrics
//
// HTTP:
//   - http_requests_total, http_request_duration_seconds (method, path, status)
//   - active_sessions: live browser sessions
//
// Calendar provider:
//   - google_api_operations_total, google_api_operation_duration_seconds (service, operation, status)
//   - oauth_auth_total (result), oauth_token_refresh_total (result)
//
// Assistant:
//   - chat_turns_total (intent)
//   - model_generations_total, model_generation_duration_seconds (status)
//   - mcp_tool_invocations_total, mcp_tool_duration_seconds (tool, status)
//
// # Tracing
//
// Spans are created for calendar calls (google.calendar.<operation>),
// model calls (llm.generate), chat routing (assistant.handle) and MCP
// tools (tool.<name>).
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED: enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG: sampling rate (default: 0.1)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_TITLES
package instrumentation
