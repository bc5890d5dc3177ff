// Package server is the HTTP façade of the assistant.
//
// Server routes the chat UI, the chat endpoint, the OAuth authorization
// round trip with the calendar provider and the health probes through a
// chi router. Every browser-facing route runs inside a session (see
// package session) so the credential overlay and the pending OAuth state
// follow the browser.
//
// Routes:
//   - GET  /                 chat UI
//   - POST /chat             one chat turn, {"message"} in, {"response"} out
//   - GET  /authorize        redirect to the provider consent page
//   - GET  /oauth2callback   finish authorization, redirect to /
//   - GET  /auth_status      {"authorized": bool}
//   - GET  /health           {"status","message"}, 503 until the model is loaded
//   - GET  /healthz, /readyz Kubernetes probes
//
// MetricsServer serves Prometheus metrics on a separate port so they are
// not exposed on the public listener.
package server
