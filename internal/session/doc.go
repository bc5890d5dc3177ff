// Package session provides in-memory browser sessions identified by a
// signed cookie.
//
// The cookie value is an HS256 JWT carrying the session id. Sessions hold
// the session-scoped copy of the calendar credentials and the OAuth state
// of an authorization in progress, and expire after a period of inactivity.
package session
