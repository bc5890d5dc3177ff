// Package logging provides structured logging utilities for calassist.
//
// All packages log through log/slog. This package keeps attribute names
// consistent and offers helpers that keep secrets out of log output.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "calendar.list")
//	logger.Info("listing events", logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Debug("token refreshed",
//	    "access_token", logging.SanitizeToken(tok.AccessToken),
//	    logging.Session(sessionID))
//
// OAuth tokens, authorization codes and raw session ids are never logged.
package logging
