// Package logging provides structured logging utilities for agendacal.
//
// All packages log through log/slog. This package keeps attribute names
// consistent across the codebase and makes sure secrets never reach a log
// line.
//
// # Usage Patterns
//
// Scope a logger to an operation and a run:
//
//	logger := logging.WithOperation(slog.Default(), "agenda.refresh")
//	logger.Info("run committed", logging.RunID(id), logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("signed in", logging.UserHash(email))
//	logger.Debug("bearer attached", "token", logging.SanitizeToken(token))
//
// # Security Considerations
//
//   - User emails are hashed to prevent PII leakage while allowing correlation
//   - Tokens are never logged directly, only their length
package logging
