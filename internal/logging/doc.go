// Package logging provides structured logging utilities for notetaker.
//
// All components log through log/slog. This package keeps attribute names
// consistent across the calendar synchronizer, the bot lifecycle manager and
// the schedulers, and provides helpers that keep personal data out of logs.
//
// # Usage Patterns
//
// Scope a logger to one sweep and user:
//
//	logger := logging.WithUser(logging.WithSweep(slog.Default(), "joins"), user.ID)
//	logger.Info("join issued", logging.AgentID(id), logging.Status(logging.StatusSuccess))
//
// Never log account emails directly:
//
//	logger.Warn("calendar fetch failed", logging.UserHash(account.Email), logging.Err(err))
//
// # Security Considerations
//
//   - Account emails are hashed to prevent PII leakage while allowing correlation
//   - OAuth tokens are never logged; use SanitizeToken when a token must be referenced
package logging
