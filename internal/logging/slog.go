package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation = "operation"
	KeyProvider  = "provider"
	KeyUserID    = "user_id"
	KeyAccountID = "account_id"
	KeyEventID   = "event_id"
	KeyAgentID   = "agent_id"
	KeySweep     = "sweep"
	KeyJobID     = "job_id"
	KeyUserHash  = "user_hash"
	KeyDuration  = "duration"
	KeyStatus    = "status"
	KeyError     = "error"
)

// Status values for consistent logging.
// Note: These are intentionally duplicated from instrumentation package
// to avoid circular dependencies (instrumentation imports logging).
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Output formats accepted by NewHandler.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// NewHandler builds the process log handler. Unknown formats fall back to
// JSON and unknown levels to info.
func NewHandler(w io.Writer, format, level string) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, FormatText) {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithUser returns a logger scoped to one user.
func WithUser(logger *slog.Logger, userID uint) *slog.Logger {
	return logger.With(UserID(userID))
}

// WithSweep returns a logger with the sweep attribute set.
func WithSweep(logger *slog.Logger, sweep string) *slog.Logger {
	return logger.With(slog.String(KeySweep, sweep))
}

// Sweep returns a slog attribute for a periodic sweep name.
func Sweep(name string) slog.Attr {
	return slog.String(KeySweep, name)
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Provider returns a slog attribute for an external provider name.
func Provider(name string) slog.Attr {
	return slog.String(KeyProvider, name)
}

// UserID returns a slog attribute for a local user id.
func UserID(id uint) slog.Attr {
	return slog.Uint64(KeyUserID, uint64(id))
}

// AccountID returns a slog attribute for a calendar account id.
func AccountID(id uint) slog.Attr {
	return slog.Uint64(KeyAccountID, uint64(id))
}

// EventID returns a slog attribute for a calendar event. Both the local row
// id and the provider's id are accepted.
func EventID(id any) slog.Attr {
	return slog.Any(KeyEventID, id)
}

// AgentID returns a slog attribute for a recording agent id.
func AgentID(id string) slog.Attr {
	return slog.String(KeyAgentID, id)
}

// JobID returns a slog attribute for a queued job id.
func JobID(id string) slog.Attr {
	return slog.String(KeyJobID, id)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from output.
// This allows safely passing Err(maybeNilErr) without adding empty attributes.
//
// Usage:
//
//	logger.Info("operation", logging.Err(err))  // Safe even if err is nil
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail returns a hashed representation of an email for logging purposes.
// This allows correlation of log entries without exposing PII.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(email))
	return "user:" + hex.EncodeToString(hash[:8])
}

// UserHash returns a slog attribute with the anonymized user email.
//
// Usage:
//
//	logger.Info("account synced", logging.UserHash(account.Email))
func UserHash(email string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(email))
}

// SanitizeToken returns a masked version of a token for logging.
// It returns a length indicator without exposing any token content.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// ExtractDomain extracts the domain part from an email address.
func ExtractDomain(email string) string {
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

// Domain returns a slog attribute for the email domain (lower cardinality than full email).
func Domain(email string) slog.Attr {
	return slog.String("user_domain", ExtractDomain(email))
}
