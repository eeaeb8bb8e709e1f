package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopedLoggers(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	logger := WithSweep(WithUser(WithOperation(base, "sync"), 7), "joins")
	logger.Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sync", entry[KeyOperation])
	assert.Equal(t, float64(7), entry[KeyUserID])
	assert.Equal(t, "joins", entry[KeySweep])
}

func TestAttrs(t *testing.T) {
	tests := []struct {
		name  string
		attr  slog.Attr
		key   string
		value string
	}{
		{"operation", Operation("calendar.fetch"), KeyOperation, "calendar.fetch"},
		{"provider", Provider("google"), KeyProvider, "google"},
		{"user id", UserID(3), KeyUserID, "3"},
		{"account id", AccountID(9), KeyAccountID, "9"},
		{"event id string", EventID("evt-42"), KeyEventID, "evt-42"},
		{"event id number", EventID(uint(12)), KeyEventID, "12"},
		{"agent id", AgentID("bot-1"), KeyAgentID, "bot-1"},
		{"job id", JobID("job-1"), KeyJobID, "job-1"},
		{"status", Status(StatusSkipped), KeyStatus, "skipped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, tt.value, tt.attr.Value.String())
		})
	}
}

func TestErr(t *testing.T) {
	attr := Err(errors.New("test error"))
	assert.Equal(t, KeyError, attr.Key)
	assert.Equal(t, "test error", attr.Value.String())

	// nil yields an empty group that slog omits
	attr = Err(nil)
	assert.Equal(t, "", attr.Key)
}

func TestNewHandler(t *testing.T) {
	var buf bytes.Buffer

	h := NewHandler(&buf, FormatText, "debug")
	slog.New(h).Debug("visible", "k", "v")
	assert.Contains(t, buf.String(), "msg=visible")

	buf.Reset()
	h = NewHandler(&buf, "anything", "")
	slog.New(h).Info("json")
	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.in))
		})
	}
}

func TestAnonymizeEmail(t *testing.T) {
	assert.Len(t, AnonymizeEmail("jane@example.com"), 21)
	assert.Equal(t, "user:", AnonymizeEmail("jane@example.com")[:5])
	assert.Empty(t, AnonymizeEmail(""))
	assert.Equal(t, AnonymizeEmail("test@example.com"), AnonymizeEmail("test@example.com"))
	assert.NotEqual(t, AnonymizeEmail("test@example.com"), AnonymizeEmail("other@example.com"))
}

func TestUserHash(t *testing.T) {
	attr := UserHash("jane@example.com")
	assert.Equal(t, KeyUserHash, attr.Key)
	assert.Len(t, attr.Value.String(), 21)
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "<empty>", SanitizeToken(""))
	assert.Equal(t, "[token:6 chars]", SanitizeToken("abc123"))
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		email    string
		expected string
	}{
		{"jane@example.com", "example.com"},
		{"invalid", ""},
		{"", ""},
		{"user@", ""},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractDomain(tt.email))
		})
	}

	assert.Equal(t, "example.com", Domain("jane@example.com").Value.String())
}
