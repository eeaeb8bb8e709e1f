package instrumentation

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestAgentAction_Complete(t *testing.T) {
	a := NewAgentAction(ActionCreate).
		WithUser(3, "jane@example.com").
		WithEvent(11, "https://zoom.us/j/123").
		WithAgent("bot-1")

	a.Complete(nil)
	if !a.Success || a.Status() != StatusSuccess {
		t.Errorf("expected success, got %v / %s", a.Success, a.Status())
	}

	a.Complete(errors.New("provider down"))
	if a.Success || a.Status() != StatusError {
		t.Errorf("expected error, got %v / %s", a.Success, a.Status())
	}
	if a.Error != "provider down" {
		t.Errorf("unexpected error %q", a.Error)
	}
}

func TestAuditLogger_Anonymized(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogAgentAction(NewAgentAction(ActionJoin).
		WithUser(3, "jane@example.com").
		WithEvent(11, "https://zoom.us/j/123").
		WithAgent("bot-1").
		Complete(nil))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]

	if entry["msg"] != "agent_action" {
		t.Errorf("unexpected message %v", entry["msg"])
	}
	if entry["user_domain"] != "example.com" {
		t.Errorf("expected user_domain example.com, got %v", entry["user_domain"])
	}
	if _, ok := entry["account"]; ok {
		t.Error("account email must not be logged without PII")
	}
	if _, ok := entry["meeting_url"]; ok {
		t.Error("meeting url must not be logged without PII")
	}
	if entry["agent_id"] != "bot-1" {
		t.Errorf("expected agent_id bot-1, got %v", entry["agent_id"])
	}
}

func TestAuditLogger_WithPII(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLoggerWithConfig(slog.New(slog.NewJSONHandler(&buf, nil)), AuditLoggingConfig{
		Enabled:    true,
		IncludePII: true,
	})

	al.LogAgentAction(NewAgentAction(ActionHarvest).
		WithUser(3, "jane@example.com").
		Complete(errors.New("transcript missing")))

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]

	if entry["msg"] != "agent_action_failed" {
		t.Errorf("unexpected message %v", entry["msg"])
	}
	if entry["level"] != "WARN" {
		t.Errorf("expected WARN level, got %v", entry["level"])
	}
	if entry["account"] != "jane@example.com" {
		t.Errorf("expected account email, got %v", entry["account"])
	}
	if entry["error"] != "transcript missing" {
		t.Errorf("unexpected error %v", entry["error"])
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	al.SetEnabled(false)

	al.LogAgentAction(NewAgentAction(ActionLeave).Complete(nil))
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}

	var nilLogger *AuditLogger
	nilLogger.LogAgentAction(NewAgentAction(ActionLeave))
}
