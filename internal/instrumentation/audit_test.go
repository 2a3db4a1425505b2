package instrumentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

const (
	testEmail   = "jane@example.com"
	testDomain  = "example.com"
	testTraceID = "abc123def456"
	testSpanID  = "span789"
	testRunID   = "run-42"
)

func attrsByKey(attrs []slog.Attr) map[string]slog.Attr {
	m := make(map[string]slog.Attr, len(attrs))
	for _, attr := range attrs {
		m[attr.Key] = attr
	}
	return m
}

func TestAction_NewAndComplete(t *testing.T) {
	a := NewAction("agenda_refresh")

	if a.Name != "agenda_refresh" {
		t.Errorf("Name = %q, want %q", a.Name, "agenda_refresh")
	}
	if a.StartTime.IsZero() {
		t.Error("StartTime should not be zero")
	}

	a.Complete(nil)

	if !a.Success {
		t.Error("Success should be true")
	}
	if a.Duration < 0 {
		t.Error("Duration should not be negative")
	}
	if a.Error != "" {
		t.Errorf("Error should be empty, got %q", a.Error)
	}
	if a.Status() != StatusSuccess {
		t.Errorf("Status = %q, want %q", a.Status(), StatusSuccess)
	}
}

func TestAction_CompleteWithError(t *testing.T) {
	a := NewAction("session.sign_in").Complete(errors.New("invalid credential"))

	if a.Success {
		t.Error("Success should be false")
	}
	if a.Error != "invalid credential" {
		t.Errorf("Error = %q, want %q", a.Error, "invalid credential")
	}
	if a.Status() != StatusError {
		t.Errorf("Status = %q, want %q", a.Status(), StatusError)
	}
}

func TestAction_LogAttrs_HidesEmail(t *testing.T) {
	a := NewAction("agenda_view").
		WithUser(testEmail).
		WithWindow("2025-06-08", 8).
		WithRunID(testRunID).
		Complete(nil)
	a.TraceID = testTraceID
	a.SpanID = testSpanID

	attrMap := attrsByKey(a.LogAttrs())

	if _, ok := attrMap["user"]; ok {
		t.Error("user should not be present in operational attributes")
	}
	if got := attrMap["user_domain"].Value.String(); got != testDomain {
		t.Errorf("user_domain = %q, want %q", got, testDomain)
	}
	if got := attrMap["window_start"].Value.String(); got != "2025-06-08" {
		t.Errorf("window_start = %q, want %q", got, "2025-06-08")
	}
	if got := attrMap["window_days"].Value.Int64(); got != 8 {
		t.Errorf("window_days = %d, want 8", got)
	}
	if got := attrMap["run_id"].Value.String(); got != testRunID {
		t.Errorf("run_id = %q, want %q", got, testRunID)
	}
	if got := attrMap["trace_id"].Value.String(); got != testTraceID {
		t.Errorf("trace_id = %q, want %q", got, testTraceID)
	}
	if _, ok := attrMap["span_id"]; ok {
		t.Error("span_id should only be present in audit attributes")
	}
}

func TestAction_LogAttrs_MinimalFields(t *testing.T) {
	attrMap := attrsByKey(NewAction("agenda_view").Complete(nil).LogAttrs())

	for _, key := range []string{"window_start", "run_id", "trace_id", "error"} {
		if _, ok := attrMap[key]; ok {
			t.Errorf("%s should not be present when empty", key)
		}
	}
}

func TestAction_LogAuditAttrs(t *testing.T) {
	a := NewAction("agenda_refresh").
		WithUser(testEmail).
		Complete(errors.New("audit error"))
	a.TraceID = testTraceID
	a.SpanID = testSpanID

	attrMap := attrsByKey(a.LogAuditAttrs())

	if got := attrMap["user"].Value.String(); got != testEmail {
		t.Errorf("user = %q, want %q", got, testEmail)
	}
	if got := attrMap["span_id"].Value.String(); got != testSpanID {
		t.Errorf("span_id = %q, want %q", got, testSpanID)
	}
	if _, ok := attrMap["error"]; !ok {
		t.Error("missing error attribute")
	}
}

func TestAction_WithSpanContext_NoSpan(t *testing.T) {
	a := NewAction("test").WithSpanContext(context.Background())

	if a.TraceID != "" {
		t.Errorf("TraceID = %q, want empty string", a.TraceID)
	}
	if a.SpanID != "" {
		t.Errorf("SpanID = %q, want empty string", a.SpanID)
	}
}

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("failed to decode log record %q: %v", buf.String(), err)
	}
	return rec
}

func TestAuditLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.Log(context.Background(), NewAction("agenda_refresh").WithUser(testEmail).Complete(nil))

	rec := decodeRecord(t, &buf)
	if rec["msg"] != "action_audit" {
		t.Errorf("msg = %v, want action_audit", rec["msg"])
	}
	if rec["level"] != "INFO" {
		t.Errorf("level = %v, want INFO", rec["level"])
	}
	if strings.Contains(buf.String(), testEmail) {
		t.Error("email should not be logged without IncludePII")
	}
}

func TestAuditLogger_Log_FailureAndPII(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLoggerWithConfig(slog.New(slog.NewJSONHandler(&buf, nil)), AuditLoggingConfig{
		Enabled:    true,
		IncludePII: true,
	})

	al.Log(context.Background(), NewAction("session.sign_in").WithUser(testEmail).Complete(errors.New("denied")))

	rec := decodeRecord(t, &buf)
	if rec["msg"] != "action_failed" {
		t.Errorf("msg = %v, want action_failed", rec["msg"])
	}
	if rec["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", rec["level"])
	}
	if rec["user"] != testEmail {
		t.Errorf("user = %v, want %q", rec["user"], testEmail)
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLoggerWithConfig(slog.New(slog.NewJSONHandler(&buf, nil)), AuditLoggingConfig{})

	al.Log(context.Background(), NewAction("agenda_view").Complete(nil))

	if buf.Len() != 0 {
		t.Errorf("expected no output when disabled, got %q", buf.String())
	}
}

func TestAuditLogger_NilSafe(t *testing.T) {
	var al *AuditLogger
	al.Log(context.Background(), NewAction("agenda_view"))
}
