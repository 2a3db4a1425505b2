package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNewCronLogger_WithNil(t *testing.T) {
	adapter := NewCronLogger(nil)
	if adapter == nil {
		t.Fatal("NewCronLogger returned nil")
	}
	if adapter.logger == nil {
		t.Error("adapter.logger should not be nil when created with nil")
	}
}

func TestNewCronLogger_WithLogger(t *testing.T) {
	logger := slog.Default()
	adapter := NewCronLogger(logger)
	if adapter.Logger() != logger {
		t.Error("Logger() should return the underlying logger")
	}
}

func TestCronLogger_InfoIsDebug(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewCronLogger(NewLogger(&buf, "text", "info"))

	adapter.Info("wake", "now", "2025-06-08")
	if buf.Len() != 0 {
		t.Errorf("expected scheduler info to be suppressed at info level, got %q", buf.String())
	}

	buf.Reset()
	adapter = NewCronLogger(NewLogger(&buf, "text", "debug"))
	adapter.Info("wake", "now", "2025-06-08")
	if !strings.Contains(buf.String(), "wake") {
		t.Errorf("expected debug output, got %q", buf.String())
	}
}

func TestCronLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewCronLogger(NewLogger(&buf, "json", "info"))

	adapter.Error(errors.New("boom"), "job panicked", "entry", 3)
	out := buf.String()
	if !strings.Contains(out, `"error":"boom"`) {
		t.Errorf("expected error attribute, got %q", out)
	}
	if !strings.Contains(out, `"entry":3`) {
		t.Errorf("expected entry attribute, got %q", out)
	}
}

func TestLoggerInterface(t *testing.T) {
	var _ Logger = (*CronLogger)(nil)
}
