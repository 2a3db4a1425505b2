package instrumentation

import (
	"context"
	"log/slog"
	"time"
)

// Action captures one user-initiated agenda operation for audit logging:
// an MCP tool call, an HTTP API call, or a session transition.
//
// UserEmail is PII. LogAttrs only exposes its domain; LogAuditAttrs
// includes it in full.
type Action struct {
	// Name is the tool or endpoint, e.g. "agenda_refresh" or "session.sign_in".
	Name string

	UserEmail string

	// Window the action operated on, if any.
	WindowStart string
	WindowDays  int

	// RunID links the action to the aggregation run it triggered.
	RunID string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewAction creates an Action with timing started.
// Call Complete when the operation finishes.
func NewAction(name string) *Action {
	return &Action{
		Name:      name,
		StartTime: time.Now(),
	}
}

// UserDomain returns the domain portion of the user's email.
func (a *Action) UserDomain() string {
	return ExtractUserDomain(a.UserEmail)
}

// Status returns "success" or "error" based on the Success field.
func (a *Action) Status() string {
	if a.Success {
		return StatusSuccess
	}
	return StatusError
}

// WithUser sets the signed-in user.
func (a *Action) WithUser(email string) *Action {
	a.UserEmail = email
	return a
}

// WithWindow records the window the action operated on.
func (a *Action) WithWindow(start string, days int) *Action {
	a.WindowStart = start
	a.WindowDays = days
	return a
}

// WithRunID links the action to an aggregation run.
func (a *Action) WithRunID(runID string) *Action {
	a.RunID = runID
	return a
}

// WithSpanContext copies trace and span ids from ctx.
func (a *Action) WithSpanContext(ctx context.Context) *Action {
	a.TraceID = GetTraceID(ctx)
	a.SpanID = GetSpanID(ctx)
	return a
}

// Complete marks the action as finished and records its duration.
func (a *Action) Complete(err error) *Action {
	a.Duration = time.Since(a.StartTime)
	a.Success = err == nil
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

// LogAttrs returns cardinality-controlled attributes for operational logs.
func (a *Action) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", a.Name),
		slog.String("user_domain", a.UserDomain()),
		slog.Duration("duration", a.Duration),
		slog.Bool("success", a.Success),
	}
	return append(attrs, a.optionalAttrs(false)...)
}

// LogAuditAttrs returns the full attribute set including the user's email.
func (a *Action) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", a.Name),
		slog.String("user", a.UserEmail),
		slog.Duration("duration", a.Duration),
		slog.Bool("success", a.Success),
	}
	return append(attrs, a.optionalAttrs(true)...)
}

func (a *Action) optionalAttrs(withSpan bool) []slog.Attr {
	var attrs []slog.Attr
	if a.WindowStart != "" {
		attrs = append(attrs, slog.String("window_start", a.WindowStart), slog.Int("window_days", a.WindowDays))
	}
	if a.RunID != "" {
		attrs = append(attrs, slog.String("run_id", a.RunID))
	}
	if a.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", a.TraceID))
	}
	if withSpan && a.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", a.SpanID))
	}
	if a.Error != "" {
		attrs = append(attrs, slog.String("error", a.Error))
	}
	return attrs
}

// AuditLogger writes audit records for agenda actions.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
	level      slog.Level
}

// NewAuditLogger creates an enabled AuditLogger that anonymizes users.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates an AuditLogger from config. An invalid
// level falls back to info.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	level, _ := ParseAuditLevel(config.Level)
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
		level:      level,
	}
}

// Log writes a record for a at the configured level. Failures are logged at
// warn or above.
// Full emails are only included when the logger was configured with
// IncludePII. Safe to call on a nil *AuditLogger.
func (al *AuditLogger) Log(ctx context.Context, a *Action) {
	if al == nil || !al.enabled || a == nil {
		return
	}

	attrs := a.LogAttrs()
	if al.includePII {
		attrs = a.LogAuditAttrs()
	}

	if a.Success {
		al.logger.LogAttrs(ctx, al.level, "action_audit", attrs...)
	} else {
		al.logger.LogAttrs(ctx, max(al.level, slog.LevelWarn), "action_failed", attrs...)
	}
}
