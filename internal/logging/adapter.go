package logging

import (
	"log/slog"
)

// Logger is the logging interface expected by robfig/cron.
// It is satisfied by CronLogger.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(err error, msg string, keysAndValues ...interface{})
}

// CronLogger adapts an slog.Logger to the cron scheduler's logger contract.
// Routine scheduling chatter is logged at debug level.
type CronLogger struct {
	logger *slog.Logger
}

// NewCronLogger creates a new CronLogger wrapping the given slog.Logger.
// If logger is nil, slog.Default() is used.
func NewCronLogger(logger *slog.Logger) *CronLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &CronLogger{logger: logger}
}

// Info logs scheduler activity at debug level.
func (a *CronLogger) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug(msg, keysAndValues...)
}

// Error logs a scheduler error with the error attached.
func (a *CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]interface{}{Err(err)}, keysAndValues...)
	a.logger.Error(msg, args...)
}

// Logger returns the underlying slog.Logger for direct access when needed.
func (a *CronLogger) Logger() *slog.Logger {
	return a.logger
}
