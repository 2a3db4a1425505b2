package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/agendacal/internal/instrumentation"
	"github.com/teemow/agendacal/internal/logging"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrumentHandler records request metrics and a tracing span for every
// request. The path label is the matched route pattern so that ids in URLs
// do not inflate cardinality.
func instrumentHandler(next http.Handler, metrics *instrumentation.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := instrumentation.StartSpan(r.Context(), "http.request")
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		r = r.WithContext(ctx)
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		duration := time.Since(start)
		metrics.RecordHTTPRequest(ctx, r.Method, route, rec.status, duration)
		if rec.status >= http.StatusInternalServerError {
			instrumentation.SetSpanError(span, errStatus(rec.status))
		}

		logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int(logging.KeyStatus, rec.status),
			slog.Duration(logging.KeyDuration, duration))
	})
}

type errStatus int

func (e errStatus) Error() string {
	return http.StatusText(int(e))
}
