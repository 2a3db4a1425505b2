// Package instrumentation provides OpenTelemetry metrics, tracing and
// audit logging for the agendacal service.
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//   - active_sessions: Gauge of signed-in sessions
//   - sign_in_total: Counter of sign-in transitions by result
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Calendar/OAuth operations by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Google API operation durations
//
// Agenda Metrics:
//   - agenda_runs_total: Counter of aggregation runs by result
//   - agenda_run_duration_seconds: Histogram of aggregation run durations
//   - agenda_retries_total: Counter of retried fetch attempts
//   - agenda_skipped_events_total: Counter of events dropped during expansion by reason
//   - agenda_window_cache_lookups_total: Counter of date window lookups by cache hit/miss
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// # Tracing
//
// Spans are created for aggregation runs (agenda.refresh), MCP tool
// invocations (tool.<name>) and Google API calls
// (google.<service>.<operation>).
//
// # Configuration
//
// Config is filled by the config package from the instrumentation block of
// the YAML file. Environment overrides:
//   - AGENDACAL_INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - AGENDACAL_METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - AGENDACAL_TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - AGENDACAL_METRICS_DETAILED_LABELS: Add the user's domain to sign-in metrics
//   - AGENDACAL_AUDIT_ENABLED, AGENDACAL_AUDIT_INCLUDE_PII, AGENDACAL_AUDIT_LEVEL
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE: OTLP collector
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: agendacal)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordAgendaRun(ctx, "committed", time.Since(start))
//	recorder.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar,
//		instrumentation.OperationListEvents, instrumentation.StatusSuccess, time.Since(start))
package instrumentation
