package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agendacal/internal/agenda"
	"github.com/teemow/agendacal/internal/instrumentation"
	"github.com/teemow/agendacal/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Window.Days)
	assert.Equal(t, DefaultRefreshCron, cfg.Refresh.Cron)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.Initial)
	assert.Equal(t, 8*time.Second, cfg.Retry.Max)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.StartDate().IsZero())
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
window:
  days: 14
  timezone: Europe/Berlin
  start_date: "2025-06-08"
refresh:
  cron: "0 * * * *"
  timeout: 30s
calendar:
  visible: [primary, team@example.com]
retry:
  attempts: 5
  initial: 250ms
  max: 4s
log:
  format: JSON
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.Window.Days)
	assert.Equal(t, "0 * * * *", cfg.Refresh.Cron)
	assert.Equal(t, 30*time.Second, cfg.Refresh.Timeout)
	assert.Equal(t, []string{"primary", "team@example.com"}, cfg.Calendar.Visible)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, model.NewDate(2025, time.June, 8), cfg.StartDate())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	p := cfg.RetryPolicy()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, p.InitialInterval)
	assert.Equal(t, 4*time.Second, p.MaxInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "window:\n  days: 3\n")
	t.Setenv("AGENDACAL_WINDOW_DAYS", "10")
	t.Setenv("AGENDACAL_VISIBLE_CALENDARS", "a, b,,c")
	t.Setenv("AGENDACAL_REFRESH_CRON", "")
	t.Setenv("GOOGLE_CLIENT_ID", "client")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Window.Days)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Calendar.Visible)
	assert.Empty(t, cfg.Refresh.Cron, "an explicitly empty cron disables scheduled refresh")
	assert.True(t, cfg.OAuthConfigured())
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("AGENDACAL_WINDOW_DAYS", "eight")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WINDOW_DAYS")
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "window: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero days", mutate: func(c *Config) { c.Window.Days = 0 }, wantErr: "window.days"},
		{name: "too many days", mutate: func(c *Config) { c.Window.Days = MaxWindowDays + 1 }, wantErr: "window.days"},
		{name: "bad timezone", mutate: func(c *Config) { c.Window.Timezone = "Mars/Olympus" }, wantErr: "window.timezone"},
		{name: "bad start date", mutate: func(c *Config) { c.Window.StartDate = "2025-13-01" }, wantErr: "window.start_date"},
		{name: "bad cron", mutate: func(c *Config) { c.Refresh.Cron = "every minute" }, wantErr: "refresh.cron"},
		{name: "empty cron", mutate: func(c *Config) { c.Refresh.Cron = "" }},
		{name: "no attempts", mutate: func(c *Config) { c.Retry.Attempts = 0 }, wantErr: "retry.attempts"},
		{name: "max below initial", mutate: func(c *Config) { c.Retry.Max = time.Millisecond }, wantErr: "retry intervals"},
		{name: "bad format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
		{name: "bad metrics exporter", mutate: func(c *Config) { c.Instrumentation.MetricsExporter = "statsd" }, wantErr: "instrumentation: invalid metrics exporter"},
		{name: "otlp without endpoint", mutate: func(c *Config) { c.Instrumentation.TracingExporter = "otlp" }, wantErr: "OTLP endpoint is required"},
		{name: "bad sampling rate", mutate: func(c *Config) { c.Instrumentation.SamplingRate = 2 }, wantErr: "sampling rate"},
		{name: "bad audit level", mutate: func(c *Config) { c.Instrumentation.Audit.Level = "loud" }, wantErr: "audit log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMaxWindowDaysMatchesEngine(t *testing.T) {
	assert.Equal(t, agenda.MaxWindowDays, MaxWindowDays)
}

func TestLoad_InstrumentationDefaults(t *testing.T) {
	for _, key := range []string{"OTEL_SERVICE_NAME", "OTEL_SERVICE_INSTANCE_ID", "OTEL_EXPORTER_OTLP_ENDPOINT", "POD_NAMESPACE", "K8S_NAMESPACE", "K8S_POD_NAME"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	got := cfg.InstrumentationConfig("1.2.3")
	want := instrumentation.DefaultConfig()
	want.ServiceVersion = "1.2.3"
	assert.Equal(t, want, got)
}

func TestLoad_InstrumentationYAML(t *testing.T) {
	path := writeConfig(t, `
instrumentation:
  service_name: agendacal-staging
  instance_id: agendacal-0
  metrics_exporter: OTLP
  tracing_exporter: otlp
  otlp:
    endpoint: collector.monitoring:4318
    insecure: true
  sampling_rate: 0.5
  export_interval: 30s
  detailed_labels: true
  audit:
    enabled: false
    include_pii: true
    level: Debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	got := cfg.InstrumentationConfig("")
	assert.True(t, got.Enabled, "omitted keys keep their defaults")
	assert.Equal(t, "agendacal-staging", got.ServiceName)
	assert.Equal(t, "unknown", got.ServiceVersion)
	assert.Equal(t, "agendacal-0", got.ServiceInstanceID)
	assert.Equal(t, instrumentation.ExporterOTLP, got.MetricsExporter)
	assert.Equal(t, instrumentation.ExporterOTLP, got.TracingExporter)
	assert.Equal(t, "collector.monitoring:4318", got.OTLPEndpoint)
	assert.True(t, got.OTLPInsecure)
	assert.Equal(t, 0.5, got.TraceSamplingRate)
	assert.Equal(t, 30*time.Second, got.ExportInterval)
	assert.True(t, got.DetailedLabels)
	assert.Equal(t, instrumentation.AuditLoggingConfig{Enabled: false, IncludePII: true, Level: "debug"}, got.Audit)
	assert.NoError(t, got.Validate())
}

func TestLoad_InstrumentationEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
instrumentation:
  metrics_exporter: stdout
  sampling_rate: 0.2
`)
	t.Setenv("AGENDACAL_INSTRUMENTATION_ENABLED", "false")
	t.Setenv("AGENDACAL_METRICS_EXPORTER", "prometheus")
	t.Setenv("AGENDACAL_TRACING_EXPORTER", "stdout")
	t.Setenv("OTEL_SERVICE_NAME", "agendacal-env")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")
	t.Setenv("AGENDACAL_METRICS_DETAILED_LABELS", "true")
	t.Setenv("AGENDACAL_AUDIT_INCLUDE_PII", "true")
	t.Setenv("AGENDACAL_AUDIT_LEVEL", "warn")
	t.Setenv("K8S_NAMESPACE", "calendars")
	t.Setenv("K8S_POD_NAME", "agendacal-7d9f")

	cfg, err := Load(path)
	require.NoError(t, err)

	got := cfg.InstrumentationConfig("dev")
	assert.False(t, got.Enabled)
	assert.Equal(t, "agendacal-env", got.ServiceName)
	assert.Equal(t, instrumentation.ExporterPrometheus, got.MetricsExporter)
	assert.Equal(t, instrumentation.ExporterStdout, got.TracingExporter)
	assert.Equal(t, "otel:4318", got.OTLPEndpoint)
	assert.True(t, got.OTLPInsecure)
	assert.Equal(t, 0.75, got.TraceSamplingRate)
	assert.True(t, got.DetailedLabels)
	assert.True(t, got.Audit.IncludePII)
	assert.Equal(t, "warn", got.Audit.Level)
	assert.Equal(t, "calendars", got.K8sNamespace)
	assert.Equal(t, "agendacal-7d9f", got.K8sPodName)
}

func TestLoad_InvalidInstrumentationEnv(t *testing.T) {
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "often")
	t.Setenv("AGENDACAL_AUDIT_ENABLED", "maybe")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTEL_TRACES_SAMPLER_ARG")
	assert.Contains(t, err.Error(), "AGENDACAL_AUDIT_ENABLED")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".config/agendacal/config.yaml"), ExpandPath(DefaultConfigPath))
	assert.Equal(t, "/etc/agendacal.yaml", ExpandPath("/etc/agendacal.yaml"))
}
