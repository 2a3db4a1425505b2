package instrumentation

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// Exporter names accepted by Config.
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

// DefaultMetricInterval is how often push exporters (otlp, stdout) flush.
const DefaultMetricInterval = 10 * time.Second

var (
	metricsExporters = []string{ExporterPrometheus, ExporterOTLP, ExporterStdout}
	tracingExporters = []string{ExporterOTLP, ExporterStdout, ExporterNone}
)

// Config holds the OpenTelemetry settings of one process. The config package
// builds it from the YAML file and the environment.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// ServiceInstanceID defaults to the hostname.
	ServiceInstanceID string
	K8sNamespace      string
	K8sPodName        string

	// Enabled false makes every recorder a no-op.
	Enabled         bool
	MetricsExporter string
	TracingExporter string

	// OTLPEndpoint is host:port without a scheme.
	OTLPEndpoint string
	// OTLPInsecure sends OTLP over plain HTTP. Development only.
	OTLPInsecure bool

	// TraceSamplingRate is the parent-based ratio in [0, 1].
	TraceSamplingRate float64
	// ExportInterval is the flush period of push exporters. Zero means
	// DefaultMetricInterval.
	ExportInterval time.Duration

	// DetailedLabels attaches the signed-in user's domain to sign-in metrics.
	DetailedLabels bool

	Audit AuditLoggingConfig
}

// AuditLoggingConfig controls the audit trail of user-initiated actions.
type AuditLoggingConfig struct {
	Enabled bool

	// IncludePII logs full email addresses instead of the user's domain.
	IncludePII bool

	// Level is the slog level of successful actions. Failures are never
	// logged below warn. Empty means info.
	Level string
}

// DefaultConfig returns the built-in settings: Prometheus metrics, no
// tracing, anonymized audit records.
func DefaultConfig() Config {
	return Config{
		ServiceName:       "agendacal",
		ServiceVersion:    "unknown",
		Enabled:           true,
		MetricsExporter:   ExporterPrometheus,
		TracingExporter:   ExporterNone,
		TraceSamplingRate: 0.1,
		ExportInterval:    DefaultMetricInterval,
		Audit: AuditLoggingConfig{
			Enabled: true,
			Level:   "info",
		},
	}
}

// Validate reports every setting the provider cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		errs = append(errs, fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %g", c.TraceSamplingRate))
	}
	if c.MetricsExporter != "" && !slices.Contains(metricsExporters, c.MetricsExporter) {
		errs = append(errs, fmt.Errorf("invalid metrics exporter %q, must be one of %v", c.MetricsExporter, metricsExporters))
	}
	if c.TracingExporter != "" && !slices.Contains(tracingExporters, c.TracingExporter) {
		errs = append(errs, fmt.Errorf("invalid tracing exporter %q, must be one of %v", c.TracingExporter, tracingExporters))
	}
	if c.OTLPEndpoint == "" {
		if c.TracingExporter == ExporterOTLP {
			errs = append(errs, errors.New("OTLP endpoint is required when using OTLP tracing exporter"))
		}
		if c.MetricsExporter == ExporterOTLP {
			errs = append(errs, errors.New("OTLP endpoint is required when using OTLP metrics exporter"))
		}
	}
	if c.ExportInterval < 0 {
		errs = append(errs, fmt.Errorf("export interval must not be negative, got %s", c.ExportInterval))
	}
	if _, err := ParseAuditLevel(c.Audit.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c *Config) exportInterval() time.Duration {
	if c.ExportInterval <= 0 {
		return DefaultMetricInterval
	}
	return c.ExportInterval
}

// ParseAuditLevel parses an audit log level. Empty means info.
func ParseAuditLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid audit log level %q: %w", s, err)
	}
	return level, nil
}
