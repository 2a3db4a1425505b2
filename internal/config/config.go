// Package config loads agendacal settings from a YAML file with environment
// overrides. A missing file yields the defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/teemow/agendacal/internal/agenda"
	"github.com/teemow/agendacal/internal/instrumentation"
	"github.com/teemow/agendacal/internal/model"
)

const (
	// DefaultConfigPath is the default location for the config file.
	DefaultConfigPath = "~/.config/agendacal/config.yaml"

	// DefaultRefreshCron refreshes the agenda every 15 minutes.
	DefaultRefreshCron = "*/15 * * * *"

	// DefaultRefreshTimeout bounds the one-shot agenda command.
	DefaultRefreshTimeout = 2 * time.Minute

	DefaultHTTPAddr    = "127.0.0.1:8080"
	DefaultMetricsAddr = ":9090"
	DefaultRedirectURL = "http://127.0.0.1:8080/auth/callback"

	// MaxWindowDays caps the configured window length.
	MaxWindowDays = agenda.MaxWindowDays

	envPrefix = "AGENDACAL_"
)

// Config is the top-level application configuration.
type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Calendar CalendarConfig `yaml:"calendar"`
	Retry    RetryConfig    `yaml:"retry"`
	HTTP     HTTPConfig     `yaml:"http"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
	Google   GoogleConfig   `yaml:"google"`

	Instrumentation InstrumentationConfig `yaml:"instrumentation"`
}

// WindowConfig describes the rolling date window.
type WindowConfig struct {
	// Days is the number of consecutive days shown.
	Days int `yaml:"days"`

	// Timezone is the IANA zone days are computed in. Empty means local time.
	Timezone string `yaml:"timezone"`

	// StartDate pins the first day (YYYY-MM-DD). Empty follows today.
	StartDate string `yaml:"start_date"`
}

// RefreshConfig controls scheduled aggregation runs.
type RefreshConfig struct {
	// Cron is a standard five-field schedule. Empty disables scheduled refresh.
	Cron string `yaml:"cron"`
	// Timeout bounds the one-shot agenda command. Scheduled runs in serve
	// are not bounded.
	Timeout time.Duration `yaml:"timeout"`
}

// CalendarConfig configures the Calendar API client.
type CalendarConfig struct {
	// Endpoint overrides the Calendar API base URL.
	Endpoint string `yaml:"endpoint"`

	// Visible lists the calendar ids aggregated. Empty means all calendars.
	Visible []string `yaml:"visible"`
}

// RetryConfig is the retry policy applied to a whole fetch attempt.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Initial  time.Duration `yaml:"initial"`
	Max      time.Duration `yaml:"max"`
}

// HTTPConfig configures the JSON API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MetricsConfig configures the dedicated metrics listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// InstrumentationConfig configures metrics, tracing and audit logging.
type InstrumentationConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`

	// InstanceID defaults to the hostname.
	InstanceID string `yaml:"instance_id"`

	MetricsExporter string        `yaml:"metrics_exporter"`
	TracingExporter string        `yaml:"tracing_exporter"`
	OTLP            OTLPConfig    `yaml:"otlp"`
	SamplingRate    float64       `yaml:"sampling_rate"`
	ExportInterval  time.Duration `yaml:"export_interval"`

	// DetailedLabels adds the user's domain to sign-in metrics.
	DetailedLabels bool `yaml:"detailed_labels"`

	Audit AuditConfig `yaml:"audit"`

	// Kubernetes metadata is only taken from the environment.
	K8sNamespace string `yaml:"-"`
	K8sPodName   string `yaml:"-"`
}

// OTLPConfig points the OTLP exporters at a collector.
type OTLPConfig struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// AuditConfig controls audit records of user actions.
type AuditConfig struct {
	Enabled    bool   `yaml:"enabled"`
	IncludePII bool   `yaml:"include_pii"`
	Level      string `yaml:"level"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GoogleConfig holds the OAuth client used for the browser sign-in flow.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// Default returns the built-in configuration.
func Default() *Config {
	retry := agenda.DefaultRetryPolicy()
	cfg := &Config{
		Window:  WindowConfig{Days: agenda.DefaultWindowDays},
		Refresh: RefreshConfig{Cron: DefaultRefreshCron, Timeout: DefaultRefreshTimeout},
		Retry: RetryConfig{
			Attempts: retry.MaxAttempts,
			Initial:  retry.InitialInterval,
			Max:      retry.MaxInterval,
		},
		HTTP:    HTTPConfig{Addr: DefaultHTTPAddr},
		Metrics: MetricsConfig{Enabled: true, Addr: DefaultMetricsAddr},
		Log:     LogConfig{Level: "info", Format: "text"},
		Google:  GoogleConfig{RedirectURL: DefaultRedirectURL},
	}

	instr := instrumentation.DefaultConfig()
	cfg.Instrumentation = InstrumentationConfig{
		Enabled:         instr.Enabled,
		ServiceName:     instr.ServiceName,
		MetricsExporter: instr.MetricsExporter,
		TracingExporter: instr.TracingExporter,
		SamplingRate:    instr.TraceSamplingRate,
		ExportInterval:  instr.ExportInterval,
		Audit:           AuditConfig{Enabled: instr.Audit.Enabled, Level: instr.Audit.Level},
	}
	return cfg
}

// Load reads path, applies environment overrides and validates the result.
// An empty path means DefaultConfigPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := Default()
	data, err := os.ReadFile(ExpandPath(path))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
				return
			}
			*dst = b
		}
	}

	if v, ok := lookup(envPrefix + "WINDOW_DAYS"); ok && v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %sWINDOW_DAYS %q: %w", envPrefix, v, err))
		} else {
			c.Window.Days = days
		}
	}
	str(envPrefix+"TIMEZONE", &c.Window.Timezone)
	str(envPrefix+"START_DATE", &c.Window.StartDate)
	if v, ok := lookup(envPrefix + "REFRESH_CRON"); ok {
		c.Refresh.Cron = v
	}
	str(envPrefix+"CALENDAR_ENDPOINT", &c.Calendar.Endpoint)
	if v, ok := lookup(envPrefix + "VISIBLE_CALENDARS"); ok && v != "" {
		c.Calendar.Visible = splitList(v)
	}
	str(envPrefix+"HTTP_ADDR", &c.HTTP.Addr)
	str(envPrefix+"METRICS_ADDR", &c.Metrics.Addr)
	boolean(envPrefix+"METRICS_ENABLED", &c.Metrics.Enabled)
	str(envPrefix+"LOG_LEVEL", &c.Log.Level)
	str(envPrefix+"LOG_FORMAT", &c.Log.Format)
	str("GOOGLE_CLIENT_ID", &c.Google.ClientID)
	str("GOOGLE_CLIENT_SECRET", &c.Google.ClientSecret)
	str(envPrefix+"REDIRECT_URL", &c.Google.RedirectURL)

	instr := &c.Instrumentation
	boolean(envPrefix+"INSTRUMENTATION_ENABLED", &instr.Enabled)
	str("OTEL_SERVICE_NAME", &instr.ServiceName)
	str("OTEL_SERVICE_INSTANCE_ID", &instr.InstanceID)
	str(envPrefix+"METRICS_EXPORTER", &instr.MetricsExporter)
	str(envPrefix+"TRACING_EXPORTER", &instr.TracingExporter)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &instr.OTLP.Endpoint)
	boolean("OTEL_EXPORTER_OTLP_INSECURE", &instr.OTLP.Insecure)
	if v, ok := lookup("OTEL_TRACES_SAMPLER_ARG"); ok && v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid OTEL_TRACES_SAMPLER_ARG %q: %w", v, err))
		} else {
			instr.SamplingRate = rate
		}
	}
	boolean(envPrefix+"METRICS_DETAILED_LABELS", &instr.DetailedLabels)
	boolean(envPrefix+"AUDIT_ENABLED", &instr.Audit.Enabled)
	boolean(envPrefix+"AUDIT_INCLUDE_PII", &instr.Audit.IncludePII)
	str(envPrefix+"AUDIT_LEVEL", &instr.Audit.Level)
	str("POD_NAMESPACE", &instr.K8sNamespace)
	str("K8S_NAMESPACE", &instr.K8sNamespace)
	str("K8S_POD_NAME", &instr.K8sPodName)

	return errors.Join(errs...)
}

func (c *Config) normalize() {
	def := Default()
	if c.Window.Days == 0 {
		c.Window.Days = def.Window.Days
	}
	if c.Refresh.Timeout <= 0 {
		c.Refresh.Timeout = def.Refresh.Timeout
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = def.Retry.Attempts
	}
	if c.Retry.Initial == 0 {
		c.Retry.Initial = def.Retry.Initial
	}
	if c.Retry.Max == 0 {
		c.Retry.Max = def.Retry.Max
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = def.Metrics.Addr
	}
	c.Log.Format = strings.ToLower(c.Log.Format)
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}

	instr := &c.Instrumentation
	instr.MetricsExporter = strings.ToLower(instr.MetricsExporter)
	instr.TracingExporter = strings.ToLower(instr.TracingExporter)
	instr.Audit.Level = strings.ToLower(instr.Audit.Level)
	if instr.ServiceName == "" {
		instr.ServiceName = def.Instrumentation.ServiceName
	}
	if instr.MetricsExporter == "" {
		instr.MetricsExporter = def.Instrumentation.MetricsExporter
	}
	if instr.TracingExporter == "" {
		instr.TracingExporter = def.Instrumentation.TracingExporter
	}
	if instr.ExportInterval == 0 {
		instr.ExportInterval = def.Instrumentation.ExportInterval
	}
	if instr.Audit.Level == "" {
		instr.Audit.Level = def.Instrumentation.Audit.Level
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Window.Days < 1 || c.Window.Days > MaxWindowDays {
		errs = append(errs, fmt.Errorf("window.days must be between 1 and %d, got %d", MaxWindowDays, c.Window.Days))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Window.StartDate != "" {
		if _, err := model.ParseDate(c.Window.StartDate); err != nil {
			errs = append(errs, fmt.Errorf("window.start_date: %w", err))
		}
	}
	if c.Refresh.Cron != "" {
		if _, err := cron.ParseStandard(c.Refresh.Cron); err != nil {
			errs = append(errs, fmt.Errorf("invalid refresh.cron %q: %w", c.Refresh.Cron, err))
		}
	}
	if c.Retry.Attempts < 1 {
		errs = append(errs, fmt.Errorf("retry.attempts must be at least 1, got %d", c.Retry.Attempts))
	}
	if c.Retry.Initial <= 0 || c.Retry.Max < c.Retry.Initial {
		errs = append(errs, fmt.Errorf("retry intervals must satisfy 0 < initial <= max, got %s/%s", c.Retry.Initial, c.Retry.Max))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	instr := c.InstrumentationConfig("")
	if err := instr.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("instrumentation: %w", err))
	}

	return errors.Join(errs...)
}

// Location returns the configured timezone, defaulting to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Window.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Window.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid window.timezone %q: %w", c.Window.Timezone, err)
	}
	return loc, nil
}

// StartDate returns the pinned first day, or the zero Date to follow today.
func (c *Config) StartDate() model.Date {
	if c.Window.StartDate == "" {
		return model.Date{}
	}
	d, err := model.ParseDate(c.Window.StartDate)
	if err != nil {
		return model.Date{}
	}
	return d
}

// RetryPolicy converts the retry settings for the orchestrator.
func (c *Config) RetryPolicy() agenda.RetryPolicy {
	p := agenda.DefaultRetryPolicy()
	p.MaxAttempts = c.Retry.Attempts
	p.InitialInterval = c.Retry.Initial
	p.MaxInterval = c.Retry.Max
	return p
}

// InstrumentationConfig converts the instrumentation settings for the
// provider, stamping the running version.
func (c *Config) InstrumentationConfig(version string) instrumentation.Config {
	in := c.Instrumentation
	out := instrumentation.DefaultConfig()
	out.ServiceName = in.ServiceName
	if version != "" {
		out.ServiceVersion = version
	}
	out.ServiceInstanceID = in.InstanceID
	out.K8sNamespace = in.K8sNamespace
	out.K8sPodName = in.K8sPodName
	out.Enabled = in.Enabled
	out.MetricsExporter = in.MetricsExporter
	out.TracingExporter = in.TracingExporter
	out.OTLPEndpoint = in.OTLP.Endpoint
	out.OTLPInsecure = in.OTLP.Insecure
	out.TraceSamplingRate = in.SamplingRate
	out.ExportInterval = in.ExportInterval
	out.DetailedLabels = in.DetailedLabels
	out.Audit = instrumentation.AuditLoggingConfig{
		Enabled:    in.Audit.Enabled,
		IncludePII: in.Audit.IncludePII,
		Level:      in.Audit.Level,
	}
	return out
}

// OAuthConfigured reports whether the browser sign-in flow can be offered.
func (c *Config) OAuthConfigured() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}

// ExpandPath expands a leading ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
