package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/agendacal/internal/agenda"
	"github.com/teemow/agendacal/internal/config"
	"github.com/teemow/agendacal/internal/instrumentation"
	"github.com/teemow/agendacal/internal/logging"
	"github.com/teemow/agendacal/internal/server"
	"github.com/teemow/agendacal/internal/tools/agenda_tools"
)

const (
	transportHTTP  = "http"
	transportStdio = "stdio"

	// shutdownTimeout bounds the drain of each listener and the scheduler.
	shutdownTimeout = 10 * time.Second

	// startupTimeout bounds how long serve waits for the metrics listener.
	startupTimeout = 5 * time.Second
)

// serveOptions are the serve flags layered on top of the config file.
type serveOptions struct {
	transport      string
	debug          bool
	yolo           bool
	httpAddr       string
	metricsEnabled bool
	metricsAddr    string
	idToken        string
	accessToken    string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agenda server",
		Long: `Start agendacal as a long-running server.

Supports multiple transport types:
  - http: JSON API, browser sign-in, health probes and scheduled refresh (default)
  - stdio: Model Context Protocol server on standard input/output

Safety Mode:
  MCP tools are read-only by default. Use --yolo to enable the tools that
  change the window or the visible calendars.

Sign-in:
  HTTP Transport:
    POST /api/session with an identity credential, or the browser flow at
    /auth/login when GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are set.

  STDIO Transport:
    --id-token and --access-token (or AGENDACAL_ID_TOKEN and
    AGENDACAL_ACCESS_TOKEN). Without them the agenda shows sample data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			applyServeFlags(cmd, cfg, &opts)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServe(cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", transportHTTP, "Transport type: http or stdio")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&opts.yolo, "yolo", false, "Enable MCP tools that change the window or visible calendars. Default is read-only mode.")
	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", "", "HTTP server address. Overrides http.addr and AGENDACAL_HTTP_ADDR.")
	cmd.Flags().BoolVar(&opts.metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Overrides metrics.enabled and AGENDACAL_METRICS_ENABLED.")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Metrics server address. Overrides metrics.addr and AGENDACAL_METRICS_ADDR.")
	cmd.Flags().StringVar(&opts.idToken, "id-token", os.Getenv("AGENDACAL_ID_TOKEN"), "Identity credential to sign in with at startup. Can also use AGENDACAL_ID_TOKEN env var.")
	cmd.Flags().StringVar(&opts.accessToken, "access-token", os.Getenv("AGENDACAL_ACCESS_TOKEN"), "Calendar bearer token for the startup session. Can also use AGENDACAL_ACCESS_TOKEN env var.")

	return cmd
}

// applyServeFlags lets explicitly set flags win over file and environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config, opts *serveOptions) {
	if cmd.Flags().Changed("http-addr") {
		cfg.HTTP.Addr = opts.httpAddr
	}
	if cmd.Flags().Changed("metrics-enabled") {
		cfg.Metrics.Enabled = opts.metricsEnabled
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if opts.debug {
		cfg.Log.Level = "debug"
	}
}

func runServe(cfg *config.Config, opts serveOptions) error {
	if opts.transport != transportHTTP && opts.transport != transportStdio {
		return fmt.Errorf("unsupported transport type: %s (supported: %s, %s)", opts.transport, transportHTTP, transportStdio)
	}

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// stdout carries the MCP protocol in stdio mode, so logs always go to stderr.
	logger := logging.NewLogger(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(logger)

	// Initialize instrumentation provider
	instrConfig := cfg.InstrumentationConfig(version)
	if err := instrConfig.Validate(); err != nil {
		return fmt.Errorf("invalid instrumentation configuration: %w", err)
	}

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	var audit *instrumentation.AuditLogger
	if provider.Enabled() {
		audit = instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.Audit)
	}

	a, err := newApp(cfg, logger, provider.Metrics())
	if err != nil {
		return err
	}

	serverContext, err := a.serverContext(shutdownCtx, audit)
	if err != nil {
		return err
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("server context shutdown failed", logging.Err(err))
		}
	}()

	if err := a.signIn(opts.idToken, opts.accessToken); err != nil {
		return fmt.Errorf("startup sign-in failed: %w", err)
	}

	scheduler, err := agenda.NewScheduler(a.orchestrator, cfg.Refresh.Cron, logger)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("scheduler did not stop in time", logging.Err(err))
		}
	}()

	// Populate the index before the first request. A failed run is recorded
	// on the orchestrator and surfaced through the API.
	if err := a.orchestrator.Refresh(shutdownCtx); err != nil {
		logger.Warn("initial refresh failed", logging.Err(err))
	}

	if opts.transport == transportStdio {
		return runStdioServer(serverContext, !opts.yolo)
	}

	if cfg.Metrics.Enabled && provider.Enabled() {
		metricsServer, err := startMetricsServer(cfg.Metrics.Addr, provider, logger)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Warn("metrics server shutdown failed", logging.Err(err))
			}
		}()
	}

	return runHTTPServer(shutdownCtx, server.NewHTTPServer(serverContext, cfg.HTTP.Addr), logger)
}

// startMetricsServer starts the metrics listener and waits until it is
// accepting connections or has failed.
func startMetricsServer(addr string, provider *instrumentation.Provider, logger *slog.Logger) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		Enabled:                 true,
		InstrumentationProvider: provider,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	// Use ready channel to confirm metrics server started successfully
	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-metricsReady:
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(startupTimeout):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
	logger.Info("metrics server started", "addr", metricsServer.Addr())
	return metricsServer, nil
}

func runHTTPServer(ctx context.Context, httpServer *server.HTTPServer, logger *slog.Logger) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}

func runStdioServer(sc *server.ServerContext, readOnly bool) error {
	mcpSrv := mcpserver.NewMCPServer("agendacal", version,
		mcpserver.WithToolCapabilities(true),
	)

	if readOnly {
		sc.Logger().Info("starting MCP server in READ-ONLY mode (use --yolo to enable window changes)")
	}
	if err := agenda_tools.RegisterAgendaTools(mcpSrv, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register agenda tools: %w", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}
