package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teemow/agendacal/internal/agenda"
	"github.com/teemow/agendacal/internal/calendar"
	"github.com/teemow/agendacal/internal/config"
	"github.com/teemow/agendacal/internal/google"
	"github.com/teemow/agendacal/internal/instrumentation"
	"github.com/teemow/agendacal/internal/server"
	"github.com/teemow/agendacal/internal/session"
)

// app bundles the components shared by every command.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	metrics      *instrumentation.Metrics
	sessions     *session.Manager
	orchestrator *agenda.Orchestrator
	oauth        *google.OAuthClient
}

// newApp wires the session manager, calendar client factory and orchestrator
// from cfg. logger and metrics may be nil.
func newApp(cfg *config.Config, logger *slog.Logger, metrics *instrumentation.Metrics) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(session.NewGuard(session.WithGuardLogger(logger)), logger)

	orch, err := agenda.NewOrchestrator(agenda.Options{
		Sources:          calendarSources(cfg, logger, metrics),
		Sessions:         sessions,
		Retry:            cfg.RetryPolicy(),
		Days:             cfg.Window.Days,
		StartDate:        cfg.StartDate(),
		Location:         loc,
		VisibleCalendars: cfg.Calendar.Visible,
		Logger:           logger,
		Metrics:          metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	a := &app{
		cfg:          cfg,
		logger:       logger,
		metrics:      metrics,
		sessions:     sessions,
		orchestrator: orch,
	}

	if cfg.OAuthConfigured() {
		a.oauth, err = google.NewOAuthClient(google.OAuthConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			Logger:       logger,
			Metrics:      metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OAuth client: %w", err)
		}
	}

	return a, nil
}

// calendarSources returns a factory creating one Calendar API client per run.
func calendarSources(cfg *config.Config, logger *slog.Logger, metrics *instrumentation.Metrics) agenda.SourceFactory {
	return func(ctx context.Context, bearerToken string) (agenda.EventSource, error) {
		client, err := calendar.NewClient(ctx, bearerToken, calendar.Config{
			Endpoint: cfg.Calendar.Endpoint,
			Logger:   logger,
			Metrics:  metrics,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// serverContext builds the ServerContext shared by the HTTP and MCP surfaces.
func (a *app) serverContext(ctx context.Context, audit *instrumentation.AuditLogger) (*server.ServerContext, error) {
	sc, err := server.NewServerContext(ctx, server.Deps{
		Orchestrator: a.orchestrator,
		Sessions:     a.sessions,
		OAuth:        a.oauth,
		Metrics:      a.metrics,
		Audit:        audit,
		Logger:       a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create server context: %w", err)
	}
	server.ObserveSessions(sc)
	return sc, nil
}

// signIn starts a session from an identity credential and an optional
// calendar bearer token.
func (a *app) signIn(credential, accessToken string) error {
	if credential == "" {
		return nil
	}
	if _, err := a.sessions.SignIn(credential); err != nil {
		return err
	}
	if accessToken == "" {
		return nil
	}
	return a.sessions.SetAccessToken(accessToken, 0)
}
