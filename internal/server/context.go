package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teemow/agendacal/internal/agenda"
	"github.com/teemow/agendacal/internal/google"
	"github.com/teemow/agendacal/internal/instrumentation"
	"github.com/teemow/agendacal/internal/session"
)

// Deps are the components shared by the HTTP and MCP surfaces.
type Deps struct {
	Orchestrator *agenda.Orchestrator
	Sessions     *session.Manager

	// OAuth enables /auth/login and /auth/callback. Optional.
	OAuth *google.OAuthClient

	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
	Logger  *slog.Logger
}

// ServerContext holds the long-lived state of a running agendacal server.
type ServerContext struct {
	ctx          context.Context
	cancel       context.CancelFunc
	orchestrator *agenda.Orchestrator
	sessions     *session.Manager
	oauth        *google.OAuthClient
	metrics      *instrumentation.Metrics
	audit        *instrumentation.AuditLogger
	logger       *slog.Logger
	mu           sync.RWMutex
	shutdown     bool
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, deps Deps) (*ServerContext, error) {
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:          shutdownCtx,
		cancel:       cancel,
		orchestrator: deps.Orchestrator,
		sessions:     deps.Sessions,
		oauth:        deps.OAuth,
		metrics:      deps.Metrics,
		audit:        deps.Audit,
		logger:       logger,
	}, nil
}

// Context returns the server context. It is cancelled on Shutdown.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Orchestrator returns the aggregation orchestrator.
func (sc *ServerContext) Orchestrator() *agenda.Orchestrator {
	return sc.orchestrator
}

// Sessions returns the session manager.
func (sc *ServerContext) Sessions() *session.Manager {
	return sc.sessions
}

// OAuth returns the Google OAuth client, or nil when sign-in via redirect is
// not configured.
func (sc *ServerContext) OAuth() *google.OAuthClient {
	return sc.oauth
}

// Metrics returns the metrics recorder. It may be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// Audit returns the audit logger. It may be nil.
func (sc *ServerContext) Audit() *instrumentation.AuditLogger {
	return sc.audit
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
