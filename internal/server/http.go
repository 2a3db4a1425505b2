package server

import (
	"context"
	"net"
	"net/http"
	"time"
)

const (
	// DefaultHTTPReadHeaderTimeout is the read header timeout for the API server.
	DefaultHTTPReadHeaderTimeout = 10 * time.Second

	// DefaultHTTPWriteTimeout leaves room for a full aggregation run with retries.
	DefaultHTTPWriteTimeout = 2 * time.Minute

	// DefaultHTTPIdleTimeout is the idle timeout for the API server.
	DefaultHTTPIdleTimeout = 120 * time.Second
)

// HTTPServer serves the agenda JSON API and health endpoints.
type HTTPServer struct {
	sc         *ServerContext
	health     *HealthChecker
	handler    http.Handler
	httpServer *http.Server
	addr       string
}

// NewHTTPServer builds the API router. OAuth endpoints are only registered
// when the server context carries an OAuth client.
func NewHTTPServer(sc *ServerContext, addr string) *HTTPServer {
	mux := http.NewServeMux()

	health := NewHealthChecker(sc)
	health.RegisterHealthEndpoints(mux)

	api := &agendaAPI{sc: sc}
	api.register(mux)

	if oauth := sc.OAuth(); oauth != nil {
		auth := &authHandler{sc: sc, oauth: oauth}
		auth.register(mux)
	}

	return &HTTPServer{
		sc:      sc,
		health:  health,
		handler: instrumentHandler(mux, sc.Metrics(), sc.Logger()),
		addr:    addr,
	}
}

// Handler returns the instrumented router.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// Health returns the health checker backing /readyz.
func (s *HTTPServer) Health() *HealthChecker {
	return s.health
}

// Addr returns the configured listen address.
func (s *HTTPServer) Addr() string {
	return s.addr
}

// Start serves until Shutdown is called. It returns http.ErrServerClosed after
// a graceful shutdown.
func (s *HTTPServer) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: DefaultHTTPReadHeaderTimeout,
		WriteTimeout:      DefaultHTTPWriteTimeout,
		IdleTimeout:       DefaultHTTPIdleTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return s.sc.Context()
		},
	}

	s.sc.Logger().Info("starting HTTP server", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown marks the server not ready and drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	if s.httpServer != nil {
		s.sc.Logger().Info("shutting down HTTP server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
