// Package server exposes the agenda over HTTP.
//
// # Key Components
//
// ServerContext holds the orchestrator, session manager and observability
// components shared by the HTTP and MCP surfaces.
//
// HTTPServer serves the JSON API:
//   - GET /api/agenda: the current snapshot
//   - POST /api/agenda/refresh: run one aggregation pass (409 while one is running)
//   - PUT /api/agenda/window: change the start date and length
//   - GET /api/calendars, PUT /api/calendars/visible: calendar selection
//   - POST /api/session, DELETE /api/session: sign-in callback and logout
//   - GET /auth/login, GET /auth/callback: Google sign-in when OAuth is configured
//
// HealthChecker provides /healthz, /readyz and /healthz/detailed.
//
// MetricsServer serves Prometheus metrics on a dedicated port so that
// operational metrics are not exposed on the API listener.
package server
