package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	h := newAPIHarness(t, &stubSource{})

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/readyz", "").Code)

	rec := h.do(t, http.MethodPost, "/api/agenda/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/healthz/detailed", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DetailedHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Agenda)
	assert.Equal(t, "committed", resp.Agenda.Phase)
	assert.True(t, resp.Agenda.Placeholder)
	assert.False(t, resp.Agenda.SignedIn)
	assert.Positive(t, resp.Agenda.Events)
	assert.NotNil(t, resp.Agenda.LastCommitted)
}

func TestHealthReadiness_ShuttingDown(t *testing.T) {
	h := newAPIHarness(t, &stubSource{})
	require.NoError(t, h.sc.Shutdown())

	rec := h.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, healthStatusShuttingDown, resp.Checks["shutdown"])
}

func TestHealthChecker_NotReady(t *testing.T) {
	hc := NewHealthChecker(nil)
	hc.SetReady(false)
	assert.False(t, hc.IsReady())
}
