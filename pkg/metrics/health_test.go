package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetRegistry() {
	registry = &componentRegistry{
		components: make(map[string]componentHealth),
		startTime:  time.Now(),
	}
}

func TestGetHealthAllHealthy(t *testing.T) {
	resetRegistry()
	registry.version = "1.0.0"

	RegisterComponent("engine", true, true, "")
	RegisterComponent("node", true, true, "")

	health := GetHealth()
	assert.Equal(t, "healthy", health.Status)
	assert.Len(t, health.Components, 2)
	assert.Equal(t, "1.0.0", health.Version)
}

func TestGetHealthCriticalComponentUnhealthyIsUnhealthy(t *testing.T) {
	resetRegistry()

	RegisterComponent("engine", true, true, "")
	RegisterComponent("node", true, false, "raft leader not elected")

	health := GetHealth()
	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "unhealthy: raft leader not elected", health.Components["node"])
}

func TestGetHealthNonCriticalComponentUnhealthyIsDegraded(t *testing.T) {
	resetRegistry()

	RegisterComponent("engine", true, true, "")
	RegisterComponent("resolver", false, false, "pd unreachable")

	health := GetHealth()
	assert.Equal(t, "degraded", health.Status)
}

func TestGetReadinessAllCriticalReady(t *testing.T) {
	resetRegistry()

	RegisterComponent("engine", true, true, "")
	RegisterComponent("node", true, true, "")
	RegisterComponent("server", true, true, "")
	RegisterComponent("resolver", false, false, "still warming cache")

	readiness := GetReadiness()
	assert.Equal(t, "ready", readiness.Status)
	assert.NotContains(t, readiness.Components, "resolver")
}

func TestGetReadinessMissingCriticalComponent(t *testing.T) {
	resetRegistry()

	RegisterComponent("engine", true, true, "")
	// node, server never registered

	readiness := GetReadiness()
	assert.Equal(t, "not_ready", readiness.Status)
	assert.NotEmpty(t, readiness.Message)
}

func TestGetReadinessCriticalComponentUnhealthy(t *testing.T) {
	resetRegistry()

	RegisterComponent("engine", true, true, "")
	RegisterComponent("node", true, false, "store id not allocated")

	readiness := GetReadiness()
	assert.Equal(t, "not_ready", readiness.Status)
}

func TestHealthHandlerUnhealthyReturns503(t *testing.T) {
	resetRegistry()
	RegisterComponent("engine", true, false, "open failed")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	HealthHandler()(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var health HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "unhealthy", health.Status)
}

func TestReadyHandlerReadyReturns200(t *testing.T) {
	resetRegistry()
	RegisterComponent("engine", true, true, "")

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	ReadyHandler()(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLivenessHandlerAlwaysReturns200(t *testing.T) {
	resetRegistry()

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	w := httptest.NewRecorder()
	LivenessHandler()(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "alive", body["status"])
	assert.NotEmpty(t, body["uptime"])
}

func TestNewStatusMuxRoutesRequests(t *testing.T) {
	resetRegistry()
	RegisterComponent("engine", true, true, "")

	mux := NewStatusMux()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
