package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netbinder.io/netbinder/internal/config"
	"netbinder.io/netbinder/internal/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error", "json")
}

const seedYAML = `
networks:
  - id: net-a
    name: private-a
    tenant_id: proj-1
subnets:
  - id: sub-a
    network_id: net-a
    cidr: 10.0.0.0/24
    gateway_ip: 10.0.0.1
    dns_nameservers: [8.8.8.8]
`

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	seed := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(seedYAML), 0o600))
	return &config.Config{
		Server:  config.ServerConfig{Port: 8080, AllowCredentials: true},
		Log:     config.LogConfig{Level: "error", Format: "json"},
		Network: config.NetworkConfig{Backend: config.BackendMemory, SeedFile: seed},
		Compute: config.ComputeConfig{AvailabilityZone: "nova"},
		Worker:  config.WorkerConfig{GeneralPoolSize: 2, NetworkPoolSize: 2},
	}
}

func serve(a *Application, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	return w
}

func TestBootstrap_MemoryBackend(t *testing.T) {
	application, err := Bootstrap(context.Background(), memoryConfig(t))
	require.NoError(t, err)
	defer application.Shutdown()

	w := serve(application, http.MethodPost, "/api/v1/instances/5c3f1a2e-0000-4000-8000-000000000001/ports", `{"project_id":"proj-1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(application, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `netbinder_allocations_total{outcome="success"} 1`)
	assert.Contains(t, w.Body.String(), `netbinder_remote_requests_total{operation="create_port",result="ok"} 1`)
}

func TestBootstrap_UnknownSeedFile(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Network.SeedFile = filepath.Join(t.TempDir(), "missing.yaml")

	application, err := Bootstrap(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, application)
}

func TestBootstrap_UnknownBackend(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Network.Backend = "carrier-pigeon"

	_, err := Bootstrap(context.Background(), cfg)
	require.Error(t, err)
}

func TestApplication_OperationalRoutes(t *testing.T) {
	application, err := Bootstrap(context.Background(), memoryConfig(t))
	require.NoError(t, err)
	defer application.Shutdown()

	w := serve(application, http.MethodGet, "/log/level", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "level")

	w = serve(application, http.MethodGet, "/api/v1/openapi.yaml", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")

	// Not ready until the first probe.
	w = serve(application, http.MethodGet, "/api/v1/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	application.Health.Check(context.Background())
	w = serve(application, http.MethodGet, "/api/v1/health/ready", "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestApplication_Shutdown_Nil(t *testing.T) {
	// Shutdown on empty application should not panic.
	app := &Application{}

	assert.NotPanics(t, func() {
		app.Shutdown()
	}, "Shutdown on empty Application should not panic")
}
