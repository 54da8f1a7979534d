package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"netbinder.io/netbinder/internal/api/middleware"
	"netbinder.io/netbinder/internal/api/openapi"
	"netbinder.io/netbinder/internal/domain"
	apperrors "netbinder.io/netbinder/internal/pkg/errors"
	"netbinder.io/netbinder/internal/pkg/logger"
	"netbinder.io/netbinder/internal/pkg/worker"
	"netbinder.io/netbinder/internal/provider"
	"netbinder.io/netbinder/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error", "json")
}

const (
	testProject  = "proj-1"
	testInstance = "5c3f1a2e-0000-4000-8000-000000000001"
)

type testEnv struct {
	router *gin.Engine
	svc    *provider.MemoryNetworkService
	pools  *worker.Pools
	health *provider.HealthChecker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	svc, err := provider.NewMemoryNetworkService()
	require.NoError(t, err)
	require.NoError(t, svc.Seed(provider.Seed{
		Networks: []domain.Network{
			{ID: "net-a", Name: "private-a", TenantID: testProject},
			{ID: "net-b", Name: "private-b", TenantID: testProject},
		},
		Subnets: []domain.Subnet{
			{ID: "sub-a", NetworkID: "net-a", CIDR: "10.0.0.0/24", GatewayIP: "10.0.0.1", DNSNameservers: []string{"8.8.8.8"}},
			{ID: "sub-b", NetworkID: "net-b", CIDR: "10.1.0.0/24"},
		},
		Ports: []domain.Port{
			{ID: "port-free", NetworkID: "net-a", TenantID: testProject,
				FixedIPs: []domain.PortFixedIP{{IPAddress: "10.0.0.9", SubnetID: "sub-a"}}},
		},
	}))

	pools, err := worker.NewPools(context.Background(), worker.PoolConfig{GeneralPoolSize: 2, NetworkPoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(pools.Shutdown)

	health := provider.NewHealthChecker("memory", svc, time.Minute)
	server := NewServer(ServerDeps{
		Network: usecase.NewAPI(svc, usecase.Options{AvailabilityZone: "nova"}, nil),
		Pools:   pools,
		Health:  health,
	})

	router := gin.New()
	router.Use(middleware.RequestID())
	RegisterHandlers(router.Group(openapi.BasePath, middleware.ErrorHandler(), middleware.MustOpenAPIValidator()), server)

	return &testEnv{router: router, svc: svc, pools: pools, health: health}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Code   string         `json:"code"`
	Params map[string]any `json:"params"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func portsPath(instance string) string {
	return "/api/v1/instances/" + instance + "/ports"
}

func TestAllocateAndShowNetworkInfo(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, portsPath(testInstance), `{
		"project_id": "proj-1",
		"display_name": "web-1",
		"requested_networks": [{"port_id": "port-free"}, {"network_id": "net-b", "fixed_ip": "10.1.0.50"}]
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created domain.NetworkInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Len(t, created, 2)
	require.Equal(t, "port-free", created[0].ID)
	require.Equal(t, "net-a", created[0].Network.ID)
	require.Equal(t, "10.0.0.1", created[0].Network.Subnets[0].Gateway.Address)
	require.Equal(t, "10.1.0.50", created[1].FixedIPs[0].Address)

	w = env.do(http.MethodGet, "/api/v1/instances/"+testInstance+"/network-info?project_id=proj-1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var shown domain.NetworkInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &shown))
	require.Equal(t, len(created), len(shown))
	require.Equal(t, created[1].ID, shown[1].ID)
}

func TestAllocateErrors(t *testing.T) {
	tests := []struct {
		name     string
		instance string
		body     string
		status   int
		code     string
	}{
		{
			name: "instance id is not a uuid", instance: "vm-1",
			body: `{"project_id": "proj-1"}`, status: http.StatusBadRequest, code: apperrors.CodeInvalidInput,
		},
		{
			name: "empty project", instance: testInstance,
			body: `{"project_id": ""}`, status: http.StatusBadRequest, code: apperrors.CodeInvalidInput,
		},
		{
			name: "requested port missing", instance: testInstance,
			body: `{"project_id": "proj-1", "requested_networks": [{"port_id": "ghost"}]}`, status: http.StatusNotFound, code: apperrors.CodePortNotFound,
		},
		{
			name: "body violates contract", instance: testInstance,
			body: `{"display_name": "x"}`, status: http.StatusBadRequest, code: apperrors.CodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(http.MethodPost, portsPath(tt.instance), tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			require.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestAllocateRemoteFailure(t *testing.T) {
	env := newTestEnv(t)
	env.svc.InjectFailure(provider.Failure{Op: provider.OpCreatePort, Target: "net-b"})

	w := env.do(http.MethodPost, portsPath(testInstance), `{"project_id": "proj-1"}`)
	require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
	body := decodeError(t, w)
	require.Equal(t, apperrors.CodeRemoteService, body.Code)
	require.Equal(t, provider.OpCreatePort, body.Params[apperrors.ParamOperation])

	// The net-a port created first was rolled back.
	require.Empty(t, env.svc.PortsByDevice(testInstance))
}

func TestValidateNetworks(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
		ids    []any
	}{
		{
			name:   "valid",
			body:   `{"project_id": "proj-1", "requested_networks": [{"network_id": "net-a"}, {"network_id": "net-b"}]}`,
			status: http.StatusNoContent,
		},
		{
			name:   "duplicated through port",
			body:   `{"project_id": "proj-1", "requested_networks": [{"network_id": "net-a"}, {"port_id": "port-free"}]}`,
			status: http.StatusBadRequest,
			code:   apperrors.CodeNetworkDuplicated,
		},
		{
			name:   "missing networks",
			body:   `{"project_id": "proj-1", "requested_networks": [{"network_id": "zz"}, {"network_id": "aa"}]}`,
			status: http.StatusNotFound,
			code:   apperrors.CodeNetworkNotFound,
			ids:    []any{"aa", "zz"},
		},
		{
			name:   "same network twice",
			body:   `{"project_id": "proj-1", "requested_networks": [{"network_id": "net-a"}, {"network_id": "net-a"}]}`,
			status: http.StatusNotFound,
			code:   apperrors.CodeNetworkNotFound,
			ids:    []any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(http.MethodPost, "/api/v1/networks/validate", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.code == "" {
				require.Empty(t, w.Body.String())
				return
			}
			body := decodeError(t, w)
			require.Equal(t, tt.code, body.Code)
			if tt.ids != nil {
				require.Equal(t, tt.ids, body.Params[apperrors.ParamNetworkIDs])
			}
		})
	}
}

func TestLookupInstancesByIP(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, portsPath(testInstance), `{"project_id": "proj-1", "requested_networks": [{"network_id": "net-b", "fixed_ip": "10.1.0.50"}]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(http.MethodGet, "/api/v1/instances?ip="+url.QueryEscape(`^10\.1\.0\.50$`), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.JSONEq(t, `[{"instance_uuid": "`+testInstance+`"}]`, w.Body.String())

	w = env.do(http.MethodGet, "/api/v1/instances?ip=10.9.9.9", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, w.Body.String())

	w = env.do(http.MethodGet, "/api/v1/instances?ip="+url.QueryEscape("^$"), "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeallocatePorts(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, portsPath(testInstance), `{"project_id": "proj-1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, env.svc.PortsByDevice(testInstance), 2)

	w = env.do(http.MethodDelete, portsPath(testInstance), "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.JSONEq(t, `{"instance_uuid": "`+testInstance+`", "status": "ACCEPTED"}`, w.Body.String())

	require.Eventually(t, func() bool {
		return len(env.svc.PortsByDevice(testInstance)) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDeallocatePorts_PoolClosed(t *testing.T) {
	env := newTestEnv(t)
	env.pools.Shutdown()

	w := env.do(http.MethodDelete, portsPath(testInstance), "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
	require.Equal(t, apperrors.CodeServiceUnavailable, decodeError(t, w).Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/health/live", "")
	require.Equal(t, http.StatusOK, w.Code)

	// No probe has run yet.
	w = env.do(http.MethodGet, "/api/v1/health/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())

	env.health.Check(context.Background())
	w = env.do(http.MethodGet, "/api/v1/health/ready", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "healthy", body.Checks["network"])
	require.Contains(t, body.Workers, worker.PoolNetwork)
}
