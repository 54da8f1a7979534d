package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"netbinder.io/netbinder/internal/domain"
	"netbinder.io/netbinder/internal/metrics"
	apperrors "netbinder.io/netbinder/internal/pkg/errors"
	"netbinder.io/netbinder/internal/pkg/logger"
	"netbinder.io/netbinder/internal/provider"
	"netbinder.io/netbinder/internal/service"
)

func init() {
	_ = logger.Init("error", "json")
}

const (
	project = "proj-1"
	vmUUID  = "7d2b9c1e-0000-4000-8000-00000000abcd"
)

var vm = domain.Instance{UUID: vmUUID, ProjectID: project, DisplayName: "db-1"}

var defaultOpts = Options{AvailabilityZone: "nova", FlatInjected: true}

// newNetworks seeds n1..n3 for the project, each with one /24 subnet, and a
// free port p2 on n2.
func newNetworks(t *testing.T) *provider.MemoryNetworkService {
	t.Helper()
	svc, err := provider.NewMemoryNetworkService()
	require.NoError(t, err)
	require.NoError(t, svc.Seed(provider.Seed{
		Networks: []domain.Network{
			{ID: "n1", Name: "one", TenantID: project},
			{ID: "n2", Name: "two", TenantID: project},
			{ID: "n3", Name: "three", TenantID: project},
			{ID: "foreign", Name: "foreign", TenantID: "proj-9"},
		},
		Subnets: []domain.Subnet{
			{ID: "s1", NetworkID: "n1", CIDR: "10.0.1.0/24", GatewayIP: "10.0.1.1"},
			{ID: "s2", NetworkID: "n2", CIDR: "10.0.2.0/24", GatewayIP: "10.0.2.1"},
			{ID: "s3", NetworkID: "n3", CIDR: "10.0.3.0/24", GatewayIP: "10.0.3.1"},
		},
		Ports: []domain.Port{
			{ID: "p2", NetworkID: "n2", TenantID: project,
				FixedIPs: []domain.PortFixedIP{{IPAddress: "10.0.2.20", SubnetID: "s2"}}},
		},
	}))
	svc.ResetCalls()
	return svc
}

func newAllocate(svc provider.NetworkClient, collector *metrics.Collector) *AllocatePortsUseCase {
	topology := service.NewTopologyBuilder(svc, service.TopologyOptions{Injected: defaultOpts.FlatInjected})
	return NewAllocatePortsUseCase(svc, topology, defaultOpts).WithMetrics(collector)
}

func boundPorts(t *testing.T, svc *provider.MemoryNetworkService) []domain.Port {
	t.Helper()
	ports, err := svc.ListPorts(context.Background(), domain.PortFilter{DeviceID: vmUUID})
	require.NoError(t, err)
	return ports
}

func TestAllocate_AllTenantNetworks(t *testing.T) {
	svc := newNetworks(t)

	info, err := newAllocate(svc, nil).Execute(context.Background(), vm, nil)
	require.NoError(t, err)
	require.Len(t, info, 3)

	ports := boundPorts(t, svc)
	require.Len(t, ports, 3)
	for i, want := range []string{"n1", "n2", "n3"} {
		p := ports[i]
		require.Equal(t, want, p.NetworkID)
		require.Equal(t, "compute:nova", p.DeviceOwner)
		require.True(t, p.AdminStateUp)
		require.Equal(t, project, p.TenantID)

		require.Equal(t, p.ID, info[i].ID)
		require.Equal(t, want, info[i].Network.ID)
		require.True(t, info[i].Network.Injected)
	}

	// p2 was not requested, so it stays free.
	p2, err := svc.ShowPort(context.Background(), "p2")
	require.NoError(t, err)
	require.Empty(t, p2.DeviceID)
}

func TestAllocate_RequestedPortAndFixedIP(t *testing.T) {
	svc := newNetworks(t)

	info, err := newAllocate(svc, nil).Execute(context.Background(), vm, []domain.RequestedNetwork{
		{PortID: "p2"},
		{NetworkID: "n3", FixedIP: "10.0.3.77"},
	})
	require.NoError(t, err)

	// The network listing is filtered to the requested ids.
	require.Equal(t, []string{"n2,n3"}, svc.CallsFor(provider.OpListNetworks)[:1])
	require.Equal(t, []string{"p2"}, svc.CallsFor(provider.OpUpdatePort))
	require.Equal(t, []string{"n3"}, svc.CallsFor(provider.OpCreatePort))

	p2, err := svc.ShowPort(context.Background(), "p2")
	require.NoError(t, err)
	require.Equal(t, vmUUID, p2.DeviceID)
	require.Equal(t, "compute:nova", p2.DeviceOwner)

	require.Len(t, info, 2)
	require.Equal(t, "p2", info[0].ID)
	require.Equal(t, "two", info[0].Network.Label)
	require.Equal(t, "10.0.3.77", info[1].FixedIPs[0].Address)
	require.Equal(t, "10.0.3.77", info[1].Network.Subnets[0].IPs[0].Address)
}

func TestAllocate_EmptyProject(t *testing.T) {
	svc := newNetworks(t)

	_, err := newAllocate(svc, nil).Execute(context.Background(), domain.Instance{UUID: vmUUID, DisplayName: "x"}, nil)
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput), "got %v", err)
	require.Empty(t, svc.Calls())
}

func TestAllocate_RequestedPortMissing(t *testing.T) {
	svc := newNetworks(t)

	_, err := newAllocate(svc, nil).Execute(context.Background(), vm, []domain.RequestedNetwork{{PortID: "ghost"}})
	require.True(t, apperrors.HasCode(err, apperrors.CodePortNotFound), "got %v", err)
	require.Empty(t, svc.CallsFor(provider.OpCreatePort))
}

func TestAllocate_FailureAtStepKCompensates(t *testing.T) {
	tests := []struct {
		name        string
		failOn      provider.Failure
		wantTouched []string
		wantCreated int
	}{
		{
			name:        "first action fails",
			failOn:      provider.Failure{Op: provider.OpCreatePort, Target: "n1"},
			wantCreated: 0,
		},
		{
			name:        "second action fails",
			failOn:      provider.Failure{Op: provider.OpUpdatePort, Target: "p2"},
			wantCreated: 1,
		},
		{
			name:        "third action fails",
			failOn:      provider.Failure{Op: provider.OpCreatePort, Target: "n3"},
			wantTouched: []string{"p2"},
			wantCreated: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newNetworks(t)
			boom := errors.New("boom")
			tt.failOn.Err = boom
			svc.InjectFailure(tt.failOn)

			_, err := newAllocate(svc, nil).Execute(context.Background(), vm, []domain.RequestedNetwork{
				{NetworkID: "n1"}, {PortID: "p2"}, {NetworkID: "n3"},
			})
			require.ErrorIs(t, err, boom, "the original error is returned")
			require.True(t, apperrors.HasCode(err, apperrors.CodeRemoteService))

			// Every created port was deleted and every touched port detached.
			require.Len(t, svc.CallsFor(provider.OpDeletePort), tt.wantCreated)
			require.Empty(t, boundPorts(t, svc))
			p2, err := svc.ShowPort(context.Background(), "p2")
			require.NoError(t, err)
			require.Empty(t, p2.DeviceID)

			if len(tt.wantTouched) > 0 {
				// Forward bind plus the detach.
				require.Equal(t, []string{"p2", "p2"}, svc.CallsFor(provider.OpUpdatePort))
			}
		})
	}
}

func TestAllocate_CompensationRunsNewestFirst(t *testing.T) {
	svc := newNetworks(t)
	svc.InjectFailure(provider.Failure{Op: provider.OpCreatePort, Target: "n3"})

	_, err := newAllocate(svc, nil).Execute(context.Background(), vm, []domain.RequestedNetwork{
		{NetworkID: "n1"}, {PortID: "p2"}, {NetworkID: "n3"},
	})
	require.Error(t, err)

	calls := svc.Calls()
	var failedAt int
	for i, c := range calls {
		if c.Op == provider.OpCreatePort && c.Target == "n3" {
			failedAt = i
		}
	}
	tail := calls[failedAt+1:]
	require.Len(t, tail, 3)
	// p2 was touched after the n1 port was created, so it is undone first.
	require.Equal(t, provider.Call{Op: provider.OpShowPort, Target: "p2"}, tail[0])
	require.Equal(t, provider.Call{Op: provider.OpUpdatePort, Target: "p2"}, tail[1])
	require.Equal(t, provider.OpDeletePort, tail[2].Op)
}

func TestAllocate_CompensationInconsistency(t *testing.T) {
	svc := newNetworks(t)
	collector := metrics.NewCollector()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(collector))

	// p2 resolves in step 1, then is gone when compensation re-fetches it.
	svc.InjectFailure(provider.Failure{
		Op: provider.OpShowPort, Target: "p2", After: 1,
		Err: fmt.Errorf("port p2: %w", apperrors.ErrNotFound),
	})
	boom := errors.New("boom")
	svc.InjectFailure(provider.Failure{Op: provider.OpCreatePort, Target: "n3", Err: boom})

	_, err := newAllocate(svc, collector).Execute(context.Background(), vm, []domain.RequestedNetwork{
		{NetworkID: "n1"}, {PortID: "p2"}, {NetworkID: "n3"},
	})
	require.True(t, apperrors.HasCode(err, apperrors.CodeCompensationInconsistency), "got %v", err)
	require.NotErrorIs(t, err, boom)
	appErr, _ := apperrors.IsAppError(err)
	require.Equal(t, "p2", appErr.Params[apperrors.ParamPortID])

	// The created n1 port is still deleted after the inconsistency.
	require.Len(t, svc.CallsFor(provider.OpDeletePort), 1)
	require.Equal(t, []string{"p2"}, svc.CallsFor(provider.OpUpdatePort), "no detach for the vanished port")

	expected := `
# HELP netbinder_allocations_total Port allocations by outcome.
# TYPE netbinder_allocations_total counter
netbinder_allocations_total{outcome="compensation_inconsistency"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "netbinder_allocations_total"))
}

func TestAllocate_CompensationFailuresAreSwallowed(t *testing.T) {
	svc := newNetworks(t)
	collector := metrics.NewCollector()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(collector))

	boom := errors.New("boom")
	svc.InjectFailure(provider.Failure{Op: provider.OpCreatePort, Target: "n3", Err: boom})
	svc.InjectFailure(provider.Failure{Op: provider.OpDeletePort})
	// Forward bind succeeds, the detach update fails.
	svc.InjectFailure(provider.Failure{Op: provider.OpUpdatePort, Target: "p2", After: 1})

	_, err := newAllocate(svc, collector).Execute(context.Background(), vm, []domain.RequestedNetwork{
		{NetworkID: "n1"}, {PortID: "p2"}, {NetworkID: "n3"},
	})
	require.ErrorIs(t, err, boom)

	// Nothing is retried.
	require.Len(t, svc.CallsFor(provider.OpDeletePort), 1)
	require.Len(t, svc.CallsFor(provider.OpUpdatePort), 2)

	expected := `
# HELP netbinder_compensation_actions_total Compensation actions run after a failed allocation.
# TYPE netbinder_compensation_actions_total counter
netbinder_compensation_actions_total{action="delete",result="error"} 1
netbinder_compensation_actions_total{action="detach",result="error"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "netbinder_compensation_actions_total"))
}

// cancellingClient cancels the caller's context on the first port creation.
type cancellingClient struct {
	provider.NetworkClient
	cancel context.CancelFunc
}

func (c *cancellingClient) CreatePort(ctx context.Context, req domain.PortCreateRequest) (*domain.Port, error) {
	c.cancel()
	return c.NetworkClient.CreatePort(ctx, req)
}

func TestAllocate_SagaIgnoresCancellation(t *testing.T) {
	svc := newNetworks(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &cancellingClient{NetworkClient: svc, cancel: cancel}
	info, err := newAllocate(client, nil).Execute(ctx, vm, nil)
	require.NoError(t, err)
	require.Len(t, info, 3)
	require.Error(t, ctx.Err())
}

func TestCompensationLog(t *testing.T) {
	var log compensationLog
	log.record(compensation{action: metrics.ActionDelete, portID: "a"})
	log.record(compensation{action: metrics.ActionDetach, portID: "b"})
	log.record(compensation{action: metrics.ActionDelete, portID: "c"})

	require.Equal(t, 3, log.len())
	require.Equal(t, []string{"b"}, log.touched())
	require.Equal(t, []string{"a", "c"}, log.created())
}

func TestOptions_DeviceOwner(t *testing.T) {
	if got := (Options{AvailabilityZone: "az-2"}).DeviceOwner(); got != "compute:az-2" {
		t.Errorf("DeviceOwner() = %q, want compute:az-2", got)
	}
}
