package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"netbinder.io/netbinder/internal/domain"
	"netbinder.io/netbinder/internal/pkg/logger"
	"netbinder.io/netbinder/internal/provider"
)

func init() {
	_ = logger.Init("error", "json")
}

const (
	testProject  = "proj-1"
	testInstance = "5c3f1a2e-0000-4000-8000-000000000001"
)

var testVM = domain.Instance{UUID: testInstance, ProjectID: testProject, DisplayName: "web-1"}

// newFixture seeds two tenant networks (net-b listed before net-a), one
// foreign network and the instance's ports.
func newFixture(t *testing.T) *provider.MemoryNetworkService {
	t.Helper()
	svc, err := provider.NewMemoryNetworkService()
	require.NoError(t, err)
	require.NoError(t, svc.Seed(provider.Seed{
		Networks: []domain.Network{
			{ID: "net-b", Name: "private-b", TenantID: testProject},
			{ID: "net-a", Name: "private-a", TenantID: testProject},
			{ID: "net-x", Name: "foreign", TenantID: "proj-2"},
		},
		Subnets: []domain.Subnet{
			{ID: "sub-a4", NetworkID: "net-a", CIDR: "10.0.0.0/24", GatewayIP: "10.0.0.1", DNSNameservers: []string{"8.8.8.8", "8.8.4.4"}},
			{ID: "sub-a6", NetworkID: "net-a", CIDR: "2001:db8::/64", GatewayIP: "2001:db8::1"},
			{ID: "sub-b", NetworkID: "net-b", CIDR: "10.1.0.0/24"},
		},
		Ports: []domain.Port{
			{
				ID: "port-2", NetworkID: "net-b", DeviceID: testInstance, TenantID: testProject,
				MACAddress: "fa:16:3e:00:00:02",
				FixedIPs:   []domain.PortFixedIP{{IPAddress: "10.1.0.7", SubnetID: "sub-b"}},
			},
			{
				ID: "port-1", NetworkID: "net-a", DeviceID: testInstance, TenantID: testProject,
				MACAddress: "fa:16:3e:00:00:01",
				FixedIPs: []domain.PortFixedIP{
					{IPAddress: "10.0.0.5", SubnetID: "sub-a4"},
					{IPAddress: "2001:db8::5", SubnetID: "sub-a6"},
					// Recorded against sub-a4 but outside its CIDR.
					{IPAddress: "172.16.0.9", SubnetID: "sub-a4"},
				},
			},
			{
				ID: "port-free", NetworkID: "net-a", TenantID: testProject,
				MACAddress: "fa:16:3e:00:00:03",
				FixedIPs:   []domain.PortFixedIP{{IPAddress: "10.0.0.9", SubnetID: "sub-a4"}},
			},
			{
				ID: "port-bound", NetworkID: "net-b", DeviceID: "other-vm", TenantID: testProject,
				MACAddress: "fa:16:3e:00:00:04",
				FixedIPs:   []domain.PortFixedIP{{IPAddress: "10.1.0.8", SubnetID: "sub-b"}},
			},
		},
	}))
	return svc
}

func addresses(ips []*domain.FixedIP) []string {
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, ip.Address)
	}
	return out
}
