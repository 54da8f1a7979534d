package provider

import (
	"github.com/gophercloud/gophercloud/openstack/networking/v2/networks"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/ports"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/subnets"

	"netbinder.io/netbinder/internal/domain"
)

// NeutronMapper maps between gophercloud networking types and domain types.
// Anti-Corruption Layer: isolates the core from SDK changes.
type NeutronMapper struct{}

// NewNeutronMapper creates a new NeutronMapper.
func NewNeutronMapper() *NeutronMapper {
	return &NeutronMapper{}
}

// MapPort maps a gophercloud port.
// Older deployments only fill tenant_id, newer ones only project_id.
func (m *NeutronMapper) MapPort(p *ports.Port) domain.Port {
	out := domain.Port{
		ID:           p.ID,
		NetworkID:    p.NetworkID,
		DeviceID:     p.DeviceID,
		DeviceOwner:  p.DeviceOwner,
		MACAddress:   p.MACAddress,
		AdminStateUp: p.AdminStateUp,
		TenantID:     firstNonEmpty(p.TenantID, p.ProjectID),
	}
	if len(p.FixedIPs) > 0 {
		out.FixedIPs = make([]domain.PortFixedIP, 0, len(p.FixedIPs))
		for _, ip := range p.FixedIPs {
			out.FixedIPs = append(out.FixedIPs, domain.PortFixedIP{
				IPAddress: ip.IPAddress,
				SubnetID:  ip.SubnetID,
			})
		}
	}
	return out
}

// MapPorts maps a slice of gophercloud ports, preserving order.
func (m *NeutronMapper) MapPorts(in []ports.Port) []domain.Port {
	out := make([]domain.Port, 0, len(in))
	for i := range in {
		out = append(out, m.MapPort(&in[i]))
	}
	return out
}

// MapNetworks maps a slice of gophercloud networks, preserving order.
func (m *NeutronMapper) MapNetworks(in []networks.Network) []domain.Network {
	out := make([]domain.Network, 0, len(in))
	for _, n := range in {
		out = append(out, domain.Network{
			ID:       n.ID,
			Name:     n.Name,
			TenantID: firstNonEmpty(n.TenantID, n.ProjectID),
		})
	}
	return out
}

// MapSubnets maps a slice of gophercloud subnets, preserving order.
func (m *NeutronMapper) MapSubnets(in []subnets.Subnet) []domain.Subnet {
	out := make([]domain.Subnet, 0, len(in))
	for _, s := range in {
		out = append(out, domain.Subnet{
			ID:             s.ID,
			NetworkID:      s.NetworkID,
			CIDR:           s.CIDR,
			GatewayIP:      s.GatewayIP,
			DNSNameservers: s.DNSNameservers,
		})
	}
	return out
}

// PortCreateOpts maps a domain creation request onto gophercloud options.
func (m *NeutronMapper) PortCreateOpts(req domain.PortCreateRequest) ports.CreateOpts {
	adminUp := req.AdminStateUp
	opts := ports.CreateOpts{
		NetworkID:    req.NetworkID,
		AdminStateUp: &adminUp,
		DeviceID:     req.DeviceID,
		DeviceOwner:  req.DeviceOwner,
		TenantID:     req.TenantID,
	}
	if len(req.FixedIPs) > 0 {
		ips := make([]ports.IP, 0, len(req.FixedIPs))
		for _, addr := range req.FixedIPs {
			ips = append(ips, ports.IP{IPAddress: addr})
		}
		opts.FixedIPs = ips
	}
	return opts
}

// PortUpdateOpts maps a domain update request onto gophercloud options.
func (m *NeutronMapper) PortUpdateOpts(req domain.PortUpdateRequest) ports.UpdateOpts {
	return ports.UpdateOpts{
		DeviceID:    req.DeviceID,
		DeviceOwner: req.DeviceOwner,
	}
}

// PortListOpts maps a domain port filter onto gophercloud options.
func (m *NeutronMapper) PortListOpts(f domain.PortFilter) ports.ListOpts {
	opts := ports.ListOpts{
		TenantID:  f.TenantID,
		DeviceID:  f.DeviceID,
		NetworkID: f.NetworkID,
	}
	if f.FixedIPAddress != "" {
		opts.FixedIPs = []ports.FixedIPOpts{{IPAddress: f.FixedIPAddress}}
	}
	return opts
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
