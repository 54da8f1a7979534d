// Package service holds the read-side network services: topology
// reconstruction, request validation and IP lookup.
//
// Import Path: netbinder.io/netbinder/internal/service
package service

import (
	"context"

	"go.uber.org/zap"

	"netbinder.io/netbinder/internal/domain"
	apperrors "netbinder.io/netbinder/internal/pkg/errors"
	"netbinder.io/netbinder/internal/pkg/logger"
	"netbinder.io/netbinder/internal/provider"
)

// TopologyOptions carries the compute-side values stamped on every model.
type TopologyOptions struct {
	// Injected is copied onto every NetworkModel.
	Injected bool
}

// TopologyBuilder reconstructs an instance's NetworkInfo from fresh remote
// listings. It keeps no state between calls.
type TopologyBuilder struct {
	client provider.NetworkClient
	opts   TopologyOptions
}

// NewTopologyBuilder creates a new TopologyBuilder.
func NewTopologyBuilder(client provider.NetworkClient, opts TopologyOptions) *TopologyBuilder {
	return &TopologyBuilder{client: client, opts: opts}
}

// Build lists the instance's ports and turns each into a VIF, in listing
// order. When networks is empty the tenant's networks are listed to resolve
// labels.
func (b *TopologyBuilder) Build(ctx context.Context, instance domain.Instance, networks []domain.Network) (domain.NetworkInfo, error) {
	ports, err := b.client.ListPorts(ctx, domain.PortFilter{
		TenantID: instance.ProjectID,
		DeviceID: instance.UUID,
	})
	if err != nil {
		return nil, apperrors.ErrRemoteService(provider.OpListPorts, err)
	}

	if len(networks) == 0 {
		networks, err = b.client.ListNetworks(ctx, domain.NetworkFilter{TenantID: instance.ProjectID})
		if err != nil {
			return nil, apperrors.ErrRemoteService(provider.OpListNetworks, err)
		}
	}

	info := make(domain.NetworkInfo, 0, len(ports))
	for i := range ports {
		vif, err := b.buildVIF(ctx, instance, &ports[i], networks)
		if err != nil {
			return nil, err
		}
		info = append(info, vif)
	}
	return info, nil
}

func (b *TopologyBuilder) buildVIF(ctx context.Context, instance domain.Instance, port *domain.Port, networks []domain.Network) (*domain.VIF, error) {
	subnets, err := b.subnetsForPort(ctx, port)
	if err != nil {
		return nil, err
	}

	fixed := make([]*domain.FixedIP, 0, len(port.FixedIPs))
	for _, ip := range port.FixedIPs {
		fixed = append(fixed, domain.NewFixedIP(ip.IPAddress))
	}
	for _, s := range subnets {
		s.IPs = []*domain.FixedIP{}
		for _, ip := range fixed {
			if ip.IsInSubnet(s) {
				s.IPs = append(s.IPs, ip)
			}
		}
	}

	model := &domain.NetworkModel{
		ID:       port.NetworkID,
		Bridge:   "",
		Injected: b.opts.Injected,
		Subnets:  subnets,
	}
	if net := findNetwork(networks, port.NetworkID); net != nil {
		model.Label = net.Name
		model.TenantID = net.TenantID
	} else {
		model.Unknown = true
		logger.Warn("Port references a network outside the listed set",
			zap.String("instance_uuid", instance.UUID),
			zap.String("port_id", port.ID),
			zap.String("network_id", port.NetworkID),
		)
	}

	return domain.NewVIF(port.ID, port.MACAddress, model, fixed), nil
}

// subnetsForPort fetches the subnets referenced by the port's fixed ips with
// a single listing call.
func (b *TopologyBuilder) subnetsForPort(ctx context.Context, port *domain.Port) ([]*domain.SubnetModel, error) {
	ids := port.SubnetIDs()
	if len(ids) == 0 {
		return []*domain.SubnetModel{}, nil
	}
	raw, err := b.client.ListSubnets(ctx, domain.SubnetFilter{IDs: ids})
	if err != nil {
		return nil, apperrors.ErrRemoteService(provider.OpListSubnets, err)
	}

	out := make([]*domain.SubnetModel, 0, len(raw))
	for _, s := range raw {
		model := &domain.SubnetModel{
			CIDR: s.CIDR,
			DNS:  []*domain.IP{},
		}
		if s.GatewayIP != "" {
			model.Gateway = domain.NewIP(s.GatewayIP, domain.IPTypeGateway)
		}
		for _, dns := range s.DNSNameservers {
			model.AddDNS(domain.NewIP(dns, domain.IPTypeDNS))
		}
		out = append(out, model)
	}
	return out, nil
}

// findNetwork returns the first network with the given id.
func findNetwork(networks []domain.Network, id string) *domain.Network {
	for i := range networks {
		if networks[i].ID == id {
			return &networks[i]
		}
	}
	return nil
}
