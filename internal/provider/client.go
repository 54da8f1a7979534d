// Package provider adapts the remote network management service.
//
// NetworkClient is the only surface the core sees. Implementations return
// domain types and wrap remote 404s with apperrors.ErrNotFound.
//
// Import Path: netbinder.io/netbinder/internal/provider
package provider

import (
	"context"

	"netbinder.io/netbinder/internal/domain"
)

// NetworkClient abstracts the remote network service.
// Anti-Corruption Layer: no SDK type crosses this boundary.
type NetworkClient interface {
	ListPorts(ctx context.Context, filter domain.PortFilter) ([]domain.Port, error)
	ShowPort(ctx context.Context, portID string) (*domain.Port, error)
	CreatePort(ctx context.Context, req domain.PortCreateRequest) (*domain.Port, error)
	UpdatePort(ctx context.Context, portID string, req domain.PortUpdateRequest) (*domain.Port, error)
	DeletePort(ctx context.Context, portID string) error
	ListNetworks(ctx context.Context, filter domain.NetworkFilter) ([]domain.Network, error)
	ListSubnets(ctx context.Context, filter domain.SubnetFilter) ([]domain.Subnet, error)
}

// Operation names used in logs and metrics.
const (
	OpListPorts    = "list_ports"
	OpShowPort     = "show_port"
	OpCreatePort   = "create_port"
	OpUpdatePort   = "update_port"
	OpDeletePort   = "delete_port"
	OpListNetworks = "list_networks"
	OpListSubnets  = "list_subnets"
)
