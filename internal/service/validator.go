package service

import (
	"context"

	"github.com/juju/collections/set"
	"go.uber.org/zap"

	"netbinder.io/netbinder/internal/domain"
	apperrors "netbinder.io/netbinder/internal/pkg/errors"
	"netbinder.io/netbinder/internal/pkg/logger"
	"netbinder.io/netbinder/internal/provider"
)

// RequestValidator checks a requested network list against the remote
// service before an instance is scheduled.
type RequestValidator struct {
	client provider.NetworkClient
}

// NewRequestValidator creates a new RequestValidator.
func NewRequestValidator(client provider.NetworkClient) *RequestValidator {
	return &RequestValidator{client: client}
}

// Validate returns nil when every requested network is visible to the
// project and every requested port exists, is free and lands on a network
// no other triple names. Empty input is always valid.
//
// The first failure wins, in this order per triple:
// PORT_NOT_FOUND, PORT_IN_USE, NETWORK_DUPLICATED. NETWORK_NOT_FOUND is
// raised last, when the listing count differs from the requested count,
// and lists every missing id.
func (v *RequestValidator) Validate(ctx context.Context, projectID string, requested []domain.RequestedNetwork) error {
	if len(requested) == 0 {
		return nil
	}
	logger.Debug("Validating requested networks",
		zap.String("project_id", projectID),
		zap.Int("count", len(requested)),
	)

	// Plain network ids count as taken regardless of their position.
	plain := set.NewStrings()
	for _, req := range requested {
		if req.PortID == "" {
			plain.Add(req.NetworkID)
		}
	}

	netIDs := make([]string, 0, len(requested))
	fromPorts := set.NewStrings()
	for _, req := range requested {
		if req.PortID == "" {
			netIDs = append(netIDs, req.NetworkID)
			continue
		}

		port, err := v.client.ShowPort(ctx, req.PortID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.ErrPortNotFoundf(req.PortID)
			}
			return apperrors.ErrRemoteService(provider.OpShowPort, err)
		}
		if port.DeviceID != "" {
			return apperrors.ErrPortInUsef(req.PortID)
		}
		if plain.Contains(port.NetworkID) || fromPorts.Contains(port.NetworkID) {
			return apperrors.ErrNetworkDuplicatedf(port.NetworkID)
		}
		fromPorts.Add(port.NetworkID)
		netIDs = append(netIDs, port.NetworkID)
	}

	nets, err := v.client.ListNetworks(ctx, domain.NetworkFilter{TenantID: projectID, IDs: netIDs})
	if err != nil {
		return apperrors.ErrRemoteService(provider.OpListNetworks, err)
	}

	// Every requested id must come back exactly once; repeating a plain id
	// also fails here, with nothing listed as missing.
	if len(nets) == len(netIDs) {
		return nil
	}
	returned := set.NewStrings()
	for _, n := range nets {
		returned.Add(n.ID)
	}
	missing := set.NewStrings(netIDs...).Difference(returned)
	return apperrors.ErrNetworkNotFoundf(missing.SortedValues())
}
