package usecase

import (
	"context"

	"netbinder.io/netbinder/internal/domain"
	"netbinder.io/netbinder/internal/metrics"
	apperrors "netbinder.io/netbinder/internal/pkg/errors"
	"netbinder.io/netbinder/internal/provider"
	"netbinder.io/netbinder/internal/service"
)

// NetworkAPI is the network capability offered to the compute layer.
// Floating IPs, DNS entries and fixed-IP management are not part of it.
type NetworkAPI interface {
	AllocateForInstance(ctx context.Context, instance domain.Instance, requested []domain.RequestedNetwork) (domain.NetworkInfo, error)
	DeallocateForInstance(ctx context.Context, instance domain.Instance) *DeallocationReport
	GetInstanceNetworkInfo(ctx context.Context, instance domain.Instance) (domain.NetworkInfo, error)
	ValidateNetworks(ctx context.Context, projectID string, requested []domain.RequestedNetwork) error
	GetInstanceUUIDsByIPFilter(ctx context.Context, filter domain.IPFilter) ([]domain.InstanceRef, error)
}

// API implements NetworkAPI on top of a NetworkClient.
type API struct {
	allocate   *AllocatePortsUseCase
	deallocate *DeallocatePortsUseCase
	topology   *service.TopologyBuilder
	validator  *service.RequestValidator
	lookup     *service.IPLookup
}

var _ NetworkAPI = (*API)(nil)

// NewAPI wires the use cases and services around client. collector may be nil.
func NewAPI(client provider.NetworkClient, opts Options, collector *metrics.Collector) *API {
	topology := service.NewTopologyBuilder(client, service.TopologyOptions{Injected: opts.FlatInjected})
	return &API{
		allocate:   NewAllocatePortsUseCase(client, topology, opts).WithMetrics(collector),
		deallocate: NewDeallocatePortsUseCase(client).WithMetrics(collector),
		topology:   topology,
		validator:  service.NewRequestValidator(client),
		lookup:     service.NewIPLookup(client),
	}
}

// AllocateForInstance allocates ports for the instance.
func (a *API) AllocateForInstance(ctx context.Context, instance domain.Instance, requested []domain.RequestedNetwork) (domain.NetworkInfo, error) {
	return a.allocate.Execute(ctx, instance, requested)
}

// DeallocateForInstance deletes the instance's ports.
func (a *API) DeallocateForInstance(ctx context.Context, instance domain.Instance) *DeallocationReport {
	return a.deallocate.Execute(ctx, instance)
}

// GetInstanceNetworkInfo rebuilds the instance's NetworkInfo.
func (a *API) GetInstanceNetworkInfo(ctx context.Context, instance domain.Instance) (domain.NetworkInfo, error) {
	if instance.UUID == "" {
		return nil, apperrors.ErrInvalidInputf("instance uuid is required")
	}
	return a.topology.Build(ctx, instance, nil)
}

// ValidateNetworks checks requested networks for the project.
func (a *API) ValidateNetworks(ctx context.Context, projectID string, requested []domain.RequestedNetwork) error {
	return a.validator.Validate(ctx, projectID, requested)
}

// GetInstanceUUIDsByIPFilter finds instances holding a fixed address.
func (a *API) GetInstanceUUIDsByIPFilter(ctx context.Context, filter domain.IPFilter) ([]domain.InstanceRef, error) {
	return a.lookup.FindInstancesByIP(ctx, filter)
}
