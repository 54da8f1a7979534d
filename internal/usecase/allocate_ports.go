// Package usecase orchestrates port allocation and release for instances.
//
// Allocation is a saga: every forward action records its inverse in a
// compensation log, and a failure unwinds the log newest-first.
//
// Import Path: netbinder.io/netbinder/internal/usecase
package usecase

import (
	"context"

	"go.uber.org/zap"

	"netbinder.io/netbinder/internal/domain"
	"netbinder.io/netbinder/internal/metrics"
	apperrors "netbinder.io/netbinder/internal/pkg/errors"
	"netbinder.io/netbinder/internal/pkg/logger"
	"netbinder.io/netbinder/internal/provider"
	"netbinder.io/netbinder/internal/service"
)

// Options carries the compute-node values used when binding ports.
type Options struct {
	AvailabilityZone string
	FlatInjected     bool
}

// DeviceOwner is the device_owner stamped on bound ports.
func (o Options) DeviceOwner() string {
	return "compute:" + o.AvailabilityZone
}

// AllocatePortsUseCase binds or creates one port per requested network.
type AllocatePortsUseCase struct {
	client    provider.NetworkClient
	topology  *service.TopologyBuilder
	opts      Options
	collector *metrics.Collector
}

// NewAllocatePortsUseCase creates a new AllocatePortsUseCase.
func NewAllocatePortsUseCase(client provider.NetworkClient, topology *service.TopologyBuilder, opts Options) *AllocatePortsUseCase {
	return &AllocatePortsUseCase{client: client, topology: topology, opts: opts}
}

// WithMetrics sets the metrics collector (optional dependency).
func (uc *AllocatePortsUseCase) WithMetrics(c *metrics.Collector) *AllocatePortsUseCase {
	uc.collector = c
	return uc
}

// Execute allocates ports for the instance and returns its NetworkInfo.
//
// Step 1 resolves requested ports and lists the target networks.
// Step 2 binds a pre-existing port or creates a new one per listed network.
// On the first failing action the compensation log is unwound and the
// failing action's error is returned, unless the unwind found a touched port
// gone, in which case COMPENSATION_INCONSISTENCY is returned instead.
// Once step 2 starts, cancelling ctx no longer interrupts the saga.
func (uc *AllocatePortsUseCase) Execute(ctx context.Context, instance domain.Instance, requested []domain.RequestedNetwork) (domain.NetworkInfo, error) {
	logger.Debug("Allocating ports",
		zap.String("instance_uuid", instance.UUID),
		zap.String("display_name", instance.DisplayName),
		zap.Int("requested", len(requested)),
	)
	if instance.ProjectID == "" {
		uc.collector.AllocationFinished(metrics.OutcomeInvalid)
		return nil, apperrors.ErrInvalidInputf("empty project id for instance %s", instanceName(instance))
	}
	if instance.UUID == "" {
		uc.collector.AllocationFinished(metrics.OutcomeInvalid)
		return nil, apperrors.ErrInvalidInputf("empty uuid for instance %s", instanceName(instance))
	}

	// Step 1: resolution.
	plan, err := uc.resolve(ctx, instance, requested)
	if err != nil {
		uc.collector.AllocationFinished(metrics.OutcomeFailed)
		return nil, err
	}

	// Step 2: the saga runs to completion regardless of the caller.
	sagaCtx := context.WithoutCancel(ctx)
	var log compensationLog
	for _, network := range plan.networks {
		if err := uc.attach(sagaCtx, instance, network, plan, &log); err != nil {
			return nil, uc.rollback(sagaCtx, instance, &log, err)
		}
	}

	// Step 4: topology.
	info, err := uc.topology.Build(sagaCtx, instance, plan.networks)
	if err != nil {
		uc.collector.AllocationFinished(metrics.OutcomeFailed)
		return nil, err
	}
	uc.collector.AllocationFinished(metrics.OutcomeSuccess)
	logger.Info("Ports allocated",
		zap.String("instance_uuid", instance.UUID),
		zap.Int("touched", len(log.touched())),
		zap.Int("created", len(log.created())),
	)
	return info, nil
}

// allocationPlan is the outcome of step 1.
type allocationPlan struct {
	networks []domain.Network
	// ports maps a network id to the pre-existing port requested on it.
	ports map[string]*domain.Port
	// fixedIPs maps a network id to the address requested on it.
	fixedIPs map[string]string
}

func (uc *AllocatePortsUseCase) resolve(ctx context.Context, instance domain.Instance, requested []domain.RequestedNetwork) (*allocationPlan, error) {
	plan := &allocationPlan{
		ports:    make(map[string]*domain.Port),
		fixedIPs: make(map[string]string),
	}
	filter := domain.NetworkFilter{TenantID: instance.ProjectID}

	if len(requested) > 0 {
		ids := make([]string, 0, len(requested))
		for _, req := range requested {
			networkID := req.NetworkID
			switch {
			case req.PortID != "":
				port, err := uc.client.ShowPort(ctx, req.PortID)
				if err != nil {
					if apperrors.IsNotFound(err) {
						return nil, apperrors.ErrPortNotFoundf(req.PortID)
					}
					return nil, apperrors.ErrRemoteService(provider.OpShowPort, err)
				}
				networkID = port.NetworkID
				plan.ports[networkID] = port
			case req.FixedIP != "":
				plan.fixedIPs[networkID] = req.FixedIP
			}
			ids = append(ids, networkID)
		}
		filter.IDs = ids
	}

	networks, err := uc.client.ListNetworks(ctx, filter)
	if err != nil {
		return nil, apperrors.ErrRemoteService(provider.OpListNetworks, err)
	}
	plan.networks = networks
	return plan, nil
}

// attach performs exactly one forward action for the network and records
// its inverse.
func (uc *AllocatePortsUseCase) attach(ctx context.Context, instance domain.Instance, network domain.Network, plan *allocationPlan, log *compensationLog) error {
	owner := uc.opts.DeviceOwner()

	if port, ok := plan.ports[network.ID]; ok {
		deviceID := instance.UUID
		_, err := uc.client.UpdatePort(ctx, port.ID, domain.PortUpdateRequest{
			DeviceID:    &deviceID,
			DeviceOwner: &owner,
		})
		if err != nil {
			return apperrors.ErrRemoteService(provider.OpUpdatePort, err)
		}
		log.record(compensation{action: metrics.ActionDetach, portID: port.ID, networkID: network.ID})
		logger.Debug("Port bound",
			zap.String("instance_uuid", instance.UUID),
			zap.String("port_id", port.ID),
			zap.String("network_id", network.ID),
		)
		return nil
	}

	req := domain.PortCreateRequest{
		NetworkID:    network.ID,
		DeviceID:     instance.UUID,
		DeviceOwner:  owner,
		AdminStateUp: true,
		TenantID:     instance.ProjectID,
	}
	if ip := plan.fixedIPs[network.ID]; ip != "" {
		req.FixedIPs = []string{ip}
	}
	port, err := uc.client.CreatePort(ctx, req)
	if err != nil {
		return apperrors.ErrRemoteService(provider.OpCreatePort, err)
	}
	log.record(compensation{action: metrics.ActionDelete, portID: port.ID, networkID: network.ID})
	logger.Debug("Port created",
		zap.String("instance_uuid", instance.UUID),
		zap.String("port_id", port.ID),
		zap.String("network_id", network.ID),
	)
	return nil
}

// rollback unwinds the log and picks the error the caller observes.
func (uc *AllocatePortsUseCase) rollback(ctx context.Context, instance domain.Instance, log *compensationLog, cause error) error {
	logger.Warn("Port allocation failed, compensating",
		zap.String("instance_uuid", instance.UUID),
		zap.Int("entries", log.len()),
		zap.Error(cause),
	)

	if inconsistency := log.unwind(ctx, uc.client, uc.collector, instance); inconsistency != nil {
		uc.collector.AllocationFinished(metrics.OutcomeCompensationInconsistency)
		return inconsistency
	}
	uc.collector.AllocationFinished(metrics.OutcomeFailed)
	return cause
}

func instanceName(instance domain.Instance) string {
	if instance.DisplayName != "" {
		return instance.DisplayName
	}
	return instance.UUID
}
