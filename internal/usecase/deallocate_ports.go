package usecase

import (
	"context"

	"go.uber.org/zap"

	"netbinder.io/netbinder/internal/domain"
	"netbinder.io/netbinder/internal/metrics"
	"netbinder.io/netbinder/internal/pkg/logger"
	"netbinder.io/netbinder/internal/provider"
)

// DeallocationReport lists what a sweep did. It never carries an error.
type DeallocationReport struct {
	InstanceUUID string   `json:"instance_uuid"`
	Deleted      []string `json:"deleted"`
	Failed       []string `json:"failed"`
}

// DeallocatePortsUseCase deletes every port bound to an instance.
type DeallocatePortsUseCase struct {
	client    provider.NetworkClient
	collector *metrics.Collector
}

// NewDeallocatePortsUseCase creates a new DeallocatePortsUseCase.
func NewDeallocatePortsUseCase(client provider.NetworkClient) *DeallocatePortsUseCase {
	return &DeallocatePortsUseCase{client: client}
}

// WithMetrics sets the metrics collector (optional dependency).
func (uc *DeallocatePortsUseCase) WithMetrics(c *metrics.Collector) *DeallocatePortsUseCase {
	uc.collector = c
	return uc
}

// Execute deletes each bound port independently. Failures are logged and
// counted; the sweep always finishes.
func (uc *DeallocatePortsUseCase) Execute(ctx context.Context, instance domain.Instance) *DeallocationReport {
	report := &DeallocationReport{
		InstanceUUID: instance.UUID,
		Deleted:      []string{},
		Failed:       []string{},
	}
	logger.Debug("Deallocating ports",
		zap.String("instance_uuid", instance.UUID),
		zap.String("display_name", instance.DisplayName),
	)
	// An empty device filter would match every port of the deployment.
	if instance.UUID == "" {
		logger.Warn("Deallocation skipped: instance has no uuid",
			zap.String("display_name", instance.DisplayName),
		)
		return report
	}

	ports, err := uc.client.ListPorts(ctx, domain.PortFilter{DeviceID: instance.UUID})
	if err != nil {
		logger.Error("Failed to list ports for deallocation",
			zap.String("instance_uuid", instance.UUID),
			zap.Error(err),
		)
		return report
	}

	for _, p := range ports {
		err := uc.client.DeletePort(ctx, p.ID)
		uc.collector.PortDeleted(err)
		if err != nil {
			logger.Error("Failed to delete port",
				zap.String("instance_uuid", instance.UUID),
				zap.String("port_id", p.ID),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, p.ID)
			continue
		}
		report.Deleted = append(report.Deleted, p.ID)
	}

	logger.Info("Ports deallocated",
		zap.String("instance_uuid", instance.UUID),
		zap.Int("deleted", len(report.Deleted)),
		zap.Int("failed", len(report.Failed)),
	)
	return report
}
