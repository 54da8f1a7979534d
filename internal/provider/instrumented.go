package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"netbinder.io/netbinder/internal/domain"
	"netbinder.io/netbinder/internal/metrics"
	"netbinder.io/netbinder/internal/pkg/logger"
)

// InstrumentedClient decorates a NetworkClient with call metrics and debug
// logging.
type InstrumentedClient struct {
	next      NetworkClient
	collector *metrics.Collector
}

// NewInstrumentedClient wraps next. A nil collector only logs.
func NewInstrumentedClient(next NetworkClient, collector *metrics.Collector) *InstrumentedClient {
	return &InstrumentedClient{next: next, collector: collector}
}

func (c *InstrumentedClient) observe(op, target string, started time.Time, err error) {
	c.collector.RemoteCall(op, started, err)
	if err != nil {
		logger.Debug("Remote network call failed",
			zap.String("operation", op),
			zap.String("target", target),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err),
		)
	}
}

func (c *InstrumentedClient) ListPorts(ctx context.Context, filter domain.PortFilter) ([]domain.Port, error) {
	started := time.Now()
	out, err := c.next.ListPorts(ctx, filter)
	c.observe(OpListPorts, filter.DeviceID, started, err)
	return out, err
}

func (c *InstrumentedClient) ShowPort(ctx context.Context, portID string) (*domain.Port, error) {
	started := time.Now()
	out, err := c.next.ShowPort(ctx, portID)
	c.observe(OpShowPort, portID, started, err)
	return out, err
}

func (c *InstrumentedClient) CreatePort(ctx context.Context, req domain.PortCreateRequest) (*domain.Port, error) {
	started := time.Now()
	out, err := c.next.CreatePort(ctx, req)
	c.observe(OpCreatePort, req.NetworkID, started, err)
	return out, err
}

func (c *InstrumentedClient) UpdatePort(ctx context.Context, portID string, req domain.PortUpdateRequest) (*domain.Port, error) {
	started := time.Now()
	out, err := c.next.UpdatePort(ctx, portID, req)
	c.observe(OpUpdatePort, portID, started, err)
	return out, err
}

func (c *InstrumentedClient) DeletePort(ctx context.Context, portID string) error {
	started := time.Now()
	err := c.next.DeletePort(ctx, portID)
	c.observe(OpDeletePort, portID, started, err)
	return err
}

func (c *InstrumentedClient) ListNetworks(ctx context.Context, filter domain.NetworkFilter) ([]domain.Network, error) {
	started := time.Now()
	out, err := c.next.ListNetworks(ctx, filter)
	c.observe(OpListNetworks, filter.TenantID, started, err)
	return out, err
}

func (c *InstrumentedClient) ListSubnets(ctx context.Context, filter domain.SubnetFilter) ([]domain.Subnet, error) {
	started := time.Now()
	out, err := c.next.ListSubnets(ctx, filter)
	c.observe(OpListSubnets, "", started, err)
	return out, err
}

// Ping forwards to the wrapped client when it can be pinged.
func (c *InstrumentedClient) Ping(ctx context.Context) error {
	if p, ok := c.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
