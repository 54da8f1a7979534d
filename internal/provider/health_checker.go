package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"netbinder.io/netbinder/internal/pkg/logger"
)

// Pinger is implemented by clients that can cheaply probe the remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServiceStatus represents remote service health status.
type ServiceStatus string

const (
	ServiceStatusUnknown     ServiceStatus = "UNKNOWN"
	ServiceStatusHealthy     ServiceStatus = "HEALTHY"
	ServiceStatusUnreachable ServiceStatus = "UNREACHABLE"
)

// ServiceHealth contains health check results.
type ServiceHealth struct {
	Backend     string        `json:"backend"`
	Status      ServiceStatus `json:"status"`
	LastChecked time.Time     `json:"last_checked"`
	Error       string        `json:"error,omitempty"`
}

// HealthChecker performs periodic health checks on the remote network service.
type HealthChecker struct {
	backend  string
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration

	mu       sync.RWMutex
	result   *ServiceHealth
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(backend string, pinger Pinger, interval time.Duration) *HealthChecker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthChecker{
		backend:  backend,
		pinger:   pinger,
		interval: interval,
		timeout:  interval / 2,
		result:   &ServiceHealth{Backend: backend, Status: ServiceStatusUnknown},
		stopCh:   make(chan struct{}),
	}
}

// Check performs a single health check and stores the result.
func (c *HealthChecker) Check(ctx context.Context) *ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	health := &ServiceHealth{
		Backend:     c.backend,
		Status:      ServiceStatusHealthy,
		LastChecked: time.Now(),
	}
	if err := c.pinger.Ping(ctx); err != nil {
		health.Status = ServiceStatusUnreachable
		health.Error = fmt.Sprintf("ping failed: %v", err)
		logger.Warn("Network service health check failed",
			zap.String("backend", c.backend),
			zap.Error(err),
		)
	}

	c.mu.Lock()
	c.result = health
	c.mu.Unlock()
	return health
}

// Health returns the cached status.
func (c *HealthChecker) Health() ServiceHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.result
}

// Healthy reports whether the last check succeeded.
func (c *HealthChecker) Healthy() bool {
	return c.Health().Status == ServiceStatusHealthy
}

// Start begins periodic health checking.
// nolint:naked-goroutine // health checker ticker loop; doesn't fit worker pool pattern.
func (c *HealthChecker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.Check(ctx)

		for {
			select {
			case <-ticker.C:
				c.Check(ctx)
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts periodic health checking. Safe to call more than once.
func (c *HealthChecker) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}
