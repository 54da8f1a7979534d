package app

import (
	"context"

	"netbinder.io/netbinder/internal/pkg/logger"
)

// Start starts all background services (health checker).
func (a *Application) Start(ctx context.Context) error {
	if a.Health != nil {
		a.Health.Start(ctx)
		logger.Info("Network service health checker started")
	}
	return nil
}

// Shutdown gracefully shuts down all application components.
// Pending port sweeps get the pool shutdown timeout to finish.
func (a *Application) Shutdown() {
	if a.Health != nil {
		a.Health.Stop()
	}
	if a.Pools != nil {
		a.Pools.Shutdown()
	}
}
