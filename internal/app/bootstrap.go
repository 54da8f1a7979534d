// Package app is the composition root: bootstrap stays orchestration-only.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"netbinder.io/netbinder/internal/api/handlers"
	"netbinder.io/netbinder/internal/config"
	"netbinder.io/netbinder/internal/metrics"
	"netbinder.io/netbinder/internal/pkg/logger"
	"netbinder.io/netbinder/internal/pkg/worker"
	"netbinder.io/netbinder/internal/provider"
	"netbinder.io/netbinder/internal/usecase"
)

// Application holds composed application dependencies.
type Application struct {
	Config   *config.Config
	Router   *gin.Engine
	Network  usecase.NetworkAPI
	Pools    *worker.Pools
	Health   *provider.HealthChecker
	Registry *prometheus.Registry
}

// Bootstrap initializes all dependencies using manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	registry, collector, err := newRegistry()
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	backend, err := NewNetworkBackend(cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("init network backend: %w", err)
	}
	client := provider.NewInstrumentedClient(backend, collector)

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		NetworkPoolSize: cfg.Worker.NetworkPoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	network := usecase.NewAPI(client, usecase.Options{
		AvailabilityZone: cfg.Compute.AvailabilityZone,
		FlatInjected:     cfg.Compute.FlatInjected,
	}, collector)
	health := provider.NewHealthChecker(cfg.Network.Backend, client, cfg.Network.HealthInterval)

	server := handlers.NewServer(handlers.ServerDeps{
		Network: network,
		Pools:   pools,
		Health:  health,
	})

	return &Application{
		Config:   cfg,
		Router:   newRouter(cfg, server, registry),
		Network:  network,
		Pools:    pools,
		Health:   health,
		Registry: registry,
	}, nil
}

// NewNetworkBackend builds the NetworkClient selected by network.backend.
func NewNetworkBackend(cfg config.NetworkConfig) (provider.NetworkClient, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		svc, err := provider.NewMemoryNetworkService()
		if err != nil {
			return nil, err
		}
		if cfg.SeedFile != "" {
			if err := svc.LoadSeedFile(cfg.SeedFile); err != nil {
				return nil, err
			}
		}
		logger.Info("Using in-memory network backend", zap.String("seed_file", cfg.SeedFile))
		return svc, nil

	case config.BackendNeutron:
		client, err := provider.NewNeutronClient(provider.NeutronOptions{
			URL:             cfg.URL,
			Timeout:         cfg.Timeout,
			Region:          cfg.Region,
			NoAuth:          cfg.AuthStrategy == config.AuthNoAuth,
			AuthURL:         cfg.AdminAuthURL,
			AdminUsername:   cfg.AdminUsername,
			AdminPassword:   cfg.AdminPassword,
			AdminTenantName: cfg.AdminTenantName,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Using neutron network backend",
			zap.String("url", cfg.URL),
			zap.String("auth_strategy", cfg.AuthStrategy),
		)
		return client, nil

	default:
		return nil, fmt.Errorf("unknown network backend %q", cfg.Backend)
	}
}

func newRegistry() (*prometheus.Registry, *metrics.Collector, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, nil, err
	}
	collector := metrics.NewCollector()
	if err := registry.Register(collector); err != nil {
		return nil, nil, err
	}
	return registry, collector, nil
}
