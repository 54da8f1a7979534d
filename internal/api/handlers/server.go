// Package handlers implements the HTTP operations of the netbinder contract
// (internal/api/openapi/openapi.yaml).
//
// Handlers report failures through c.Error and leave rendering to
// middleware.ErrorHandler.
//
// Import Path: netbinder.io/netbinder/internal/api/handlers
package handlers

import (
	"github.com/gin-gonic/gin"

	"netbinder.io/netbinder/internal/pkg/worker"
	"netbinder.io/netbinder/internal/provider"
	"netbinder.io/netbinder/internal/usecase"
)

// Server implements all API handlers.
type Server struct {
	network usecase.NetworkAPI
	pools   *worker.Pools
	health  *provider.HealthChecker
}

// ServerDeps holds all dependencies for creating a Server.
// Manual DI, no Wire/Dig.
type ServerDeps struct {
	Network usecase.NetworkAPI
	Pools   *worker.Pools
	// Health is optional; readiness reports ok without it.
	Health *provider.HealthChecker
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		network: deps.Network,
		pools:   deps.Pools,
		health:  deps.Health,
	}
}

// RegisterHandlers binds every contract operation onto g, which is expected
// to be mounted at openapi.BasePath.
func RegisterHandlers(g gin.IRouter, s *Server) {
	g.GET("/instances", s.LookupInstancesByIP)
	g.POST("/instances/:instance_id/ports", s.AllocatePorts)
	g.DELETE("/instances/:instance_id/ports", s.DeallocatePorts)
	g.GET("/instances/:instance_id/network-info", s.GetNetworkInfo)
	g.POST("/networks/validate", s.ValidateNetworks)
	g.GET("/health/live", s.GetLiveness)
	g.GET("/health/ready", s.GetReadiness)
}
