package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	healthStatusOK       = "ok"
	healthStatusDegraded = "degraded"
)

type healthResponse struct {
	Status  string                    `json:"status"`
	Checks  map[string]string         `json:"checks,omitempty"`
	Workers map[string]map[string]int `json:"workers,omitempty"`
}

// GetLiveness handles GET /health/live, the liveness probe.
func (s *Server) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: healthStatusOK})
}

// GetReadiness handles GET /health/ready, the readiness probe.
// Ready means the last probe of the remote network service succeeded.
func (s *Server) GetReadiness(c *gin.Context) {
	resp := healthResponse{Status: healthStatusOK, Checks: map[string]string{}}
	httpStatus := http.StatusOK

	if s.health != nil {
		h := s.health.Health()
		resp.Checks["network"] = strings.ToLower(string(h.Status))
		if !s.health.Healthy() {
			resp.Status = healthStatusDegraded
			httpStatus = http.StatusServiceUnavailable
		}
	}
	if s.pools != nil {
		resp.Workers = s.pools.Metrics()
	}
	c.JSON(httpStatus, resp)
}
