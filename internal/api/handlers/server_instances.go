package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"netbinder.io/netbinder/internal/domain"
	apperrors "netbinder.io/netbinder/internal/pkg/errors"
	"netbinder.io/netbinder/internal/pkg/logger"
	"netbinder.io/netbinder/internal/pkg/worker"
)

// AllocatePorts handles POST /instances/{instance_id}/ports.
func (s *Server) AllocatePorts(c *gin.Context) {
	instanceID, err := parseInstanceID(c.Param("instance_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req allocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ErrInvalidInputf("invalid request body: %v", err))
		return
	}

	instance := domain.Instance{
		UUID:        instanceID,
		ProjectID:   req.ProjectID,
		DisplayName: req.DisplayName,
	}
	info, err := s.network.AllocateForInstance(c.Request.Context(), instance, req.RequestedNetworks)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, networkInfoResponse(info))
}

// DeallocatePorts handles DELETE /instances/{instance_id}/ports.
//
// The sweep runs on the network pool, detached from the request.
func (s *Server) DeallocatePorts(c *gin.Context) {
	instanceID, err := parseInstanceID(c.Param("instance_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	instance := domain.Instance{UUID: instanceID, ProjectID: c.Query("project_id")}

	err = s.pools.SubmitDetached(worker.PoolNetwork, func(ctx context.Context) {
		report := s.network.DeallocateForInstance(ctx, instance)
		if len(report.Failed) > 0 {
			logger.Warn("Deallocation left ports behind",
				zap.String("instance_uuid", report.InstanceUUID),
				zap.Strings("failed", report.Failed),
			)
		}
	})
	if err != nil {
		_ = c.Error(apperrors.ErrServiceUnavailable(err))
		return
	}
	c.JSON(http.StatusAccepted, deallocateAccepted{InstanceUUID: instanceID, Status: "ACCEPTED"})
}

// GetNetworkInfo handles GET /instances/{instance_id}/network-info.
func (s *Server) GetNetworkInfo(c *gin.Context) {
	instanceID, err := parseInstanceID(c.Param("instance_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	instance := domain.Instance{UUID: instanceID, ProjectID: c.Query("project_id")}

	info, err := s.network.GetInstanceNetworkInfo(c.Request.Context(), instance)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, networkInfoResponse(info))
}

// LookupInstancesByIP handles GET /instances?ip=.
func (s *Server) LookupInstancesByIP(c *gin.Context) {
	refs, err := s.network.GetInstanceUUIDsByIPFilter(c.Request.Context(), domain.IPFilter{IP: c.Query("ip")})
	if err != nil {
		_ = c.Error(err)
		return
	}
	if refs == nil {
		refs = []domain.InstanceRef{}
	}
	c.JSON(http.StatusOK, refs)
}
