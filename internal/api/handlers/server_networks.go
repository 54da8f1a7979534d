package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "netbinder.io/netbinder/internal/pkg/errors"
)

// ValidateNetworks handles POST /networks/validate.
func (s *Server) ValidateNetworks(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ErrInvalidInputf("invalid request body: %v", err))
		return
	}
	if err := s.network.ValidateNetworks(c.Request.Context(), req.ProjectID, req.RequestedNetworks); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
