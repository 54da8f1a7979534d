package handlers

import (
	"github.com/google/uuid"

	"netbinder.io/netbinder/internal/domain"
	apperrors "netbinder.io/netbinder/internal/pkg/errors"
)

type allocateRequest struct {
	ProjectID         string                    `json:"project_id"`
	DisplayName       string                    `json:"display_name"`
	RequestedNetworks []domain.RequestedNetwork `json:"requested_networks"`
}

type validateRequest struct {
	ProjectID         string                    `json:"project_id"`
	RequestedNetworks []domain.RequestedNetwork `json:"requested_networks"`
}

type deallocateAccepted struct {
	InstanceUUID string `json:"instance_uuid"`
	Status       string `json:"status"`
}

// networkInfoResponse renders an instance without ports as [] rather than null.
func networkInfoResponse(info domain.NetworkInfo) domain.NetworkInfo {
	if info == nil {
		return domain.NetworkInfo{}
	}
	return info
}

// parseInstanceID accepts only canonical instance uuids.
func parseInstanceID(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperrors.ErrInvalidInputf("instance id %q is not a uuid", raw)
	}
	return id.String(), nil
}
