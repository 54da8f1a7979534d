package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// Input error codes.
const (
	CodeInvalidInput = "INVALID_INPUT"
)

// Validation error codes.
const (
	CodePortNotFound      = "PORT_NOT_FOUND"
	CodePortInUse         = "PORT_IN_USE"
	CodeNetworkDuplicated = "NETWORK_DUPLICATED"
	CodeNetworkNotFound   = "NETWORK_NOT_FOUND"
)

// Remote service and saga error codes.
const (
	CodeRemoteService             = "REMOTE_SERVICE_ERROR"
	CodeCompensationInconsistency = "COMPENSATION_INCONSISTENCY"
	CodeServiceUnavailable        = "SERVICE_UNAVAILABLE"
	CodeContractViolation         = "CONTRACT_VIOLATION"
)

// Param keys.
const (
	ParamPortID     = "port_id"
	ParamNetworkID  = "network_id"
	ParamNetworkIDs = "network_ids"
	ParamOperation  = "operation"
	ParamField      = "field"
	ParamReason     = "reason"
)

// ErrInvalidInputf creates a bad request error for malformed caller input.
func ErrInvalidInputf(format string, args ...interface{}) *AppError {
	return BadRequest(CodeInvalidInput, fmt.Sprintf(format, args...))
}

// ErrPortNotFoundf creates a port not found error.
func ErrPortNotFoundf(portID string) *AppError {
	return NotFound(CodePortNotFound, fmt.Sprintf("port %s could not be found", portID)).
		WithParams(map[string]interface{}{ParamPortID: portID})
}

// ErrPortInUsef creates a port in use error.
func ErrPortInUsef(portID string) *AppError {
	return Conflict(CodePortInUse, fmt.Sprintf("port %s is still in use", portID)).
		WithParams(map[string]interface{}{ParamPortID: portID})
}

// ErrNetworkDuplicatedf creates a duplicated network error.
func ErrNetworkDuplicatedf(networkID string) *AppError {
	return BadRequest(CodeNetworkDuplicated, fmt.Sprintf("network %s is duplicated", networkID)).
		WithParams(map[string]interface{}{ParamNetworkID: networkID})
}

// ErrNetworkNotFoundf creates a network not found error carrying every missing id.
func ErrNetworkNotFoundf(networkIDs []string) *AppError {
	ids := append([]string{}, networkIDs...)
	msg := fmt.Sprintf("network %s could not be found", strings.Join(ids, ", "))
	if len(ids) == 0 {
		msg = "requested networks could not all be found"
	}
	return NotFound(CodeNetworkNotFound, msg).
		WithParams(map[string]interface{}{ParamNetworkIDs: ids})
}

// ErrRemoteService wraps a transport or service failure of the remote network service.
// Errors that already carry a code are returned as they are.
func ErrRemoteService(operation string, err error) *AppError {
	if appErr, ok := IsAppError(err); ok {
		return appErr
	}
	return Wrap(err, CodeRemoteService, operation+" failed", http.StatusBadGateway).
		WithParams(map[string]interface{}{ParamOperation: operation})
}

// ErrCompensationInconsistencyf reports a touched port that vanished during rollback.
func ErrCompensationInconsistencyf(portID string, cause error) *AppError {
	return Wrap(cause, CodeCompensationInconsistency,
		fmt.Sprintf("port %s disappeared while rolling back allocation", portID),
		http.StatusInternalServerError,
	).WithParams(map[string]interface{}{ParamPortID: portID})
}

// ErrServiceUnavailable reports background work that could not be scheduled.
func ErrServiceUnavailable(err error) *AppError {
	return Wrap(err, CodeServiceUnavailable, "service is shutting down or overloaded", http.StatusServiceUnavailable)
}

// ErrContractViolation reports a handler response that the API contract does not allow.
func ErrContractViolation(err error) *AppError {
	return Wrap(err, CodeContractViolation, "response does not conform to the API contract", http.StatusInternalServerError)
}
