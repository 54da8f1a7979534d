package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New("PORT_NOT_FOUND", "port missing", http.StatusNotFound),
			want: "PORT_NOT_FOUND: port missing",
		},
		{
			name: "with wrapped error",
			err:  Wrap(fmt.Errorf("connection refused"), "REMOTE_SERVICE_ERROR", "list ports failed", http.StatusBadGateway),
			want: "REMOTE_SERVICE_ERROR: list ports failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("show port: %w", ErrNotFound)
	appErr := ErrRemoteService("show port", inner)

	if !errors.Is(appErr, ErrNotFound) {
		t.Error("errors.Is should match ErrNotFound through the AppError")
	}
	if !IsNotFound(appErr) {
		t.Error("IsNotFound should be true")
	}
}

func TestErrRemoteService_KeepsExistingCode(t *testing.T) {
	inner := fmt.Errorf("create port: %w", ErrInvalidInputf("bad ip"))
	appErr := ErrRemoteService("create port", inner)

	if appErr.Code != CodeInvalidInput {
		t.Errorf("Code = %q, want %q", appErr.Code, CodeInvalidInput)
	}
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("validate: %w", ErrPortInUsef("p-1"))

	if !HasCode(wrapped, CodePortInUse) {
		t.Fatal("HasCode should see through fmt wrapping")
	}
	if HasCode(wrapped, CodePortNotFound) {
		t.Fatal("HasCode matched the wrong code")
	}
	if HasCode(fmt.Errorf("plain"), CodePortInUse) {
		t.Fatal("HasCode matched a non-AppError")
	}
}

func TestErrNetworkNotFoundf_CarriesIDs(t *testing.T) {
	ids := []string{"net-a", "net-b"}
	err := ErrNetworkNotFoundf(ids)
	ids[0] = "mutated"

	got := err.StringsParam(ParamNetworkIDs)
	if len(got) != 2 || got[0] != "net-a" || got[1] != "net-b" {
		t.Fatalf("network_ids = %#v", got)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("HTTPStatus = %d, want 404", err.HTTPStatus)
	}
	if err.Message != "network net-a, net-b could not be found" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestErrNetworkNotFoundf_NoMissingIDs(t *testing.T) {
	err := ErrNetworkNotFoundf(nil)

	got := err.StringsParam(ParamNetworkIDs)
	if got == nil || len(got) != 0 {
		t.Fatalf("network_ids = %#v, want empty list", got)
	}
	if err.Message != "requested networks could not all be found" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"InvalidInput", ErrInvalidInputf("empty project id for instance %s", "vm"), CodeInvalidInput, http.StatusBadRequest},
		{"PortNotFound", ErrPortNotFoundf("p"), CodePortNotFound, http.StatusNotFound},
		{"PortInUse", ErrPortInUsef("p"), CodePortInUse, http.StatusConflict},
		{"NetworkDuplicated", ErrNetworkDuplicatedf("n"), CodeNetworkDuplicated, http.StatusBadRequest},
		{"RemoteService", ErrRemoteService("list networks", fmt.Errorf("boom")), CodeRemoteService, http.StatusBadGateway},
		{"CompensationInconsistency", ErrCompensationInconsistencyf("p", ErrNotFound), CodeCompensationInconsistency, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.wantCode)
			}
			if tt.err.HTTPStatus != tt.wantStatus {
				t.Errorf("HTTPStatus = %d, want %d", tt.err.HTTPStatus, tt.wantStatus)
			}
		})
	}
}
