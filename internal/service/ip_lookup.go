package service

import (
	"context"
	"strings"

	"netbinder.io/netbinder/internal/domain"
	apperrors "netbinder.io/netbinder/internal/pkg/errors"
	"netbinder.io/netbinder/internal/provider"
)

// IPLookup maps a fixed address to the instances whose ports hold it.
type IPLookup struct {
	client provider.NetworkClient
}

// NewIPLookup creates a new IPLookup.
func NewIPLookup(client provider.NetworkClient) *IPLookup {
	return &IPLookup{client: client}
}

// FindInstancesByIP returns one InstanceRef per bound port carrying the
// address, in port order. Unbound ports are skipped.
func (l *IPLookup) FindInstancesByIP(ctx context.Context, filter domain.IPFilter) ([]domain.InstanceRef, error) {
	ip := NormalizeIPPattern(filter.IP)
	if ip == "" {
		return nil, apperrors.ErrInvalidInputf("ip filter %q is empty", filter.IP)
	}

	ports, err := l.client.ListPorts(ctx, domain.PortFilter{FixedIPAddress: ip})
	if err != nil {
		return nil, apperrors.ErrRemoteService(provider.OpListPorts, err)
	}

	refs := make([]domain.InstanceRef, 0, len(ports))
	for _, p := range ports {
		if p.DeviceID == "" {
			continue
		}
		refs = append(refs, domain.InstanceRef{InstanceUUID: p.DeviceID})
	}
	return refs, nil
}

// NormalizeIPPattern turns an anchored pattern such as `^10\.0\.0\.5$` into
// a literal address. Only one leading ^, one trailing $ and escaped dots are
// understood; nothing is evaluated as a regular expression.
func NormalizeIPPattern(pattern string) string {
	ip := strings.TrimPrefix(pattern, "^")
	ip = strings.TrimSuffix(ip, "$")
	return strings.ReplaceAll(ip, `\.`, ".")
}
