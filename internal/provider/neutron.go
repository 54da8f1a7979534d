package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/networks"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/ports"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/subnets"
	"github.com/gophercloud/gophercloud/pagination"
	"go.uber.org/zap"

	"netbinder.io/netbinder/internal/domain"
	apperrors "netbinder.io/netbinder/internal/pkg/errors"
	"netbinder.io/netbinder/internal/pkg/logger"
)

// NeutronOptions configures the OpenStack Networking adapter.
type NeutronOptions struct {
	URL     string
	Timeout time.Duration
	Region  string

	// Keystone credentials. Ignored when NoAuth is set.
	NoAuth          bool
	AuthURL         string
	AdminUsername   string
	AdminPassword   string
	AdminTenantName string
}

// NeutronClient implements NetworkClient over the OpenStack Networking v2 API.
type NeutronClient struct {
	client *gophercloud.ServiceClient
	mapper *NeutronMapper
}

// NewNeutronClient authenticates as configured and returns a client bound to
// the networking endpoint.
func NewNeutronClient(opts NeutronOptions) (*NeutronClient, error) {
	if opts.NoAuth {
		return newNoAuthNeutronClient(opts)
	}

	provider, err := openstack.NewClient(opts.AuthURL)
	if err != nil {
		return nil, fmt.Errorf("create identity client: %w", err)
	}
	provider.HTTPClient = http.Client{Timeout: opts.Timeout}

	authOpts := gophercloud.AuthOptions{
		IdentityEndpoint: opts.AuthURL,
		Username:         opts.AdminUsername,
		Password:         opts.AdminPassword,
		TenantName:       opts.AdminTenantName,
		AllowReauth:      true,
	}
	if err := openstack.Authenticate(provider, authOpts); err != nil {
		return nil, fmt.Errorf("authenticate against %s: %w", opts.AuthURL, err)
	}

	sc, err := openstack.NewNetworkV2(provider, gophercloud.EndpointOpts{Region: opts.Region})
	if err != nil {
		return nil, fmt.Errorf("locate networking endpoint: %w", err)
	}
	// An explicit url wins over the catalog.
	if opts.URL != "" {
		sc.Endpoint = gophercloud.NormalizeURL(opts.URL)
		sc.ResourceBase = sc.Endpoint + "v2.0/"
	}

	logger.Info("Network service client ready",
		zap.String("endpoint", sc.Endpoint),
		zap.String("auth", "keystone"),
	)
	return &NeutronClient{client: sc, mapper: NewNeutronMapper()}, nil
}

func newNoAuthNeutronClient(opts NeutronOptions) (*NeutronClient, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("network url is required for noauth")
	}
	provider := &gophercloud.ProviderClient{
		HTTPClient: http.Client{Timeout: opts.Timeout},
	}
	endpoint := gophercloud.NormalizeURL(opts.URL)
	sc := &gophercloud.ServiceClient{
		ProviderClient: provider,
		Endpoint:       endpoint,
		ResourceBase:   endpoint + "v2.0/",
		Type:           "network",
	}

	logger.Info("Network service client ready",
		zap.String("endpoint", endpoint),
		zap.String("auth", "noauth"),
	)
	return &NeutronClient{client: sc, mapper: NewNeutronMapper()}, nil
}

// ListPorts lists ports matching the filter.
func (c *NeutronClient) ListPorts(ctx context.Context, filter domain.PortFilter) ([]domain.Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pages, err := ports.List(c.client, c.mapper.PortListOpts(filter)).AllPages()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", translate(err))
	}
	all, err := ports.ExtractPorts(pages)
	if err != nil {
		return nil, fmt.Errorf("extract ports: %w", err)
	}
	return c.mapper.MapPorts(all), nil
}

// ShowPort fetches one port.
func (c *NeutronClient) ShowPort(ctx context.Context, portID string) (*domain.Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := ports.Get(c.client, portID).Extract()
	if err != nil {
		return nil, fmt.Errorf("show port %s: %w", portID, translate(err))
	}
	out := c.mapper.MapPort(p)
	return &out, nil
}

// CreatePort creates a port.
func (c *NeutronClient) CreatePort(ctx context.Context, req domain.PortCreateRequest) (*domain.Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := ports.Create(c.client, c.mapper.PortCreateOpts(req)).Extract()
	if err != nil {
		return nil, fmt.Errorf("create port on network %s: %w", req.NetworkID, translate(err))
	}
	out := c.mapper.MapPort(p)
	return &out, nil
}

// UpdatePort changes the ownership fields of a port.
func (c *NeutronClient) UpdatePort(ctx context.Context, portID string, req domain.PortUpdateRequest) (*domain.Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := ports.Update(c.client, portID, c.mapper.PortUpdateOpts(req)).Extract()
	if err != nil {
		return nil, fmt.Errorf("update port %s: %w", portID, translate(err))
	}
	out := c.mapper.MapPort(p)
	return &out, nil
}

// DeletePort deletes a port.
func (c *NeutronClient) DeletePort(ctx context.Context, portID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ports.Delete(c.client, portID).ExtractErr(); err != nil {
		return fmt.Errorf("delete port %s: %w", portID, translate(err))
	}
	return nil
}

// ListNetworks lists networks matching the filter.
func (c *NeutronClient) ListNetworks(ctx context.Context, filter domain.NetworkFilter) ([]domain.Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pages, err := networks.List(c.client, networkListOpts{filter: filter}).AllPages()
	if err != nil {
		return nil, fmt.Errorf("list networks: %w", translate(err))
	}
	all, err := networks.ExtractNetworks(pages)
	if err != nil {
		return nil, fmt.Errorf("extract networks: %w", err)
	}
	return c.mapper.MapNetworks(all), nil
}

// ListSubnets lists subnets with the given ids.
func (c *NeutronClient) ListSubnets(ctx context.Context, filter domain.SubnetFilter) ([]domain.Subnet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pages, err := subnets.List(c.client, subnetListOpts{filter: filter}).AllPages()
	if err != nil {
		return nil, fmt.Errorf("list subnets: %w", translate(err))
	}
	all, err := subnets.ExtractSubnets(pages)
	if err != nil {
		return nil, fmt.Errorf("extract subnets: %w", err)
	}
	return c.mapper.MapSubnets(all), nil
}

// Ping issues the cheapest authenticated request the API offers.
func (c *NeutronClient) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := networks.List(c.client, networks.ListOpts{Limit: 1}).EachPage(func(pagination.Page) (bool, error) {
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("ping network service: %w", translate(err))
	}
	return nil
}

// translate marks remote 404, 409 and 503 answers with the matching
// apperrors sentinel and leaves everything else as is.
func translate(err error) error {
	switch statusCode(err) {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", apperrors.ErrNotFound, err)
	case http.StatusConflict:
		return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %v", apperrors.ErrServiceUnavail, err)
	}
	return err
}

// statusCode digs the HTTP status out of a gophercloud error, or returns 0.
func statusCode(err error) int {
	var (
		e404 gophercloud.ErrDefault404
		p404 *gophercloud.ErrDefault404
		e409 gophercloud.ErrDefault409
		p409 *gophercloud.ErrDefault409
		e503 gophercloud.ErrDefault503
		p503 *gophercloud.ErrDefault503
	)
	switch {
	case errors.As(err, &e404), errors.As(err, &p404):
		return http.StatusNotFound
	case errors.As(err, &e409), errors.As(err, &p409):
		return http.StatusConflict
	case errors.As(err, &e503), errors.As(err, &p503):
		return http.StatusServiceUnavailable
	}
	var unexpected gophercloud.ErrUnexpectedResponseCode
	if errors.As(err, &unexpected) {
		return unexpected.Actual
	}
	return 0
}
