package provider

import (
	"net/url"

	"github.com/gophercloud/gophercloud"

	"netbinder.io/netbinder/internal/domain"
)

// networkListOpts builds a networks query with a repeated id parameter.
// networks.ListOpts only carries a single id.
type networkListOpts struct {
	filter domain.NetworkFilter
}

type tenantQuery struct {
	TenantID string `q:"tenant_id"`
}

// ToNetworkListQuery implements networks.ListOptsBuilder.
func (o networkListOpts) ToNetworkListQuery() (string, error) {
	u, err := gophercloud.BuildQueryString(tenantQuery{TenantID: o.filter.TenantID})
	if err != nil {
		return "", err
	}
	if o.filter.IDs == nil {
		return u.String(), nil
	}
	return withIDs(u, o.filter.IDs), nil
}

// subnetListOpts builds a subnets query with a repeated id parameter.
type subnetListOpts struct {
	filter domain.SubnetFilter
}

// ToSubnetListQuery implements subnets.ListOptsBuilder.
func (o subnetListOpts) ToSubnetListQuery() (string, error) {
	return withIDs(&url.URL{}, o.filter.IDs), nil
}

func withIDs(u *url.URL, ids []string) string {
	q := u.Query()
	if len(ids) == 0 {
		// An explicit empty id set must match nothing, not everything.
		q.Set("id", "")
	}
	for _, id := range ids {
		q.Add("id", id)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
