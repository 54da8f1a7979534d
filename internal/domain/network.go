// Package domain provides the records exchanged with the remote network
// service and the instance-local NetworkInfo model built from them.
//
// Provider adapters return these types, never SDK types.
//
// Import Path: netbinder.io/netbinder/internal/domain
package domain

// Instance identifies a compute instance. Read-only input to allocation.
type Instance struct {
	UUID        string `json:"uuid"`
	ProjectID   string `json:"project_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// Port is a virtual network attachment owned by the remote service.
// A port belongs to an instance iff DeviceID equals the instance UUID.
type Port struct {
	ID           string        `json:"id" yaml:"id"`
	NetworkID    string        `json:"network_id" yaml:"network_id"`
	DeviceID     string        `json:"device_id" yaml:"device_id"`
	DeviceOwner  string        `json:"device_owner" yaml:"device_owner"`
	MACAddress   string        `json:"mac_address" yaml:"mac_address"`
	FixedIPs     []PortFixedIP `json:"fixed_ips" yaml:"fixed_ips"`
	AdminStateUp bool          `json:"admin_state_up" yaml:"admin_state_up"`
	TenantID     string        `json:"tenant_id" yaml:"tenant_id"`
}

// PortFixedIP is one fixed_ips entry of a port.
type PortFixedIP struct {
	IPAddress string `json:"ip_address" yaml:"ip_address"`
	SubnetID  string `json:"subnet_id" yaml:"subnet_id"`
}

// SubnetIDs returns the distinct subnet ids referenced by the port, in
// fixed_ips order.
func (p *Port) SubnetIDs() []string {
	seen := make(map[string]struct{}, len(p.FixedIPs))
	ids := make([]string, 0, len(p.FixedIPs))
	for _, ip := range p.FixedIPs {
		if ip.SubnetID == "" {
			continue
		}
		if _, ok := seen[ip.SubnetID]; ok {
			continue
		}
		seen[ip.SubnetID] = struct{}{}
		ids = append(ids, ip.SubnetID)
	}
	return ids
}

// Network is a remote network record.
type Network struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	TenantID string `json:"tenant_id" yaml:"tenant_id"`
}

// Subnet is a remote subnet record.
type Subnet struct {
	ID             string   `json:"id" yaml:"id"`
	NetworkID      string   `json:"network_id" yaml:"network_id"`
	CIDR           string   `json:"cidr" yaml:"cidr"`
	GatewayIP      string   `json:"gateway_ip" yaml:"gateway_ip"`
	DNSNameservers []string `json:"dns_nameservers" yaml:"dns_nameservers"`
}

// RequestedNetwork is one (network, fixed ip, port) triple supplied by the
// caller. Empty strings mean "not given".
type RequestedNetwork struct {
	NetworkID string `json:"network_id,omitempty"`
	FixedIP   string `json:"fixed_ip,omitempty"`
	PortID    string `json:"port_id,omitempty"`
}

// PortFilter selects ports by exact match. Empty fields are not filtered on.
type PortFilter struct {
	TenantID       string
	DeviceID       string
	NetworkID      string
	FixedIPAddress string
}

// NetworkFilter selects networks. A nil IDs slice means no id filter.
type NetworkFilter struct {
	TenantID string
	IDs      []string
}

// SubnetFilter selects subnets by id set.
type SubnetFilter struct {
	IDs []string
}

// PortCreateRequest is the body of a port creation.
type PortCreateRequest struct {
	NetworkID    string
	DeviceID     string
	DeviceOwner  string
	AdminStateUp bool
	TenantID     string
	// FixedIPs requests specific addresses; subnet is chosen by the service.
	FixedIPs []string
}

// PortUpdateRequest changes ownership fields of a port. Nil fields are left
// untouched; an empty DeviceID detaches the port.
type PortUpdateRequest struct {
	DeviceID    *string
	DeviceOwner *string
}

// InstanceRef is one result of an IP lookup.
type InstanceRef struct {
	InstanceUUID string `json:"instance_uuid"`
}

// IPFilter is the lookup filter; IP is an anchored pattern such as
// `^10\.0\.0\.5$`.
type IPFilter struct {
	IP string `json:"ip"`
}
