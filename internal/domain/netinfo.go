package domain

import (
	"net/netip"
)

// IP address roles inside a SubnetModel.
const (
	IPTypeFixed   = "fixed"
	IPTypeGateway = "gateway"
	IPTypeDNS     = "dns"
)

// IP is an address tagged with its role. Version is 4 or 6, or 0 when the
// address does not parse.
type IP struct {
	Address string `json:"address"`
	Type    string `json:"type"`
	Version int    `json:"version,omitempty"`
}

// NewIP builds an IP and derives its version from the address.
func NewIP(address, ipType string) *IP {
	ip := &IP{Address: address, Type: ipType}
	if addr, err := netip.ParseAddr(address); err == nil {
		if addr.Unmap().Is4() {
			ip.Version = 4
		} else {
			ip.Version = 6
		}
	}
	return ip
}

// FixedIP is an IP of type fixed.
type FixedIP struct {
	IP
}

// NewFixedIP builds a fixed address.
func NewFixedIP(address string) *FixedIP {
	return &FixedIP{IP: *NewIP(address, IPTypeFixed)}
}

// IsInSubnet reports whether the address lies inside the subnet CIDR.
// Unparseable addresses or CIDRs are never members.
func (f *FixedIP) IsInSubnet(s *SubnetModel) bool {
	if s == nil {
		return false
	}
	prefix, err := netip.ParsePrefix(s.CIDR)
	if err != nil {
		return false
	}
	addr, err := netip.ParseAddr(f.Address)
	if err != nil {
		return false
	}
	return prefix.Masked().Contains(addr.Unmap())
}

// SubnetModel is the instance-local view of one subnet.
type SubnetModel struct {
	CIDR    string     `json:"cidr"`
	Gateway *IP        `json:"gateway,omitempty"`
	DNS     []*IP      `json:"dns"`
	IPs     []*FixedIP `json:"ips"`
}

// AddDNS appends a nameserver address.
func (s *SubnetModel) AddDNS(ip *IP) {
	s.DNS = append(s.DNS, ip)
}

// NetworkModel is the instance-local view of a network a VIF is plugged into.
type NetworkModel struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	TenantID string         `json:"tenant_id"`
	Injected bool           `json:"injected"`
	Bridge   string         `json:"bridge"`
	Subnets  []*SubnetModel `json:"subnets"`
	// Unknown marks a port whose network was not among the listed networks.
	Unknown bool `json:"unknown,omitempty"`
}

// VIF is one virtual interface of an instance, backed by a port.
type VIF struct {
	ID      string        `json:"id"`
	Address string        `json:"address"`
	Network *NetworkModel `json:"network"`
	// FixedIPs lists every fixed address of the port in port order,
	// including those outside all fetched subnets.
	FixedIPs []*FixedIP `json:"fixed_ips"`
}

// NewVIF builds a VIF. A nil fixed list becomes an empty one.
func NewVIF(id, mac string, network *NetworkModel, fixed []*FixedIP) *VIF {
	if fixed == nil {
		fixed = []*FixedIP{}
	}
	return &VIF{ID: id, Address: mac, Network: network, FixedIPs: fixed}
}

// NetworkInfo is the ordered list of VIFs of an instance.
type NetworkInfo []*VIF

// FixedIPs returns every fixed address across all VIFs.
func (n NetworkInfo) FixedIPs() []*FixedIP {
	var out []*FixedIP
	for _, vif := range n {
		out = append(out, vif.FixedIPs...)
	}
	return out
}
