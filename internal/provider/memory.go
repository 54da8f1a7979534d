package provider

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	memdb "github.com/hashicorp/go-memdb"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"netbinder.io/netbinder/internal/domain"
	apperrors "netbinder.io/netbinder/internal/pkg/errors"
	"netbinder.io/netbinder/internal/pkg/logger"
)

const (
	tablePort    = "port"
	tableNetwork = "network"
	tableSubnet  = "subnet"

	indexID       = "id"
	indexOrder    = "order"
	indexDeviceID = "device_id"
	indexNetwork  = "network_id"
)

// Rows carry a zero-padded insertion sequence so the order index iterates
// in creation order, the way the remote service lists.
type portRow struct {
	domain.Port
	Seq string
}

type networkRow struct {
	domain.Network
	Seq string
}

type subnetRow struct {
	domain.Subnet
	Seq string
}

func idIndex() *memdb.IndexSchema {
	return &memdb.IndexSchema{Name: indexID, Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}}
}

func orderIndex() *memdb.IndexSchema {
	return &memdb.IndexSchema{Name: indexOrder, Unique: true, Indexer: &memdb.StringFieldIndex{Field: "Seq"}}
}

func memorySchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tablePort: {
				Name: tablePort,
				Indexes: map[string]*memdb.IndexSchema{
					indexID:    idIndex(),
					indexOrder: orderIndex(),
					indexDeviceID: {
						Name:         indexDeviceID,
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "DeviceID"},
					},
					indexNetwork: {
						Name:    indexNetwork,
						Indexer: &memdb.StringFieldIndex{Field: "NetworkID"},
					},
				},
			},
			tableNetwork: {
				Name: tableNetwork,
				Indexes: map[string]*memdb.IndexSchema{
					indexID:    idIndex(),
					indexOrder: orderIndex(),
				},
			},
			tableSubnet: {
				Name: tableSubnet,
				Indexes: map[string]*memdb.IndexSchema{
					indexID:    idIndex(),
					indexOrder: orderIndex(),
					indexNetwork: {
						Name:    indexNetwork,
						Indexer: &memdb.StringFieldIndex{Field: "NetworkID"},
					},
				},
			},
		},
	}
}

// Failure makes a MemoryNetworkService operation fail.
type Failure struct {
	// Op is one of the Op* constants.
	Op string
	// Target is the port id (show/update/delete) or network id (create).
	// Empty matches any call.
	Target string
	// After skips this many matching calls before failing.
	After int
	// Times limits how often the failure fires. Zero means always.
	Times int
	// Err is returned; a generic remote error when nil.
	Err error
}

// Call is one recorded operation.
type Call struct {
	Op     string
	Target string
}

// Seed is the on-disk fixture format of the memory backend.
type Seed struct {
	Networks []domain.Network `yaml:"networks"`
	Subnets  []domain.Subnet  `yaml:"subnets"`
	Ports    []domain.Port    `yaml:"ports"`
}

// MemoryNetworkService implements NetworkClient on an in-process go-memdb
// database. Used by the memory backend and by tests.
type MemoryNetworkService struct {
	db  *memdb.MemDB
	seq atomic.Uint64

	mu       sync.Mutex
	failures []*armedFailure
	calls    []Call
}

type armedFailure struct {
	Failure
	seen  int
	fired int
}

// NewMemoryNetworkService creates an empty service.
func NewMemoryNetworkService() (*MemoryNetworkService, error) {
	db, err := memdb.NewMemDB(memorySchema())
	if err != nil {
		return nil, fmt.Errorf("create memdb: %w", err)
	}
	return &MemoryNetworkService{db: db}, nil
}

// LoadSeedFile reads a YAML fixture and inserts it.
func (s *MemoryNetworkService) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if err := s.Seed(seed); err != nil {
		return err
	}
	logger.Info("Memory network service seeded",
		zap.String("file", path),
		zap.Int("networks", len(seed.Networks)),
		zap.Int("subnets", len(seed.Subnets)),
		zap.Int("ports", len(seed.Ports)),
	)
	return nil
}

// Seed inserts networks, subnets and ports in order. Missing port ids and
// MAC addresses are generated.
func (s *MemoryNetworkService) Seed(seed Seed) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	for _, n := range seed.Networks {
		if n.ID == "" {
			return fmt.Errorf("seed network %q has no id", n.Name)
		}
		if err := txn.Insert(tableNetwork, &networkRow{Network: n, Seq: s.nextSeq()}); err != nil {
			return fmt.Errorf("seed network %s: %w", n.ID, err)
		}
	}
	for _, sn := range seed.Subnets {
		if _, err := netip.ParsePrefix(sn.CIDR); err != nil {
			return fmt.Errorf("seed subnet %s: %w", sn.ID, err)
		}
		sn.DNSNameservers = append([]string(nil), sn.DNSNameservers...)
		if err := txn.Insert(tableSubnet, &subnetRow{Subnet: sn, Seq: s.nextSeq()}); err != nil {
			return fmt.Errorf("seed subnet %s: %w", sn.ID, err)
		}
	}
	for _, p := range seed.Ports {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.MACAddress == "" {
			p.MACAddress = newMAC()
		}
		p.FixedIPs = append([]domain.PortFixedIP(nil), p.FixedIPs...)
		if err := txn.Insert(tablePort, &portRow{Port: p, Seq: s.nextSeq()}); err != nil {
			return fmt.Errorf("seed port %s: %w", p.ID, err)
		}
	}
	txn.Commit()
	return nil
}

// InjectFailure arms a failure. Failures are checked in the order armed.
func (s *MemoryNetworkService) InjectFailure(f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, &armedFailure{Failure: f})
}

// ClearFailures disarms every failure.
func (s *MemoryNetworkService) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = nil
}

// Calls returns the recorded operations in call order.
func (s *MemoryNetworkService) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsFor returns the recorded targets of one operation.
func (s *MemoryNetworkService) CallsFor(op string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		if c.Op == op {
			out = append(out, c.Target)
		}
	}
	return out
}

// ResetCalls forgets recorded operations.
func (s *MemoryNetworkService) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// enter records the call and returns the armed failure for it, if any.
func (s *MemoryNetworkService) enter(ctx context.Context, op, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: op, Target: target})
	for _, f := range s.failures {
		if f.Op != op || (f.Target != "" && f.Target != target) {
			continue
		}
		f.seen++
		if f.seen <= f.After {
			continue
		}
		if f.Times > 0 && f.fired >= f.Times {
			continue
		}
		f.fired++
		if f.Err != nil {
			return f.Err
		}
		return fmt.Errorf("injected %s failure for %q", op, target)
	}
	return nil
}

// ListPorts lists ports in creation order.
func (s *MemoryNetworkService) ListPorts(ctx context.Context, filter domain.PortFilter) ([]domain.Port, error) {
	if err := s.enter(ctx, OpListPorts, firstNonEmpty(filter.DeviceID, filter.FixedIPAddress)); err != nil {
		return nil, err
	}
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tablePort, indexOrder)
	if err != nil {
		return nil, err
	}
	var out []domain.Port
	for obj := it.Next(); obj != nil; obj = it.Next() {
		p := obj.(*portRow).Port
		if !matchPort(&p, filter) {
			continue
		}
		out = append(out, copyPort(p))
	}
	return out, nil
}

// ShowPort fetches one port.
func (s *MemoryNetworkService) ShowPort(ctx context.Context, portID string) (*domain.Port, error) {
	if err := s.enter(ctx, OpShowPort, portID); err != nil {
		return nil, err
	}
	txn := s.db.Txn(false)
	defer txn.Abort()

	row, err := lookupPort(txn, portID)
	if err != nil {
		return nil, err
	}
	p := copyPort(row.Port)
	return &p, nil
}

// CreatePort creates a port, allocating an address when none is requested.
func (s *MemoryNetworkService) CreatePort(ctx context.Context, req domain.PortCreateRequest) (*domain.Port, error) {
	if err := s.enter(ctx, OpCreatePort, req.NetworkID); err != nil {
		return nil, err
	}
	txn := s.db.Txn(true)
	defer txn.Abort()

	network, err := txn.First(tableNetwork, indexID, req.NetworkID)
	if err != nil {
		return nil, err
	}
	if network == nil {
		return nil, fmt.Errorf("network %s: %w", req.NetworkID, apperrors.ErrNotFound)
	}

	fixed, err := s.assignAddresses(txn, req)
	if err != nil {
		return nil, err
	}
	p := domain.Port{
		ID:           uuid.NewString(),
		NetworkID:    req.NetworkID,
		DeviceID:     req.DeviceID,
		DeviceOwner:  req.DeviceOwner,
		MACAddress:   newMAC(),
		FixedIPs:     fixed,
		AdminStateUp: req.AdminStateUp,
		TenantID:     req.TenantID,
	}
	if err := txn.Insert(tablePort, &portRow{Port: p, Seq: s.nextSeq()}); err != nil {
		return nil, err
	}
	txn.Commit()

	out := copyPort(p)
	return &out, nil
}

// UpdatePort changes ownership fields of a port.
func (s *MemoryNetworkService) UpdatePort(ctx context.Context, portID string, req domain.PortUpdateRequest) (*domain.Port, error) {
	if err := s.enter(ctx, OpUpdatePort, portID); err != nil {
		return nil, err
	}
	txn := s.db.Txn(true)
	defer txn.Abort()

	row, err := lookupPort(txn, portID)
	if err != nil {
		return nil, err
	}
	updated := &portRow{Port: copyPort(row.Port), Seq: row.Seq}
	if req.DeviceID != nil {
		updated.DeviceID = *req.DeviceID
	}
	if req.DeviceOwner != nil {
		updated.DeviceOwner = *req.DeviceOwner
	}
	if err := txn.Insert(tablePort, updated); err != nil {
		return nil, err
	}
	txn.Commit()

	out := copyPort(updated.Port)
	return &out, nil
}

// DeletePort deletes a port.
func (s *MemoryNetworkService) DeletePort(ctx context.Context, portID string) error {
	if err := s.enter(ctx, OpDeletePort, portID); err != nil {
		return err
	}
	txn := s.db.Txn(true)
	defer txn.Abort()

	row, err := lookupPort(txn, portID)
	if err != nil {
		return err
	}
	if err := txn.Delete(tablePort, row); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// ListNetworks lists networks in creation order.
func (s *MemoryNetworkService) ListNetworks(ctx context.Context, filter domain.NetworkFilter) ([]domain.Network, error) {
	if err := s.enter(ctx, OpListNetworks, strings.Join(filter.IDs, ",")); err != nil {
		return nil, err
	}
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableNetwork, indexOrder)
	if err != nil {
		return nil, err
	}
	ids := idSet(filter.IDs)
	var out []domain.Network
	for obj := it.Next(); obj != nil; obj = it.Next() {
		n := obj.(*networkRow).Network
		if filter.TenantID != "" && n.TenantID != filter.TenantID {
			continue
		}
		if filter.IDs != nil {
			if _, ok := ids[n.ID]; !ok {
				continue
			}
		}
		out = append(out, n)
	}
	return out, nil
}

// ListSubnets lists subnets with the given ids in creation order.
func (s *MemoryNetworkService) ListSubnets(ctx context.Context, filter domain.SubnetFilter) ([]domain.Subnet, error) {
	if err := s.enter(ctx, OpListSubnets, strings.Join(filter.IDs, ",")); err != nil {
		return nil, err
	}
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableSubnet, indexOrder)
	if err != nil {
		return nil, err
	}
	ids := idSet(filter.IDs)
	var out []domain.Subnet
	for obj := it.Next(); obj != nil; obj = it.Next() {
		sn := obj.(*subnetRow).Subnet
		if _, ok := ids[sn.ID]; !ok {
			continue
		}
		sn.DNSNameservers = append([]string(nil), sn.DNSNameservers...)
		out = append(out, sn)
	}
	return out, nil
}

// PortsByDevice returns the ids of ports bound to deviceID via the
// device index. Handy in tests.
func (s *MemoryNetworkService) PortsByDevice(deviceID string) []string {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tablePort, indexDeviceID, deviceID)
	if err != nil {
		return nil
	}
	var ids []string
	for obj := it.Next(); obj != nil; obj = it.Next() {
		ids = append(ids, obj.(*portRow).ID)
	}
	return ids
}

// Ping always succeeds.
func (s *MemoryNetworkService) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryNetworkService) nextSeq() string {
	return fmt.Sprintf("%020d", s.seq.Add(1))
}

// assignAddresses places requested addresses on the subnet that contains
// them, or picks the lowest free host address of the network's first subnet.
func (s *MemoryNetworkService) assignAddresses(txn *memdb.Txn, req domain.PortCreateRequest) ([]domain.PortFixedIP, error) {
	subnets, err := networkSubnets(txn, req.NetworkID)
	if err != nil {
		return nil, err
	}
	used, err := usedAddresses(txn)
	if err != nil {
		return nil, err
	}

	if len(req.FixedIPs) == 0 {
		if len(subnets) == 0 {
			return nil, nil
		}
		addr, err := nextFree(subnets[0], used)
		if err != nil {
			return nil, err
		}
		return []domain.PortFixedIP{{IPAddress: addr, SubnetID: subnets[0].ID}}, nil
	}

	out := make([]domain.PortFixedIP, 0, len(req.FixedIPs))
	for _, raw := range req.FixedIPs {
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, apperrors.ErrInvalidInputf("invalid fixed ip %q", raw)
		}
		if _, taken := used[addr]; taken {
			return nil, fmt.Errorf("fixed ip %s already allocated: %w", raw, apperrors.ErrConflict)
		}
		var subnetID string
		for _, sn := range subnets {
			if prefix, err := netip.ParsePrefix(sn.CIDR); err == nil && prefix.Masked().Contains(addr) {
				subnetID = sn.ID
				break
			}
		}
		if subnetID == "" {
			return nil, apperrors.ErrInvalidInputf("fixed ip %s is not in any subnet of network %s", raw, req.NetworkID)
		}
		used[addr] = struct{}{}
		out = append(out, domain.PortFixedIP{IPAddress: addr.String(), SubnetID: subnetID})
	}
	return out, nil
}

func networkSubnets(txn *memdb.Txn, networkID string) ([]domain.Subnet, error) {
	it, err := txn.Get(tableSubnet, indexNetwork, networkID)
	if err != nil {
		return nil, err
	}
	var rows []*subnetRow
	for obj := it.Next(); obj != nil; obj = it.Next() {
		rows = append(rows, obj.(*subnetRow))
	}
	// The network index is not ordered by creation.
	sort.Slice(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })
	out := make([]domain.Subnet, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Subnet)
	}
	return out, nil
}

func usedAddresses(txn *memdb.Txn) (map[netip.Addr]struct{}, error) {
	it, err := txn.Get(tablePort, indexID)
	if err != nil {
		return nil, err
	}
	used := make(map[netip.Addr]struct{})
	for obj := it.Next(); obj != nil; obj = it.Next() {
		for _, ip := range obj.(*portRow).FixedIPs {
			if addr, err := netip.ParseAddr(ip.IPAddress); err == nil {
				used[addr] = struct{}{}
			}
		}
	}
	return used, nil
}

var errSubnetExhausted = errors.New("subnet has no free addresses")

func nextFree(sn domain.Subnet, used map[netip.Addr]struct{}) (string, error) {
	prefix, err := netip.ParsePrefix(sn.CIDR)
	if err != nil {
		return "", fmt.Errorf("subnet %s: %w", sn.ID, err)
	}
	prefix = prefix.Masked()
	gateway, _ := netip.ParseAddr(sn.GatewayIP)

	const maxProbe = 1 << 16
	addr := prefix.Addr().Next()
	for i := 0; i < maxProbe && prefix.Contains(addr); i++ {
		if _, taken := used[addr]; !taken && addr != gateway {
			return addr.String(), nil
		}
		addr = addr.Next()
	}
	return "", fmt.Errorf("subnet %s: %w", sn.ID, errSubnetExhausted)
}

func lookupPort(txn *memdb.Txn, portID string) (*portRow, error) {
	obj, err := txn.First(tablePort, indexID, portID)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("port %s: %w", portID, apperrors.ErrNotFound)
	}
	return obj.(*portRow), nil
}

func matchPort(p *domain.Port, f domain.PortFilter) bool {
	if f.TenantID != "" && p.TenantID != f.TenantID {
		return false
	}
	if f.DeviceID != "" && p.DeviceID != f.DeviceID {
		return false
	}
	if f.NetworkID != "" && p.NetworkID != f.NetworkID {
		return false
	}
	if f.FixedIPAddress != "" {
		for _, ip := range p.FixedIPs {
			if ip.IPAddress == f.FixedIPAddress {
				return true
			}
		}
		return false
	}
	return true
}

func copyPort(p domain.Port) domain.Port {
	p.FixedIPs = append([]domain.PortFixedIP(nil), p.FixedIPs...)
	return p
}

func idSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

// newMAC returns an address in the fa:16:3e OUI used by OpenStack.
func newMAC() string {
	u := uuid.New()
	return fmt.Sprintf("fa:16:3e:%02x:%02x:%02x", u[0], u[1], u[2])
}
