package id

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

// NodeProvider supplies the 48-bit node address a Generator stamps on every
// TimeID. Implementations return the same node for their whole lifetime.
type NodeProvider interface {
	Node(ctx context.Context) (EUI48, error)
}

// StaticNode always returns one configured address.
type StaticNode struct {
	node EUI48
}

func NewStaticNode(node EUI48) *StaticNode {
	return &StaticNode{node: node}
}

func (s *StaticNode) Node(ctx context.Context) (EUI48, error) {
	return s.node, nil
}

// InterfaceNode uses the hardware address of a network interface: the named
// one, or the first interface that is up, not loopback and has a 6-byte
// address.
type InterfaceNode struct {
	name       string
	interfaces func() ([]net.Interface, error)

	once sync.Once
	node EUI48
	err  error
}

// NewInterfaceNode returns a provider for the named interface, or for the
// first usable one when name is empty.
func NewInterfaceNode(name string) *InterfaceNode {
	return &InterfaceNode{name: name, interfaces: net.Interfaces}
}

func (p *InterfaceNode) Node(ctx context.Context) (EUI48, error) {
	p.once.Do(func() {
		p.node, p.err = p.resolve()
	})
	return p.node, p.err
}

func (p *InterfaceNode) resolve() (EUI48, error) {
	ifaces, err := p.interfaces()
	if err != nil {
		return EUI48{}, fmt.Errorf("failed to list interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if p.name != "" {
			if iface.Name != p.name {
				continue
			}
			return EUI48FromHardwareAddr(iface.HardwareAddr)
		}
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) != 6 {
			continue
		}
		return EUI48FromHardwareAddr(iface.HardwareAddr)
	}

	name := p.name
	if name == "" {
		name = "(any)"
	}
	return EUI48{}, WithContext(ErrNotFound, map[string]interface{}{
		"interface": name,
	})
}

// RandomNode draws one random address with the multicast bit set, so it can
// never collide with a real interface address.
type RandomNode struct {
	once sync.Once
	node EUI48
	err  error
}

func NewRandomNode() *RandomNode {
	return &RandomNode{}
}

func (p *RandomNode) Node(ctx context.Context) (EUI48, error) {
	p.once.Do(func() {
		p.node, p.err = randomMulticastNode()
	})
	return p.node, p.err
}

func randomMulticastNode() (EUI48, error) {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return EUI48{}, fmt.Errorf("failed to read random node: %w", err)
	}
	b[0] |= 0x01
	return EUI48FromHardwareAddr(net.HardwareAddr(b[:]))
}

// nodeRecord is the JSON document StoredNode keeps in a Backend.
type nodeRecord struct {
	Node        EUI48     `json:"node"`
	Created     time.Time `json:"created"`
	LastStarted time.Time `json:"last_started"`
}

// StoredNode keeps a node address in a Backend so that a process keeps its
// node across restarts. On first use it takes an address from fallback and
// stores it with a create-only write; if another process wins that race, the
// stored address is used instead.
type StoredNode struct {
	backend  Backend
	key      string
	fallback NodeProvider
	logger   Logger
	metrics  Metrics

	mu   sync.Mutex
	node EUI48
	done bool
}

// NewStoredNode returns a provider reading key from backend. A nil fallback
// means NewRandomNode.
func NewStoredNode(backend Backend, key string, fallback NodeProvider, logger Logger, metrics Metrics) *StoredNode {
	if key == "" {
		key = DefaultNodeKey
	}
	if fallback == nil {
		fallback = NewRandomNode()
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}
	return &StoredNode{
		backend:  backend,
		key:      key,
		fallback: fallback,
		logger:   logger,
		metrics:  metrics,
	}
}

// Node loads or creates the stored record. Errors are not cached.
func (s *StoredNode) Node(ctx context.Context) (EUI48, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return s.node, nil
	}

	node, err := s.loadOrCreate(ctx)
	if err != nil {
		s.metrics.Increment(MetricNodeError, "source", NodeSourceStored)
		s.logger.Error("failed to resolve stored node", "key", s.key, "error", err)
		return EUI48{}, err
	}

	s.touch(ctx)

	s.node, s.done = node, true
	s.metrics.Increment(MetricNodeResolved, "source", NodeSourceStored)
	s.logger.Info("node resolved", "source", NodeSourceStored, "key", s.key, "node", node.String())
	return node, nil
}

func (s *StoredNode) loadOrCreate(ctx context.Context) (EUI48, error) {
	rec, err := s.read(ctx)
	if err == nil {
		return rec.Node, nil
	}
	if !IsNotFound(err) {
		return EUI48{}, err
	}

	node, err := s.fallback.Node(ctx)
	if err != nil {
		return EUI48{}, fmt.Errorf("fallback node provider: %w", err)
	}

	now := time.Now().UTC()
	data, err := json.Marshal(nodeRecord{Node: node, Created: now, LastStarted: now})
	if err != nil {
		return EUI48{}, fmt.Errorf("failed to encode node record: %w", err)
	}

	err = s.backend.PutIfAbsent(ctx, s.key, data)
	if err == nil {
		s.logger.Info("stored new node", "key", s.key, "node", node.String())
		return node, nil
	}
	if !IsAlreadyExists(err) {
		return EUI48{}, err
	}

	// lost the race to another process; adopt its node
	rec, err = s.read(ctx)
	if err != nil {
		return EUI48{}, err
	}
	return rec.Node, nil
}

func (s *StoredNode) read(ctx context.Context) (nodeRecord, error) {
	var rec nodeRecord
	data, err := s.backend.Get(ctx, s.key)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, WithContext(ErrInvalidFormat, map[string]interface{}{
			"key":   s.key,
			"error": err.Error(),
		})
	}
	return rec, nil
}

// touch records the start time. Losing a concurrent update is harmless.
func (s *StoredNode) touch(ctx context.Context) {
	data, etag, err := s.backend.GetWithETag(ctx, s.key)
	if err != nil {
		s.logger.Warn("failed to read node record for update", "key", s.key, "error", err)
		return
	}

	var rec nodeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return
	}
	rec.LastStarted = time.Now().UTC()

	updated, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if _, err := s.backend.PutIfMatch(ctx, s.key, updated, etag); err != nil {
		s.logger.Warn("failed to update node record", "key", s.key, "error", err)
	}
}

// StoredRecord returns the stored record's timestamps, for inspection.
func (s *StoredNode) StoredRecord(ctx context.Context) (node EUI48, created, lastStarted time.Time, err error) {
	rec, err := s.read(ctx)
	if err != nil {
		return EUI48{}, time.Time{}, time.Time{}, err
	}
	return rec.Node, rec.Created, rec.LastStarted, nil
}
