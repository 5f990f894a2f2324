package znn

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/mjanderson09/znn-release/cube"
	"github.com/mjanderson09/znn-release/initializer"
	"github.com/mjanderson09/znn-release/transfer"
)

// nodeGroup is the tagged-variant representation of spec §3's three node
// group kinds. Adjacency is stored as edge-instance IDs rather than
// pointers (design note §9): a node group never holds a direct reference
// to an edge group or to another node group, only small integers the
// owning Network resolves.
type nodeGroup struct {
	name string
	kind NodeKind
	size int

	inEdges  [][]int // inEdges[port] = instance IDs delivering into this port
	outEdges [][]int // outEdges[port] = instance IDs fed by this port

	// Edge-group-level adjacency, used only for sink detection and
	// geometry propagation (both operate on whole edge groups, per
	// trivial_network.hpp's nedges/nnodes structs -- geometry has no
	// notion of individual port pairs).
	inGroups  []int
	outGroups []int

	fs []*cube.Volume // per-port forward accumulation buffer
	gs []*cube.Volume // per-port backward accumulation buffer

	received []*atomic.Int64
	sent     []*atomic.Int64

	mu []sync.Mutex // one lock per port, guarding (fs|gs, received|sent) together

	// Transfer-only.
	biases []*Bias
	fn     transfer.Function

	// geometry, set once each by the two propagation passes.
	strideSet  bool
	stride     cube.Vec3
	fovSet     bool
	fov, fsize cube.Vec3
}

func newNodeGroup(cfg NodeConfig) (*nodeGroup, error) {
	if cfg.Name == "" {
		return nil, newConfigError("node group has no name")
	}
	if cfg.Size <= 0 {
		return nil, newConfigError("node group %q: size must be positive, got %d", cfg.Name, cfg.Size)
	}

	ng := &nodeGroup{
		name:     cfg.Name,
		kind:     cfg.Type,
		size:     cfg.Size,
		inEdges:  make([][]int, cfg.Size),
		outEdges: make([][]int, cfg.Size),
		mu:       make([]sync.Mutex, cfg.Size),
	}

	switch cfg.Type {
	case NodeInput:
		// No per-port state needed.
	case NodeSum:
		ng.fs = make([]*cube.Volume, cfg.Size)
		ng.gs = make([]*cube.Volume, cfg.Size)
		ng.received = newCounters(cfg.Size)
		ng.sent = newCounters(cfg.Size)
	case NodeTransfer:
		ng.fs = make([]*cube.Volume, cfg.Size)
		ng.gs = make([]*cube.Volume, cfg.Size)
		ng.received = newCounters(cfg.Size)
		ng.sent = newCounters(cfg.Size)

		fn, ok := transfer.Byname(cfg.Transfer)
		if !ok {
			if cfg.Transfer == "" {
				fn = transfer.Identity()
			} else {
				return nil, newConfigError("node group %q: unknown transfer function %q", cfg.Name, cfg.Transfer)
			}
		}
		ng.fn = fn

		eta := 0.1
		if cfg.Eta != nil {
			eta = *cfg.Eta
		}
		momentum, weightDecay := cfg.Momentum, cfg.WeightDecay

		biasVals := make([]float64, cfg.Size)
		if cfg.Biases != nil {
			vals := UnpackDoubles(cfg.Biases)
			if len(vals) != cfg.Size {
				return nil, newConfigError("node group %q: biases length %d does not match size %d", cfg.Name, len(vals), cfg.Size)
			}
			copy(biasVals, vals)
		} else {
			init, err := resolveInitializer(cfg.Init)
			if err != nil {
				return nil, newConfigError("node group %q: %v", cfg.Name, err)
			}
			init.Fill(biasVals)
		}

		ng.biases = make([]*Bias, cfg.Size)
		for i, v := range biasVals {
			ng.biases[i] = newBias(v, eta, momentum, weightDecay)
		}
	default:
		return nil, newConfigError("node group %q: unknown type %q", cfg.Name, cfg.Type)
	}

	return ng, nil
}

func newCounters(n int) []*atomic.Int64 {
	c := make([]*atomic.Int64, n)
	for i := range c {
		c[i] = atomic.NewInt64(0)
	}
	return c
}

func resolveInitializer(name string) (initializer.Initializer, error) {
	switch name {
	case "", "zero":
		return initializer.Zero(), nil
	case "uniform":
		return initializer.Uniform(-0.5, 0.5, nil), nil
	default:
		return nil, newConfigError("unknown initializer %q", name)
	}
}

func (ng *nodeGroup) numIn(port int) int  { return len(ng.inEdges[port]) }
func (ng *nodeGroup) numOut(port int) int { return len(ng.outEdges[port]) }

func (ng *nodeGroup) attachIn(port, instanceID int) {
	ng.inEdges[port] = append(ng.inEdges[port], instanceID)
}

func (ng *nodeGroup) attachOut(port, instanceID int) {
	ng.outEdges[port] = append(ng.outEdges[port], instanceID)
}

// featuremaps exposes the current forward buffer for every port, used by
// the engine to collect results at sink node groups.
func (ng *nodeGroup) featuremaps() []*cube.Volume {
	return ng.fs
}

// forward implements spec §4.2's accumulate-then-fire-then-fan-out
// protocol. net is passed rather than stored, per the flat-ID adjacency
// model: a node group never keeps a pointer back to the engine.
func (ng *nodeGroup) forward(net *Network, port int, m *cube.Volume) error {
	if port < 0 || port >= ng.size {
		return newShapeError("node group %q: forward port %d out of range [0,%d)", ng.name, port, ng.size)
	}
	if m.Dims() != ng.fsize {
		return newShapeError("node group %q port %d: forward volume dims %v do not match propagated fsize %v", ng.name, port, m.Dims(), ng.fsize)
	}

	if ng.kind == NodeInput {
		for _, instanceID := range ng.outEdges[port] {
			if err := net.forwardEdge(instanceID, m); err != nil {
				return err
			}
		}
		return nil
	}

	ng.mu[port].Lock()
	defer ng.mu[port].Unlock()

	if ng.received[port].Load() == 0 {
		ng.fs[port] = m
	} else {
		ng.fs[port].AddInPlace(m)
	}

	expected := int64(ng.numIn(port))
	count := ng.received[port].Inc()
	if count > expected {
		return newShapeError("node group %q port %d: forward fired %d times, expected %d", ng.name, port, count, expected)
	}
	if count < expected {
		return nil
	}

	if ng.kind == NodeTransfer {
		ng.fs[port].AddScalarInPlace(ng.biases[port].B)
		ng.fs[port].Apply(ng.fn.Apply)
	}

	for _, instanceID := range ng.outEdges[port] {
		if err := net.forwardEdge(instanceID, ng.fs[port]); err != nil {
			return err
		}
	}

	ng.received[port].Store(0)
	if ng.kind == NodeSum && ng.numOut(port) > 0 {
		// A Summing node's accumulation buffer is released once it has
		// been handed off to every consumer. A Summing sink (no outgoing
		// edges) has nothing to hand off to, so its buffer is retained
		// instead -- it is the engine's only way to recover the value at
		// that sink, per §4.4's "retained forward buffer".
		ng.fs[port] = nil
	}
	return nil
}

// backward implements the symmetric protocol, including the terminal-node
// immediate-fire rule when a port has no outgoing edges.
func (ng *nodeGroup) backward(net *Network, port int, g *cube.Volume) error {
	if port < 0 || port >= ng.size {
		return newShapeError("node group %q: backward port %d out of range [0,%d)", ng.name, port, ng.size)
	}

	if ng.kind == NodeInput {
		return nil
	}

	if g.Dims() != ng.fsize {
		return newShapeError("node group %q port %d: backward volume dims %v do not match propagated fsize %v", ng.name, port, g.Dims(), ng.fsize)
	}

	ng.mu[port].Lock()
	defer ng.mu[port].Unlock()

	if ng.sent[port].Load() == 0 {
		ng.gs[port] = g
	} else {
		ng.gs[port].AddInPlace(g)
	}

	expected := int64(ng.numOut(port))
	count := ng.sent[port].Inc()

	fire := count == expected
	if expected == 0 {
		fire = true
	}
	if !fire {
		if count > expected {
			return newShapeError("node group %q port %d: backward fired %d times, expected %d", ng.name, port, count, expected)
		}
		return nil
	}

	if ng.kind == NodeTransfer {
		gsData := ng.gs[port].Data()
		fsData := ng.fs[port].Data()
		for i := range gsData {
			gsData[i] *= ng.fn.Deriv(fsData[i])
		}
		ng.biases[port].Update(ng.gs[port].Sum())
	}

	for _, instanceID := range ng.inEdges[port] {
		if err := net.backwardEdge(instanceID, ng.gs[port]); err != nil {
			return err
		}
	}

	ng.sent[port].Store(0)
	ng.gs[port] = nil
	if ng.kind == NodeTransfer {
		ng.fs[port] = nil
	}
	return nil
}
