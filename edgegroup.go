package znn

import (
	"github.com/mjanderson09/znn-release/cube"
	"github.com/mjanderson09/znn-release/kernel"
)

// edgeGroup is the tagged-variant descriptor for spec §3's three edge
// group kinds. It owns the names used during construction and the list
// of edge-instance IDs materialized from it; the instances themselves
// hold the actual per-pair operator state.
type edgeGroup struct {
	name   string
	kind   EdgeKind
	input  string
	output string

	size   cube.Vec3 // filter/pool window size; (1,1,1) for dummy
	stride cube.Vec3 // edge's own stride factor; (1,1,1) for dummy

	eta, momentum, weightDecay float64
	initName                   string
	filterBytes                []byte

	instances []int // instance IDs, assigned once the edge group is materialized

	// Adjacency and geometry, filled in during Network construction.
	producerNode, consumerNode int
	inStride                   cube.Vec3 // propagated: producer's stride
	inFsize                    cube.Vec3 // propagated: producer's fsize
}

func newEdgeGroup(cfg EdgeConfig) (*edgeGroup, error) {
	if cfg.Name == "" {
		return nil, newConfigError("edge group has no name")
	}
	if cfg.Input == "" || cfg.Output == "" {
		return nil, newConfigError("edge group %q: input and output must both be set", cfg.Name)
	}

	eg := &edgeGroup{
		name:   cfg.Name,
		kind:   cfg.Type,
		input:  cfg.Input,
		output: cfg.Output,
	}

	switch cfg.Type {
	case EdgeDummy:
		eg.size = cube.One
		eg.stride = cube.One
	case EdgeMaxPool:
		if !cfg.Size.Positive() {
			return nil, newConfigError("edge group %q: max_filter requires a positive size", cfg.Name)
		}
		eg.size = cfg.Size
		eg.stride = cfg.Stride
		if !eg.stride.Positive() {
			eg.stride = cube.One
		}
	case EdgeConv:
		if !cfg.Size.Positive() {
			return nil, newConfigError("edge group %q: conv requires a positive size", cfg.Name)
		}
		eg.size = cfg.Size
		eg.stride = cfg.Stride
		if !eg.stride.Positive() {
			eg.stride = cube.One
		}
		eg.eta = 0.1
		if cfg.Eta != nil {
			eg.eta = *cfg.Eta
		}
		eg.momentum, eg.weightDecay = cfg.Momentum, cfg.WeightDecay
		eg.initName = cfg.Init
		eg.filterBytes = cfg.Filters
	default:
		return nil, newConfigError("edge group %q: unknown type %q", cfg.Name, cfg.Type)
	}

	return eg, nil
}

// edgeInstance holds the per-pair operator state for one connected port
// pair. It references its producer and consumer by (node ID, port) alone,
// never by owning handle, per design note §9.
type edgeInstance struct {
	kind EdgeKind

	producerNode, producerPort int
	consumerNode, consumerPort int

	// max_filter.
	poolSize, poolStride cube.Vec3
	lastInSize           cube.Vec3
	lastIndices          *kernel.Indices

	// conv.
	filter     *Filter
	convStride cube.Vec3
	lastInput  *cube.Volume
}

// materializeInstances builds one edgeInstance per connected port pair, in
// producer-index-major, consumer-index-minor order for conv (matching the
// packed-filter byte layout §6 fixes), or one-to-one for dummy/max_filter.
// inStride is the producer node group's already-propagated stride, used as
// the sparse-convolution/pool stride per spec §4.4 step 6.
func (eg *edgeGroup) materializeInstances(producerNode, consumerNode int, n, m int, inStride cube.Vec3) ([]*edgeInstance, error) {
	switch eg.kind {
	case EdgeDummy:
		if n != m {
			return nil, newTopologyError("edge group %q: dummy requires equal cardinality, got %d and %d", eg.name, n, m)
		}
		instances := make([]*edgeInstance, n)
		for i := 0; i < n; i++ {
			instances[i] = &edgeInstance{
				kind:          EdgeDummy,
				producerNode:  producerNode,
				producerPort:  i,
				consumerNode:  consumerNode,
				consumerPort:  i,
			}
		}
		return instances, nil

	case EdgeMaxPool:
		if n != m {
			return nil, newTopologyError("edge group %q: max_filter requires equal cardinality, got %d and %d", eg.name, n, m)
		}
		instances := make([]*edgeInstance, n)
		for i := 0; i < n; i++ {
			instances[i] = &edgeInstance{
				kind:         EdgeMaxPool,
				producerNode: producerNode,
				producerPort: i,
				consumerNode: consumerNode,
				consumerPort: i,
				poolSize:     eg.size,
				poolStride:   inStride,
			}
		}
		return instances, nil

	case EdgeConv:
		init, err := resolveInitializer(eg.initName)
		if err != nil {
			return nil, newConfigError("edge group %q: %v", eg.name, err)
		}

		spatial := eg.size.Volume()
		var allVals []float64
		if eg.filterBytes != nil {
			allVals = UnpackDoubles(eg.filterBytes)
			if len(allVals) != n*m*spatial {
				return nil, newConfigError("edge group %q: filters length %d does not match n*m*spatial = %d", eg.name, len(allVals), n*m*spatial)
			}
		}

		instances := make([]*edgeInstance, 0, n*m)
		for i := 0; i < n; i++ {
			for j := 0; j < m; j++ {
				w := cube.New(eg.size)
				if allVals != nil {
					offset := (i*m + j) * spatial
					copy(w.Data(), allVals[offset:offset+spatial])
				} else {
					buf := make([]float64, spatial)
					init.Fill(buf)
					copy(w.Data(), buf)
				}

				instances = append(instances, &edgeInstance{
					kind:         EdgeConv,
					producerNode: producerNode,
					producerPort: i,
					consumerNode: consumerNode,
					consumerPort: j,
					filter:       newFilter(w, eg.eta, eg.momentum, eg.weightDecay),
					convStride:   inStride,
				})
			}
		}
		return instances, nil

	default:
		return nil, newConfigError("edge group %q: unknown type %q", eg.name, eg.kind)
	}
}

// forwardValue runs the instance's forward operator, independent of the
// Network so the numeric behavior is unit-testable without constructing a
// whole graph.
func (inst *edgeInstance) forwardValue(m *cube.Volume) *cube.Volume {
	switch inst.kind {
	case EdgeDummy:
		return m.Clone()
	case EdgeMaxPool:
		y, idx := kernel.PoolForward(m, inst.poolSize, inst.poolStride)
		inst.lastInSize = m.Dims()
		inst.lastIndices = idx
		return y
	case EdgeConv:
		inst.lastInput = m
		return kernel.ConvSparse(m, inst.filter.W, inst.convStride)
	default:
		panic("edgeInstance: unknown kind")
	}
}

// backwardValue runs the instance's backward operator and, for conv,
// updates the filter's weights before returning dx -- per spec §4.3's
// fixed contract (resolved from Open Question (b) using the pre-update W
// for both dW and dx).
func (inst *edgeInstance) backwardValue(g *cube.Volume) *cube.Volume {
	switch inst.kind {
	case EdgeDummy:
		return g.Clone()
	case EdgeMaxPool:
		if g.Dims() != inst.lastIndices.Dims {
			panic(newShapeError("max_filter backward: gradient dims %v do not match pooled output dims %v", g.Dims(), inst.lastIndices.Dims))
		}
		return kernel.PoolBackward(inst.lastInSize, g, inst.lastIndices)
	case EdgeConv:
		dW := kernel.ConvSparseFlipped(inst.lastInput, g, inst.convStride)
		dx := kernel.ConvSparseInverse(g, inst.filter.W, inst.convStride)
		inst.filter.Update(dW)
		return dx
	default:
		panic("edgeInstance: unknown kind")
	}
}
