package znn

import (
	"fmt"
	"strings"

	"github.com/mjanderson09/znn-release/cube"
)

// Network is the graph engine of spec §4.4: a directed graph of node
// groups and edge groups, constructed from configuration records and a
// desired output size, then driven by Forward and Backward sweeps.
type Network struct {
	nodes     []*nodeGroup
	nodeIndex map[string]int

	edgeGroups []*edgeGroup
	instances  []*edgeInstance

	sinkIDs   []int
	sourceIDs []int

	outSize cube.Vec3
}

// New constructs a Network from node and edge configuration records and
// the desired output extent, following spec §4.4's six construction
// steps in order. Construction is all-or-nothing: on any error, the
// partially built Network is discarded and never returned to the caller.
func New(nodeCfgs []NodeConfig, edgeCfgs []EdgeConfig, outSize cube.Vec3) (*Network, error) {
	if !outSize.Positive() {
		return nil, newConfigError("output size must be positive, got %v", outSize)
	}

	net := &Network{nodeIndex: map[string]int{}, outSize: outSize}

	// Step 1: instantiate node groups, tagging input-typed ones as sources.
	for _, cfg := range nodeCfgs {
		if _, exists := net.nodeIndex[cfg.Name]; exists {
			return nil, newTopologyError("duplicate node group name %q", cfg.Name)
		}
		ng, err := newNodeGroup(cfg)
		if err != nil {
			return nil, err
		}
		id := len(net.nodes)
		net.nodeIndex[cfg.Name] = id
		net.nodes = append(net.nodes, ng)
		if ng.kind == NodeInput {
			net.sourceIDs = append(net.sourceIDs, id)
		}
	}

	// Step 2: instantiate edge-group descriptors, wiring node-group-level
	// adjacency. Per-pair operator materialization is deferred to step 6.
	for _, cfg := range edgeCfgs {
		eg, err := newEdgeGroup(cfg)
		if err != nil {
			return nil, err
		}
		producerNode, ok := net.nodeIndex[eg.input]
		if !ok {
			return nil, newTopologyError("edge group %q: undefined input node group %q", eg.name, eg.input)
		}
		consumerNode, ok := net.nodeIndex[eg.output]
		if !ok {
			return nil, newTopologyError("edge group %q: undefined output node group %q", eg.name, eg.output)
		}
		eg.producerNode = producerNode
		eg.consumerNode = consumerNode

		egID := len(net.edgeGroups)
		net.edgeGroups = append(net.edgeGroups, eg)
		net.nodes[producerNode].outGroups = append(net.nodes[producerNode].outGroups, egID)
		net.nodes[consumerNode].inGroups = append(net.nodes[consumerNode].inGroups, egID)
	}

	// Step 3: identify sinks as node groups with no outgoing edge group.
	for id, ng := range net.nodes {
		if len(ng.outGroups) == 0 {
			net.sinkIDs = append(net.sinkIDs, id)
		}
	}

	// Step 4: stride propagation from every source.
	for _, id := range net.sourceIDs {
		if err := net.stridePass(id, cube.One); err != nil {
			return nil, err
		}
	}

	// Step 5: FOV propagation from every sink.
	for _, id := range net.sinkIDs {
		if err := net.fovPass(id, cube.One, outSize); err != nil {
			return nil, err
		}
	}

	// Every node group must have been reached by both passes; a node group
	// either pass missed is disconnected from every source or from every
	// sink.
	for _, ng := range net.nodes {
		if !ng.strideSet || !ng.fovSet {
			return nil, newTopologyError("node group %q is not reachable from any source/sink", ng.name)
		}
	}

	// Step 6: materialize edge-group operators using the propagated
	// input stride.
	for _, eg := range net.edgeGroups {
		producer := net.nodes[eg.producerNode]
		consumer := net.nodes[eg.consumerNode]

		instances, err := eg.materializeInstances(eg.producerNode, eg.consumerNode, producer.size, consumer.size, eg.inStride)
		if err != nil {
			return nil, err
		}

		for _, inst := range instances {
			instID := len(net.instances)
			net.instances = append(net.instances, inst)
			eg.instances = append(eg.instances, instID)
			producer.attachOut(inst.producerPort, instID)
			consumer.attachIn(inst.consumerPort, instID)
		}
	}

	return net, nil
}

// stridePass implements spec §4.4 step 4: set node's stride, propagate
// stride*edge.stride into every consumer, and fail on an inconsistent
// revisit.
func (net *Network) stridePass(nodeID int, stride cube.Vec3) error {
	ng := net.nodes[nodeID]
	if ng.strideSet {
		if ng.stride != stride {
			return newTopologyError("node group %q: inconsistent stride %v vs previously-assigned %v", ng.name, stride, ng.stride)
		}
		return nil
	}
	ng.stride = stride
	ng.strideSet = true

	for _, egID := range ng.outGroups {
		eg := net.edgeGroups[egID]
		eg.inStride = stride
		if err := net.stridePass(eg.consumerNode, stride.Mul(eg.stride)); err != nil {
			return err
		}
	}
	return nil
}

// fovPass implements spec §4.4 step 5: set node's fov/fsize, propagate
// the composed fov/fsize into every producer, and fail on an
// inconsistent revisit.
func (net *Network) fovPass(nodeID int, fov, fsize cube.Vec3) error {
	ng := net.nodes[nodeID]
	if ng.fovSet {
		if ng.fov != fov || ng.fsize != fsize {
			return newTopologyError("node group %q: inconsistent geometry (fov %v, fsize %v) vs previously-assigned (%v, %v)", ng.name, fov, fsize, ng.fov, ng.fsize)
		}
		return nil
	}
	ng.fov = fov
	ng.fsize = fsize
	ng.fovSet = true

	for _, egID := range ng.inGroups {
		eg := net.edgeGroups[egID]
		newFov := fov.ScaleAndAdd(eg.stride, eg.size)
		newFsize := eg.size.ScaleAndAdd(eg.inStride, fsize)
		eg.inFsize = newFsize
		if err := net.fovPass(eg.producerNode, newFov, newFsize); err != nil {
			return err
		}
	}
	return nil
}

// forwardEdge runs one edge instance's forward operator and delivers the
// result into its consumer node group's matching port.
func (net *Network) forwardEdge(instanceID int, m *cube.Volume) error {
	inst := net.instances[instanceID]
	out := inst.forwardValue(m)
	return net.nodes[inst.consumerNode].forward(net, inst.consumerPort, out)
}

// backwardEdge is the symmetric dispatch for backward.
func (net *Network) backwardEdge(instanceID int, g *cube.Volume) error {
	inst := net.instances[instanceID]
	out := inst.backwardValue(g)
	return net.nodes[inst.producerNode].backward(net, inst.producerPort, out)
}

// Forward injects inputs (keyed by source node group name, one volume per
// port) and returns the feature maps retained at every sink, keyed by
// sink name, once implicit propagation along the graph has completed.
func (net *Network) Forward(inputs map[string][]*cube.Volume) (map[string][]*cube.Volume, error) {
	for name, maps := range inputs {
		id, ok := net.nodeIndex[name]
		if !ok {
			return nil, newShapeError("Forward: no such node group %q", name)
		}
		ng := net.nodes[id]
		if ng.kind != NodeInput {
			return nil, newShapeError("Forward: node group %q is not an input", name)
		}
		if len(maps) != ng.size {
			return nil, newShapeError("Forward: node group %q expects %d maps, got %d", name, ng.size, len(maps))
		}
		for port, m := range maps {
			if err := ng.forward(net, port, m); err != nil {
				return nil, err
			}
		}
	}

	out := make(map[string][]*cube.Volume, len(net.sinkIDs))
	for _, id := range net.sinkIDs {
		ng := net.nodes[id]
		out[ng.name] = ng.featuremaps()
	}
	return out, nil
}

// Backward injects gradients (keyed by sink node group name, one volume
// per port) and returns a placeholder mapping with a nil entry for every
// source name, since sources never propagate a gradient back out.
func (net *Network) Backward(grads map[string][]*cube.Volume) (map[string][]*cube.Volume, error) {
	for name, maps := range grads {
		id, ok := net.nodeIndex[name]
		if !ok {
			return nil, newShapeError("Backward: no such node group %q", name)
		}
		ng := net.nodes[id]
		if len(ng.outGroups) != 0 {
			return nil, newShapeError("Backward: node group %q is not a sink", name)
		}
		if len(maps) != ng.size {
			return nil, newShapeError("Backward: node group %q expects %d maps, got %d", name, ng.size, len(maps))
		}
		for port, g := range maps {
			if err := ng.backward(net, port, g); err != nil {
				return nil, err
			}
		}
	}

	out := make(map[string][]*cube.Volume, len(net.sourceIDs))
	for _, id := range net.sourceIDs {
		out[net.nodes[id].name] = nil
	}
	return out, nil
}

// SetEta, SetMomentum, and SetWeightDecay propagate a hyperparameter to
// every owned bias and every owned filter.
func (net *Network) SetEta(v float64)         { net.eachLearnable(func(eta, mom, wd *float64) { *eta = v }) }
func (net *Network) SetMomentum(v float64)    { net.eachLearnable(func(eta, mom, wd *float64) { *mom = v }) }
func (net *Network) SetWeightDecay(v float64) { net.eachLearnable(func(eta, mom, wd *float64) { *wd = v }) }

func (net *Network) eachLearnable(f func(eta, momentum, weightDecay *float64)) {
	for _, ng := range net.nodes {
		for _, b := range ng.biases {
			f(&b.Eta, &b.Momentum, &b.WeightDecay)
		}
	}
	for _, inst := range net.instances {
		if inst.kind == EdgeConv {
			f(&inst.filter.Eta, &inst.filter.Momentum, &inst.filter.WeightDecay)
		}
	}
}

// FOV returns the propagated field-of-view of every source node group,
// keyed by name.
func (net *Network) FOV() map[string]cube.Vec3 {
	out := make(map[string]cube.Vec3, len(net.sourceIDs))
	for _, id := range net.sourceIDs {
		ng := net.nodes[id]
		out[ng.name] = ng.fov
	}
	return out
}

// DescribeGeometry renders the propagated (fov, stride, fsize) of every
// node group, one per line, for debugging -- the Go analogue of the
// original engine's std::cout dump in its own init(), as a pure string
// builder so it composes with whatever the caller logs with.
func (net *Network) DescribeGeometry() string {
	var b strings.Builder
	for _, ng := range net.nodes {
		fmt.Fprintf(&b, "%s: fov=%v stride=%v fsize=%v\n", ng.name, ng.fov, ng.stride, ng.fsize)
	}
	return b.String()
}

// Serialize returns configuration records for every node group and edge
// group, each a superset of the original construction options with
// current filter/bias values packed in, such that New(...) on the result
// reproduces this Network's forward behavior exactly.
func (net *Network) Serialize() ([]NodeConfig, []EdgeConfig) {
	nodeCfgs := make([]NodeConfig, len(net.nodes))
	for i, ng := range net.nodes {
		cfg := NodeConfig{Name: ng.name, Type: ng.kind, Size: ng.size}
		if ng.kind == NodeTransfer {
			cfg.Eta = Eta(ng.biases[0].Eta)
			cfg.Momentum = ng.biases[0].Momentum
			cfg.WeightDecay = ng.biases[0].WeightDecay
			cfg.Transfer = ng.fn.TypeString()
			vals := make([]float64, ng.size)
			for j, b := range ng.biases {
				vals[j] = b.B
			}
			cfg.Biases = PackDoubles(vals)
		}
		nodeCfgs[i] = cfg
	}

	edgeCfgs := make([]EdgeConfig, len(net.edgeGroups))
	for i, eg := range net.edgeGroups {
		cfg := EdgeConfig{
			Name:   eg.name,
			Type:   eg.kind,
			Input:  eg.input,
			Output: eg.output,
			Size:   eg.size,
			Stride: eg.stride,
		}
		if eg.kind == EdgeConv {
			n := net.nodes[eg.producerNode].size
			m := net.nodes[eg.consumerNode].size
			spatial := eg.size.Volume()
			vals := make([]float64, 0, n*m*spatial)
			for _, instID := range eg.instances {
				inst := net.instances[instID]
				vals = append(vals, inst.filter.W.Data()...)
			}
			cfg.Filters = PackDoubles(vals)
			if len(eg.instances) > 0 {
				f := net.instances[eg.instances[0]].filter
				cfg.Eta, cfg.Momentum, cfg.WeightDecay = Eta(f.Eta), f.Momentum, f.WeightDecay
			}
		}
		edgeCfgs[i] = cfg
	}

	return nodeCfgs, edgeCfgs
}
