// Package znn implements a dataflow graph engine for 3-D volumetric
// feature maps: node groups that accumulate arrival-counted fan-in, edge
// groups that carry sparse convolution, max-pooling, or identity
// operators between them, and a two-pass geometry propagator that derives
// field-of-view, stride, and feature-map size across the whole graph from
// the desired output size alone.
//
// Building a network
//
// A Network is built from two slices of configuration records and a
// desired output extent:
//
//	net, err := znn.New(nodeConfigs, edgeConfigs, outSize)
//	if err != nil {
//		return err
//	}
//
// Node configs come in three kinds -- NodeInput, NodeSum, and
// NodeTransfer -- and edge configs in three kinds -- EdgeDummy,
// EdgeMaxPool, and EdgeConv. Construction wires the topology, runs stride
// and field-of-view propagation from the graph's sources and sinks, and
// only then materializes the per-pair operators (a convolution edge's
// input stride depends on its producer's propagated stride).
//
// Running a sweep
//
// Both sweeps take and return maps keyed by node group name:
//
//	outputs, err := net.Forward(map[string][]*cube.Volume{"in": {x}})
//	_, err = net.Backward(map[string][]*cube.Volume{"out": {g}})
//
// Forward injects each map into its named input port and returns the
// feature maps retained at every sink. Backward is symmetric; sources
// never propagate a gradient back out, so its return value is always a
// placeholder map holding a nil entry for each source.
package znn

import "github.com/pkg/errors"

// ConfigError reports a malformed configuration record detected during
// construction: a missing required key, an unrecognized type tag, or a
// zero cardinality.
type ConfigError struct{ msg string }

func (e *ConfigError) Error() string { return e.msg }

func newConfigError(format string, args ...interface{}) error {
	return &ConfigError{errors.Errorf(format, args...).Error()}
}

// TopologyError reports a structural fault in the graph: a duplicate
// name, a reference to an undefined node group, or an inconsistency
// discovered during geometry propagation.
type TopologyError struct{ msg string }

func (e *TopologyError) Error() string { return e.msg }

func newTopologyError(format string, args ...interface{}) error {
	return &TopologyError{errors.Errorf(format, args...).Error()}
}

// ShapeError reports a runtime call whose volumes disagree with the
// propagated geometry -- always a programming fault in the caller, since
// the graph engine guarantees geometry once construction succeeds.
type ShapeError struct{ msg string }

func (e *ShapeError) Error() string { return e.msg }

func newShapeError(format string, args ...interface{}) error {
	return &ShapeError{errors.Errorf(format, args...).Error()}
}
