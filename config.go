package znn

import (
	"encoding/binary"
	"math"

	"github.com/mjanderson09/znn-release/cube"
)

// NodeKind tags the three node-group variants a NodeConfig may describe.
type NodeKind string

const (
	NodeInput    NodeKind = "input"
	NodeSum      NodeKind = "sum"
	NodeTransfer NodeKind = "transfer"
)

// NodeConfig is the per-node-group configuration record of §6: a unique
// name, a type tag, a port count, and variant-specific keys for Transfer.
type NodeConfig struct {
	Name string
	Type NodeKind
	Size int

	// Transfer-only fields. Eta is a pointer so that "not specified" (nil,
	// defaults to 0.1 per §6) is distinguishable from an explicit eta=0;
	// a plain float64 can't tell those apart since both are the zero value.
	Eta         *float64
	Momentum    float64
	WeightDecay float64
	Transfer    string // name recognized by transfer.Byname
	Init        string // name recognized by resolveInitializer
	Biases      []byte // packed doubles of length Size; nil means use Init
}

// EdgeKind tags the three edge-group variants an EdgeConfig may describe.
type EdgeKind string

const (
	EdgeDummy   EdgeKind = "dummy"
	EdgeMaxPool EdgeKind = "max_filter"
	EdgeConv    EdgeKind = "conv"
)

// EdgeConfig is the per-edge-group configuration record of §6.
type EdgeConfig struct {
	Name   string
	Type   EdgeKind
	Input  string // producer node group name
	Output string // consumer node group name

	// max_filter and conv.
	Size   cube.Vec3
	Stride cube.Vec3 // edge's own stride; defaults to (1,1,1) if zero

	// conv-only. Eta is a pointer for the same reason as NodeConfig.Eta:
	// nil means "not specified, default to 0.1", distinct from eta=0.
	Eta         *float64
	Momentum    float64
	WeightDecay float64
	Init        string
	Filters     []byte // packed doubles, n*m*prod(Size) long, port-pair-major
}

// Eta wraps v as the pointer NodeConfig.Eta and EdgeConfig.Eta expect, for
// callers that want to pin an explicit learning rate (including 0).
func Eta(v float64) *float64 { return &v }

// PackDoubles encodes vals as contiguous little-endian IEEE-754 doubles,
// the persisted layout §6 fixes for filters and biases.
func PackDoubles(vals []float64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// UnpackDoubles is the inverse of PackDoubles; len(data) must be a
// multiple of 8.
func UnpackDoubles(data []byte) []float64 {
	n := len(data) / 8
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint64(data[i*8:])
		vals[i] = math.Float64frombits(bits)
	}
	return vals
}
