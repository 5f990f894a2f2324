// Package cube provides the volumetric primitive the rest of this module
// builds on: a 3-D array of float64 with allocation, indexed access,
// in-place elementwise addition, and summation.
package cube

import "github.com/pkg/errors"

// Vec3 is a 3-vector of ints, used for extents, lattice points, and
// strides alike. The ordering is (x, y, z) throughout, with x fastest
// varying in the flat layout Volume uses.
type Vec3 struct {
	X, Y, Z int
}

func NewVec3(x, y, z int) Vec3 { return Vec3{x, y, z} }

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }

// Mul is elementwise (lattice-spacing composition), not a dot product.
func (a Vec3) Mul(b Vec3) Vec3 { return Vec3{a.X * b.X, a.Y * b.Y, a.Z * b.Z} }

// ScaleAndAdd computes (a-1)*s + c componentwise, the shape used repeatedly
// by the geometry passes.
func (a Vec3) ScaleAndAdd(s Vec3, c Vec3) Vec3 {
	return Vec3{
		(a.X-1)*s.X + c.X,
		(a.Y-1)*s.Y + c.Y,
		(a.Z-1)*s.Z + c.Z,
	}
}

func (a Vec3) Positive() bool { return a.X > 0 && a.Y > 0 && a.Z > 0 }

func (a Vec3) Volume() int { return a.X * a.Y * a.Z }

// One is the identity stride/FOV vector.
var One = Vec3{1, 1, 1}

// Volume is a dense 3-D array of float64, stored flat with x fastest
// varying, then y, then z -- the same convention as
// badstudent/utils.MultiDim uses for its own flat index, generalized to
// exactly three dimensions.
type Volume struct {
	dims Vec3
	data []float64
}

// New allocates a zeroed Volume with the given extents.
func New(dims Vec3) *Volume {
	if !dims.Positive() {
		panic(errors.Errorf("cube: non-positive extents %v", dims))
	}
	return &Volume{dims: dims, data: make([]float64, dims.Volume())}
}

// NewFromData wraps an existing flat slice; len(data) must equal dims.Volume().
func NewFromData(dims Vec3, data []float64) *Volume {
	if len(data) != dims.Volume() {
		panic(errors.Errorf("cube: data length %d does not match extents %v", len(data), dims))
	}
	return &Volume{dims: dims, data: data}
}

func (v *Volume) Dims() Vec3 { return v.dims }

// Data exposes the underlying flat storage. Callers that mutate it directly
// are responsible for keeping within the promises documented on the
// function that handed out the Volume.
func (v *Volume) Data() []float64 { return v.data }

func (v *Volume) index(p Vec3) int {
	return p.X + p.Y*v.dims.X + p.Z*v.dims.X*v.dims.Y
}

// FlatIndex exposes the flat index corresponding to lattice point p, for
// callers (kernels) that need to record or reuse it directly.
func (v *Volume) FlatIndex(p Vec3) int { return v.index(p) }

// AddAt accumulates a scalar contribution at lattice point p.
func (v *Volume) AddAt(p Vec3, delta float64) {
	v.data[v.index(p)] += delta
}

// At returns the value at lattice point p.
func (v *Volume) At(p Vec3) float64 {
	return v.data[v.index(p)]
}

// Set stores val at lattice point p.
func (v *Volume) Set(p Vec3, val float64) {
	v.data[v.index(p)] = val
}

// AtIndex/SetIndex operate directly on the flat index, used by kernels that
// already have a linear cursor rather than a 3-D point.
func (v *Volume) AtIndex(i int) float64     { return v.data[i] }
func (v *Volume) SetIndex(i int, val float64) { v.data[i] = val }

// Point converts a flat index back to a lattice point, inverse of index.
func (v *Volume) Point(i int) Vec3 {
	x := i % v.dims.X
	i /= v.dims.X
	y := i % v.dims.Y
	z := i / v.dims.Y
	return Vec3{x, y, z}
}

// AddInPlace adds other into v elementwise; both must share extents.
func (v *Volume) AddInPlace(other *Volume) {
	if v.dims != other.dims {
		panic(errors.Errorf("cube: AddInPlace extent mismatch %v != %v", v.dims, other.dims))
	}
	for i, x := range other.data {
		v.data[i] += x
	}
}

// AddAtIndex accumulates a single scalar contribution into the cell at flat
// index i -- the scatter-add primitive used by the transpose convolution
// and pool-backward kernels.
func (v *Volume) AddAtIndex(i int, delta float64) {
	v.data[i] += delta
}

// Sum returns the sum of every element.
func (v *Volume) Sum() float64 {
	var s float64
	for _, x := range v.data {
		s += x
	}
	return s
}

// Clone returns a deep copy.
func (v *Volume) Clone() *Volume {
	data := make([]float64, len(v.data))
	copy(data, v.data)
	return &Volume{dims: v.dims, data: data}
}

// Zero resets every element to 0 in place.
func (v *Volume) Zero() {
	for i := range v.data {
		v.data[i] = 0
	}
}

// AddScalarInPlace adds a constant to every element, used by transfer nodes
// to apply a per-port bias before the activation function.
func (v *Volume) AddScalarInPlace(c float64) {
	for i := range v.data {
		v.data[i] += c
	}
}

// Apply replaces every element x with f(x), in place.
func (v *Volume) Apply(f func(float64) float64) {
	for i, x := range v.data {
		v.data[i] = f(x)
	}
}

// MulElemInPlace multiplies v by other elementwise in place; both must
// share extents. Used for the derivative-gating step of a Transfer node's
// backward pass.
func (v *Volume) MulElemInPlace(other *Volume) {
	if v.dims != other.dims {
		panic(errors.Errorf("cube: MulElemInPlace extent mismatch %v != %v", v.dims, other.dims))
	}
	for i, x := range other.data {
		v.data[i] *= x
	}
}

// Dot computes the inner product of two equally-shaped volumes.
func Dot(a, b *Volume) float64 {
	if a.dims != b.dims {
		panic(errors.Errorf("cube: Dot extent mismatch %v != %v", a.dims, b.dims))
	}
	var s float64
	for i := range a.data {
		s += a.data[i] * b.data[i]
	}
	return s
}
