package kernel

import (
	"math"
	"testing"

	"github.com/mjanderson09/znn-release/cube"
)

// fill writes deterministic values into v via f(flatIndex).
func fill(v *cube.Volume, f func(int) float64) {
	for i := 0; i < v.Dims().Volume(); i++ {
		v.SetIndex(i, f(i))
	}
}

func TestConvSparseAllOnesSumsToVolume(t *testing.T) {
	// size(x)=3x3x3, size(W)=3x3x3, s=1,1,1 -> single output point equal to
	// the sum of all 27 products of 1*1.
	x := cube.New(cube.Vec3{X: 3, Y: 3, Z: 3})
	w := cube.New(cube.Vec3{X: 3, Y: 3, Z: 3})
	fill(x, func(int) float64 { return 1 })
	fill(w, func(int) float64 { return 1 })

	y := ConvSparse(x, w, cube.One)

	if y.Dims() != (cube.Vec3{X: 1, Y: 1, Z: 1}) {
		t.Fatalf("expected output dims (1,1,1), got %v", y.Dims())
	}
	got := y.At(cube.Vec3{})
	if got != 27 {
		t.Errorf("expected 27, got %v", got)
	}
}

func TestConvSparseStridedTaps(t *testing.T) {
	// size(x)=5x1x1, size(W)=2x1x1, s=(2,1,1):
	// yd = (5,1,1) - (1,0,0)*(2,1,1) = (3,1,1)
	// y[0] = w[0]*x[0] + w[1]*x[2]
	// y[1] = w[0]*x[1] + w[1]*x[3]
	// y[2] = w[0]*x[2] + w[1]*x[4]
	x := cube.New(cube.Vec3{X: 5, Y: 1, Z: 1})
	fill(x, func(i int) float64 { return float64(i + 1) }) // 1,2,3,4,5
	w := cube.New(cube.Vec3{X: 2, Y: 1, Z: 1})
	w.SetIndex(0, 10)
	w.SetIndex(1, 1)

	s := cube.Vec3{X: 2, Y: 1, Z: 1}
	y := ConvSparse(x, w, s)

	want := []float64{1*10 + 3*1, 2*10 + 4*1, 3*10 + 5*1}
	for i, wv := range want {
		got := y.At(cube.Vec3{X: i})
		if got != wv {
			t.Errorf("y[%d]: expected %v, got %v", i, wv, got)
		}
	}
}

func TestAdjointIdentity(t *testing.T) {
	xd := cube.Vec3{X: 4, Y: 3, Z: 3}
	wd := cube.Vec3{X: 2, Y: 2, Z: 2}
	s := cube.Vec3{X: 1, Y: 1, Z: 1}

	x := cube.New(xd)
	fill(x, func(i int) float64 { return float64(i)*0.37 - 1.1 })
	w := cube.New(wd)
	fill(w, func(i int) float64 { return float64(i)*0.11 + 0.05 })

	y := ConvSparse(x, w, s)

	g := cube.New(y.Dims())
	fill(g, func(i int) float64 { return float64(i)*0.23 - 0.4 })

	lhs := cube.Dot(y, g)

	dx := ConvSparseInverse(g, w, s)
	rhs1 := cube.Dot(x, dx)

	dW := ConvSparseFlipped(x, g, s)
	rhs2 := cube.Dot(w, dW)

	if !closeRel(lhs, rhs1, 1e-9) {
		t.Errorf("<conv(x,W,s),g>=%v != <x,conv_inverse(g,W,s)>=%v", lhs, rhs1)
	}
	if !closeRel(lhs, rhs2, 1e-9) {
		t.Errorf("<conv(x,W,s),g>=%v != <W,conv_flipped(x,g,s)>=%v", lhs, rhs2)
	}
}

func TestAdjointIdentityStrided(t *testing.T) {
	xd := cube.Vec3{X: 6, Y: 5, Z: 4}
	wd := cube.Vec3{X: 2, Y: 2, Z: 2}
	s := cube.Vec3{X: 2, Y: 2, Z: 1}

	x := cube.New(xd)
	fill(x, func(i int) float64 { return float64(i)*0.07 + 0.2 })
	w := cube.New(wd)
	fill(w, func(i int) float64 { return float64(i)*0.05 - 0.3 })

	y := ConvSparse(x, w, s)
	g := cube.New(y.Dims())
	fill(g, func(i int) float64 { return float64(i)*0.19 - 0.6 })

	lhs := cube.Dot(y, g)
	rhs1 := cube.Dot(x, ConvSparseInverse(g, w, s))
	rhs2 := cube.Dot(w, ConvSparseFlipped(x, g, s))

	if !closeRel(lhs, rhs1, 1e-9) {
		t.Errorf("strided adjoint (inverse) mismatch: %v != %v", lhs, rhs1)
	}
	if !closeRel(lhs, rhs2, 1e-9) {
		t.Errorf("strided adjoint (flipped) mismatch: %v != %v", lhs, rhs2)
	}
}

func closeRel(a, b, tol float64) bool {
	if a == b {
		return true
	}
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return true
	}
	return math.Abs(a-b)/denom < tol
}
