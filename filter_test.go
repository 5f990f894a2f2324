package znn

import (
	"math"
	"testing"

	"github.com/mjanderson09/znn-release/cube"
)

func TestFilterUpdateRule(t *testing.T) {
	w := cube.New(cube.Vec3{X: 1, Y: 1, Z: 1})
	w.SetIndex(0, 1)
	f := newFilter(w, 0.1, 0, 0)

	dW := cube.New(cube.Vec3{X: 1, Y: 1, Z: 1})
	dW.SetIndex(0, 1)

	f.Update(dW)

	// momBuf = 0*0 - 0.1*1 = -0.1; W = (1-0.1*0)*1 + (-0.1) = 0.9
	if got := f.W.AtIndex(0); got != 0.9 {
		t.Errorf("expected W=0.9 after one update, got %v", got)
	}
}

func TestFilterUpdateWithMomentumAndDecay(t *testing.T) {
	w := cube.New(cube.Vec3{X: 1, Y: 1, Z: 1})
	w.SetIndex(0, 2)
	f := newFilter(w, 0.5, 0.9, 0.1)

	dW := cube.New(cube.Vec3{X: 1, Y: 1, Z: 1})
	dW.SetIndex(0, 4)

	f.Update(dW)
	// momBuf = 0.9*0 - 0.5*4 = -2
	// W = (1 - 0.5*0.1)*2 + (-2) = 0.95*2 - 2 = 1.9 - 2 = -0.1
	// (in float64 this lands one rounding step off, -0.10000000000000009)
	if got := f.W.AtIndex(0); math.Abs(got-(-0.1)) > 1e-12 {
		t.Errorf("expected W=-0.1, got %v", got)
	}

	f.Update(dW)
	// momBuf = 0.9*(-2) - 0.5*4 = -1.8-2=-3.8
	// W = 0.95*(-0.1) + (-3.8) = -0.095-3.8 = -3.895
	if got := f.W.AtIndex(0); got != -3.895 {
		t.Errorf("expected W=-3.895 after second update, got %v", got)
	}
}

func TestBiasUpdateRule(t *testing.T) {
	b := newBias(0, 0.1, 0, 0)
	b.Update(2)
	if got := b.B; got != -0.2 {
		t.Errorf("expected bias -0.2, got %v", got)
	}
}
