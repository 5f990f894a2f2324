package initializer

import "testing"

func TestZeroFill(t *testing.T) {
	dst := []float64{1, 2, 3}
	Zero().Fill(dst)
	for _, v := range dst {
		if v != 0 {
			t.Errorf("expected 0, got %v", v)
		}
	}
}

func TestUniformFillRange(t *testing.T) {
	dst := make([]float64, 100)
	Uniform(-0.5, 0.5, nil).Fill(dst)
	for _, v := range dst {
		if v < -0.5 || v >= 0.5 {
			t.Errorf("value %v out of range [-0.5, 0.5)", v)
		}
	}
}
