package cube

import "testing"

func TestVolumeAtSet(t *testing.T) {
	v := New(Vec3{X: 2, Y: 2, Z: 2})
	p := Vec3{X: 1, Y: 0, Z: 1}
	v.Set(p, 42)
	if got := v.At(p); got != 42 {
		t.Errorf("expected 42, got %v", got)
	}
}

func TestAddInPlace(t *testing.T) {
	a := New(Vec3{X: 2, Y: 1, Z: 1})
	b := New(Vec3{X: 2, Y: 1, Z: 1})
	a.SetIndex(0, 1)
	a.SetIndex(1, 2)
	b.SetIndex(0, 10)
	b.SetIndex(1, 20)

	a.AddInPlace(b)

	if a.AtIndex(0) != 11 || a.AtIndex(1) != 22 {
		t.Errorf("expected [11,22], got [%v,%v]", a.AtIndex(0), a.AtIndex(1))
	}
}

func TestSum(t *testing.T) {
	v := New(Vec3{X: 3, Y: 1, Z: 1})
	v.SetIndex(0, 1)
	v.SetIndex(1, 2)
	v.SetIndex(2, 3)
	if got := v.Sum(); got != 6 {
		t.Errorf("expected 6, got %v", got)
	}
}

func TestFlatIndexRoundTrip(t *testing.T) {
	v := New(Vec3{X: 3, Y: 4, Z: 5})
	for z := 0; z < 5; z++ {
		for y := 0; y < 4; y++ {
			for x := 0; x < 3; x++ {
				p := Vec3{X: x, Y: y, Z: z}
				i := v.FlatIndex(p)
				if got := v.Point(i); got != p {
					t.Errorf("Point(FlatIndex(%v)) = %v, want %v", p, got, p)
				}
			}
		}
	}
}

func TestScaleAndAdd(t *testing.T) {
	a := Vec3{X: 3, Y: 3, Z: 3}
	s := Vec3{X: 2, Y: 2, Z: 2}
	c := Vec3{X: 1, Y: 1, Z: 1}
	got := a.ScaleAndAdd(s, c)
	want := Vec3{X: 5, Y: 5, Z: 5} // (3-1)*2+1
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}
