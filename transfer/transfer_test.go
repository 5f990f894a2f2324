package transfer

import "testing"

func TestTanhDerivAtOutput(t *testing.T) {
	f := Tanh()
	y := f.Apply(0.5)
	got := f.Deriv(y)
	want := 1 - y*y
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestByname(t *testing.T) {
	if _, ok := Byname("relu"); !ok {
		t.Error("expected relu to resolve")
	}
	if _, ok := Byname("bogus"); ok {
		t.Error("expected bogus to fail resolution")
	}
}
