// Package initializer provides the pluggable weight/bias fill strategies
// used when a filter or bias is constructed without a packed byte string
// to load from, adapted from badstudent/initializers' random{RNG} wrapper
// to fill a plain []float64 buffer instead of a slice of Nodes.
package initializer

import "math/rand"

// Initializer fills dst with starting values for a newly constructed
// Filter or Bias.
type Initializer interface {
	TypeString() string
	Fill(dst []float64)
}

type zero int8

// Zero fills every element with 0.
func Zero() Initializer { return zero(0) }

func (zero) TypeString() string { return "zero" }
func (zero) Fill(dst []float64) {
	for i := range dst {
		dst[i] = 0
	}
}

type constant float64

// Constant fills every element with v.
func Constant(v float64) Initializer { return constant(v) }

func (c constant) TypeString() string { return "constant" }
func (c constant) Fill(dst []float64) {
	for i := range dst {
		dst[i] = float64(c)
	}
}

type uniform struct {
	lo, hi float64
	rng    *rand.Rand
}

// Uniform fills every element independently from the uniform distribution
// over [lo, hi), drawing from rng (pass nil to use the package-level
// default source).
func Uniform(lo, hi float64, rng *rand.Rand) Initializer {
	return &uniform{lo: lo, hi: hi, rng: rng}
}

func (u *uniform) TypeString() string { return "uniform" }
func (u *uniform) Fill(dst []float64) {
	for i := range dst {
		var r float64
		if u.rng != nil {
			r = u.rng.Float64()
		} else {
			r = rand.Float64()
		}
		dst[i] = u.lo + r*(u.hi-u.lo)
	}
}
