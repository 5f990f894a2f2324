// Package kernel implements the sparse 3-D convolution kernels and the
// max-pool kernel that back the graph engine's convolution and max-pool
// edge groups.
package kernel

import (
	"github.com/mjanderson09/znn-release/cube"
)

// ConvSparse computes y[p] = sum_q W[q] * x[p + s*q] for every p such that
// every p + s*q (q ranging over W's extents) lies inside x. This is
// ordinary correlation when s is (1,1,1); larger s spaces the filter taps
// on an integer lattice without changing the filter's own size.
func ConvSparse(x, w *cube.Volume, s cube.Vec3) *cube.Volume {
	wd := w.Dims()
	yd := x.Dims().Sub(wd.Sub(cube.One).Mul(s))
	y := cube.New(yd)

	for pz := 0; pz < yd.Z; pz++ {
		for py := 0; py < yd.Y; py++ {
			for px := 0; px < yd.X; px++ {
				p := cube.Vec3{X: px, Y: py, Z: pz}
				var sum float64
				for qz := 0; qz < wd.Z; qz++ {
					for qy := 0; qy < wd.Y; qy++ {
						for qx := 0; qx < wd.X; qx++ {
							q := cube.Vec3{X: qx, Y: qy, Z: qz}
							sum += w.At(q) * x.At(p.Add(q.Mul(s)))
						}
					}
				}
				y.Set(p, sum)
			}
		}
	}
	return y
}

// ConvSparseInverse is the transpose of ConvSparse, used for backprop
// through the input: out[p + s*q] += W[q] * g[p], zero-initialized.
func ConvSparseInverse(g, w *cube.Volume, s cube.Vec3) *cube.Volume {
	wd := w.Dims()
	gd := g.Dims()
	outd := gd.Add(wd.Sub(cube.One).Mul(s))
	out := cube.New(outd)

	for pz := 0; pz < gd.Z; pz++ {
		for py := 0; py < gd.Y; py++ {
			for px := 0; px < gd.X; px++ {
				p := cube.Vec3{X: px, Y: py, Z: pz}
				gv := g.At(p)
				for qz := 0; qz < wd.Z; qz++ {
					for qy := 0; qy < wd.Y; qy++ {
						for qx := 0; qx < wd.X; qx++ {
							q := cube.Vec3{X: qx, Y: qy, Z: qz}
							out.AddAt(p.Add(q.Mul(s)), w.At(q)*gv)
						}
					}
				}
			}
		}
	}
	return out
}

// ConvSparseFlipped is the weight-gradient kernel: it returns a volume
// shaped like the filter W used in the matching ConvSparse call, whose
// value at q is sum_p x[p + s*q] * g[p]. w's extents are recovered from x,
// g, and s via the same relation ConvSparse uses to size its output.
func ConvSparseFlipped(x, g *cube.Volume, s cube.Vec3) *cube.Volume {
	xd := x.Dims()
	gd := g.Dims()
	wd := cube.Vec3{
		X: (xd.X-gd.X)/s.X + 1,
		Y: (xd.Y-gd.Y)/s.Y + 1,
		Z: (xd.Z-gd.Z)/s.Z + 1,
	}
	dW := cube.New(wd)

	for qz := 0; qz < wd.Z; qz++ {
		for qy := 0; qy < wd.Y; qy++ {
			for qx := 0; qx < wd.X; qx++ {
				q := cube.Vec3{X: qx, Y: qy, Z: qz}
				var sum float64
				for pz := 0; pz < gd.Z; pz++ {
					for py := 0; py < gd.Y; py++ {
						for px := 0; px < gd.X; px++ {
							p := cube.Vec3{X: px, Y: py, Z: pz}
							sum += x.At(p.Add(q.Mul(s))) * g.At(p)
						}
					}
				}
				dW.Set(q, sum)
			}
		}
	}
	return dW
}
