package kernel

import (
	"math"

	"github.com/mjanderson09/znn-release/cube"
)

// Indices records, for every cell of a pooled output, the flat index of
// its winning element within the pooling input. Its own extents match the
// pooled output's.
type Indices struct {
	Dims cube.Vec3
	Data []int
}

func newIndices(dims cube.Vec3) *Indices {
	return &Indices{Dims: dims, Data: make([]int, dims.Volume())}
}

func (ix *Indices) flatIndex(p cube.Vec3) int {
	return p.X + p.Y*ix.Dims.X + p.Z*ix.Dims.X*ix.Dims.Y
}

func (ix *Indices) set(p cube.Vec3, idx int) {
	ix.Data[ix.flatIndex(p)] = idx
}

func (ix *Indices) At(p cube.Vec3) int {
	return ix.Data[ix.flatIndex(p)]
}

// PoolForward places a window of shape w, whose taps are spaced by s, at
// every position of x where it fits, emitting the maximum of each window
// and the flat index of its argmax within x. Ties are broken by the earliest (smallest
// linear index) winner.
func PoolForward(x *cube.Volume, w, s cube.Vec3) (*cube.Volume, *Indices) {
	yd := x.Dims().Sub(w.Sub(cube.One).Mul(s))
	y := cube.New(yd)
	indices := newIndices(yd)

	for pz := 0; pz < yd.Z; pz++ {
		for py := 0; py < yd.Y; py++ {
			for px := 0; px < yd.X; px++ {
				p := cube.Vec3{X: px, Y: py, Z: pz}
				best := math.Inf(-1)
				bestIdx := -1
				for qz := 0; qz < w.Z; qz++ {
					for qy := 0; qy < w.Y; qy++ {
						for qx := 0; qx < w.X; qx++ {
							q := cube.Vec3{X: qx, Y: qy, Z: qz}
							xp := p.Add(q.Mul(s))
							val := x.At(xp)
							if val > best {
								best = val
								bestIdx = x.FlatIndex(xp)
							}
						}
					}
				}
				y.Set(p, best)
				indices.set(p, bestIdx)
			}
		}
	}
	return y, indices
}

// PoolBackward scatters each gradient element g[p] into the input cell
// recorded by indices[p], summing contributions that land on the same
// input cell.
func PoolBackward(inSize cube.Vec3, g *cube.Volume, indices *Indices) *cube.Volume {
	out := cube.New(inSize)
	for i, val := range g.Data() {
		out.AddAtIndex(indices.Data[i], val)
	}
	return out
}
