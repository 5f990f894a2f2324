package znn

import "github.com/mjanderson09/znn-release/cube"

// Filter is a 3-D weight tensor plus the hyperparameters and persistent
// momentum buffer a convolution edge instance updates on backward.
type Filter struct {
	W       *cube.Volume
	momBuf  *cube.Volume
	Eta     float64
	Momentum float64
	WeightDecay float64
}

func newFilter(w *cube.Volume, eta, momentum, weightDecay float64) *Filter {
	return &Filter{
		W:           w,
		momBuf:      cube.New(w.Dims()),
		Eta:         eta,
		Momentum:    momentum,
		WeightDecay: weightDecay,
	}
}

// Update applies the momentum update rule given the weight gradient dW:
//
//	momBuf := momentum*momBuf - eta*dW
//	W := (1 - eta*weightDecay)*W + momBuf
func (f *Filter) Update(dW *cube.Volume) {
	mb := f.momBuf.Data()
	dw := dW.Data()
	for i := range mb {
		mb[i] = f.Momentum*mb[i] - f.Eta*dw[i]
	}

	w := f.W.Data()
	decay := 1 - f.Eta*f.WeightDecay
	for i := range w {
		w[i] = decay*w[i] + mb[i]
	}
}

// Bias is the scalar analogue of Filter, used per output port of a
// Transfer node group.
type Bias struct {
	B           float64
	momBuf      float64
	Eta         float64
	Momentum    float64
	WeightDecay float64
}

func newBias(b, eta, momentum, weightDecay float64) *Bias {
	return &Bias{B: b, Eta: eta, Momentum: momentum, WeightDecay: weightDecay}
}

// Update applies the same momentum rule as Filter.Update, scalar form.
func (b *Bias) Update(dB float64) {
	b.momBuf = b.Momentum*b.momBuf - b.Eta*dB
	b.B = (1-b.Eta*b.WeightDecay)*b.B + b.momBuf
}
