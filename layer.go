package kinet

import (
	"math"
	"math/rand"
)

// DenseLayer is one fully-connected layer of the fixed topology. It exposes
// an explicit forward pass and a hand-derived backward pass so that the two
// classifier variants share one set of derivative code.
//
// Weights are laid out [output][input]. Gradients accumulate into separate
// buffers and are folded into the weights by Apply, which keeps clipping and
// cancellation simple: nothing changes until Apply runs.
type DenseLayer struct {
	In, Out int
	Weights [][]float64
	Biases  []float64

	WeightGrads [][]float64
	BiasGrads   []float64

	relu bool

	// scratch from the most recent Forward, consumed by Backward
	inputs []float64
	sums   []float64
	outs   []float64
}

// NewDenseLayer returns a zero-weight layer. relu selects the hidden-layer
// activation; the output layer leaves it false and lets the caller apply
// softmax and the combined softmax/cross-entropy delta.
func NewDenseLayer(in, out int, relu bool) *DenseLayer {
	l := &DenseLayer{
		In:          in,
		Out:         out,
		Weights:     make([][]float64, out),
		Biases:      make([]float64, out),
		WeightGrads: make([][]float64, out),
		BiasGrads:   make([]float64, out),
		relu:        relu,
		inputs:      make([]float64, in),
		sums:        make([]float64, out),
		outs:        make([]float64, out),
	}
	for v := range l.Weights {
		l.Weights[v] = make([]float64, in)
		l.WeightGrads[v] = make([]float64, in)
	}
	return l
}

// InitHe sets the weights from a normal distribution with standard deviation
// sqrt(2/fan_in), the scaling suited to ReLU layers. Biases are zeroed.
func (l *DenseLayer) InitHe(rng *rand.Rand) {
	sd := math.Sqrt(2 / float64(l.In))
	for v := range l.Weights {
		for in := range l.Weights[v] {
			l.Weights[v][in] = sd * boxMuller(rng)
		}
		l.Biases[v] = 0
	}
}

// boxMuller draws one standard normal value via the Box-Muller transform.
func boxMuller(rng *rand.Rand) float64 {
	u1 := 1 - rng.Float64() // (0, 1]; log(0) is unreachable
	u2 := rng.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// Forward computes the layer outputs for x, retaining the input and
// pre-activation sums for Backward. The returned slice is owned by the layer
// and is overwritten by the next Forward.
func (l *DenseLayer) Forward(x []float64) []float64 {
	copy(l.inputs, x)
	for v := range l.Weights {
		sum := l.Biases[v]
		row := l.Weights[v]
		for in := range row {
			sum += row[in] * x[in]
		}
		l.sums[v] = sum
		if l.relu && sum < 0 {
			l.outs[v] = 0
		} else {
			l.outs[v] = sum
		}
	}
	return l.outs
}

// Backward takes the gradient with respect to this layer's outputs,
// accumulates the weight and bias gradients for the most recent Forward, and
// returns the gradient with respect to the inputs.
//
// For ReLU layers the incoming gradient is masked to zero wherever the
// pre-activation was <= 0. The output (softmax) layer is constructed with
// relu=false and receives the combined softmax+cross-entropy delta
// (p - onehot) directly, so no activation derivative applies here.
func (l *DenseLayer) Backward(dOut []float64) []float64 {
	dIn := make([]float64, l.In)
	for v := range l.Weights {
		d := dOut[v]
		if l.relu && l.sums[v] <= 0 {
			d = 0
		}

		l.BiasGrads[v] += d
		row := l.Weights[v]
		grads := l.WeightGrads[v]
		for in := range row {
			grads[in] += d * l.inputs[in]
			dIn[in] += d * row[in]
		}
	}
	return dIn
}

// GradNorm returns the L2 norm of the accumulated gradient vector (weights
// and biases together).
func (l *DenseLayer) GradNorm() float64 {
	var sum float64
	for v := range l.WeightGrads {
		for _, g := range l.WeightGrads[v] {
			sum += g * g
		}
		sum += l.BiasGrads[v] * l.BiasGrads[v]
	}
	return math.Sqrt(sum)
}

// ClipGrads rescales the accumulated gradient so that its L2 norm is exactly
// cap whenever it exceeds cap. Gradients already at or under the cap are
// left bit-unchanged.
func (l *DenseLayer) ClipGrads(cap float64) {
	norm := l.GradNorm()
	if norm <= cap || norm == 0 {
		return
	}

	scale := cap / norm
	for v := range l.WeightGrads {
		for in := range l.WeightGrads[v] {
			l.WeightGrads[v][in] *= scale
		}
		l.BiasGrads[v] *= scale
	}
}

// Apply folds the accumulated gradients into the weights with the given
// learning rate and zeroes the gradient buffers.
func (l *DenseLayer) Apply(learningRate float64) {
	for v := range l.Weights {
		for in := range l.Weights[v] {
			l.Weights[v][in] -= learningRate * l.WeightGrads[v][in]
			l.WeightGrads[v][in] = 0
		}
		l.Biases[v] -= learningRate * l.BiasGrads[v]
		l.BiasGrads[v] = 0
	}
}

// ZeroGrads discards any accumulated gradients without applying them.
func (l *DenseLayer) ZeroGrads() {
	for v := range l.WeightGrads {
		for in := range l.WeightGrads[v] {
			l.WeightGrads[v][in] = 0
		}
		l.BiasGrads[v] = 0
	}
}

// layerSnapshot is a deep copy of one layer's parameters. Snapshots never
// alias the live buffers; restoring always copies back in.
type layerSnapshot struct {
	weights [][]float64
	biases  []float64
}

func (l *DenseLayer) snapshot() layerSnapshot {
	s := layerSnapshot{
		weights: make([][]float64, len(l.Weights)),
		biases:  make([]float64, len(l.Biases)),
	}
	for v := range l.Weights {
		s.weights[v] = make([]float64, len(l.Weights[v]))
		copy(s.weights[v], l.Weights[v])
	}
	copy(s.biases, l.Biases)
	return s
}

func (l *DenseLayer) restore(s layerSnapshot) {
	for v := range s.weights {
		copy(l.Weights[v], s.weights[v])
	}
	copy(l.Biases, s.biases)
}
