package kinet

import (
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// Default hidden-layer sizes. The topology itself is fixed at
// input(FeatureCount) -> hidden1(ReLU) -> hidden2(ReLU) -> output(softmax);
// only the widths and the class count vary.
const (
	DefaultHidden1 = 32
	DefaultHidden2 = 16
)

// crossEntropyEpsilon keeps -ln(p) finite when a probability underflows.
const crossEntropyEpsilon = 1e-9

// Config describes a Classifier to construct. Classes is required; the
// hidden sizes default to DefaultHidden1/DefaultHidden2 when zero.
type Config struct {
	Classes []string
	Hidden1 int
	Hidden2 int
	Seed    int64
}

// Classifier is the full-featured variant: a three-layer dense network with
// owned normalization parameters, batch training (see Train) and binary
// persistence through ExportParams/ImportParams.
//
// A Classifier's parameters are exclusively owned by whichever caller is
// currently training or predicting; training and inference on one instance
// are mutually exclusive and must not run concurrently.
type Classifier struct {
	labels []string
	norm   NormParams
	layers [3]*DenseLayer

	trained  bool
	training atomic.Bool
}

// NewClassifier constructs a classifier with He-initialized weights drawn
// from the seeded source. The instance is usable for Predict immediately but
// reports HasTrainedModel() == false until a training run completes or
// parameters are imported.
func NewClassifier(cfg Config) (*Classifier, error) {
	if len(cfg.Classes) < 2 {
		return nil, errors.Wrapf(ErrNoClasses, "need at least 2 classes, have %d", len(cfg.Classes))
	}
	h1, h2 := cfg.Hidden1, cfg.Hidden2
	if h1 <= 0 {
		h1 = DefaultHidden1
	}
	if h2 <= 0 {
		h2 = DefaultHidden2
	}

	c := &Classifier{
		labels: append([]string(nil), cfg.Classes...),
	}
	c.layers[0] = NewDenseLayer(FeatureCount, h1, true)
	c.layers[1] = NewDenseLayer(h1, h2, true)
	c.layers[2] = NewDenseLayer(h2, len(cfg.Classes), false)

	rng := rand.New(rand.NewSource(cfg.Seed))
	for _, l := range c.layers {
		l.InitHe(rng)
	}
	return c, nil
}

// Labels returns the class labels in output-index order.
func (c *Classifier) Labels() []string {
	return append([]string(nil), c.labels...)
}

// Norm returns the normalization parameters the classifier was trained with.
func (c *Classifier) Norm() NormParams {
	return c.norm
}

// HasTrainedModel reports whether the classifier carries trained (or
// imported) parameters rather than a fresh initialization.
func (c *Classifier) HasTrainedModel() bool {
	return c.trained
}

// Predict runs one forward pass over the feature vector and returns the
// winning class, its probability as confidence, and the full distribution.
// It is pure and deterministic: identical weights and input produce
// bit-identical output. Features are normalized through the owned params
// before the first layer.
func (c *Classifier) Predict(features []float64) (ClassificationResult, error) {
	if len(features) != FeatureCount {
		return ClassificationResult{}, errors.Wrapf(ErrInvalidInput,
			"feature vector has length %d, want %d", len(features), FeatureCount)
	}

	start := time.Now()
	probs := c.forward(features)

	best := 0
	for i := range probs {
		if probs[i] > probs[best] {
			best = i
		}
	}

	dist := make([]float64, len(probs))
	copy(dist, probs)

	return ClassificationResult{
		Label:        c.labels[best],
		Confidence:   probs[best],
		Distribution: dist,
		Latency:      time.Since(start),
	}, nil
}

// forward runs normalization, the three layer passes and the softmax. The
// returned slice aliases the output layer's scratch buffer.
func (c *Classifier) forward(features []float64) []float64 {
	x := features
	if c.norm.Valid() {
		x = c.norm.Apply(features)
	}
	for _, l := range c.layers {
		x = l.Forward(x)
	}
	softmaxInPlace(x)
	return x
}

// backward propagates the combined softmax+cross-entropy delta (p - onehot)
// through the network, accumulating gradients in every layer. forward must
// have been called for the same sample first.
func (c *Classifier) backward(probs []float64, target int) {
	dz := make([]float64, len(probs))
	copy(dz, probs)
	dz[target] -= 1

	d := dz
	for i := len(c.layers) - 1; i >= 0; i-- {
		d = c.layers[i].Backward(d)
	}
}

// snapshotParams deep-copies the current weights, biases and normalization
// params. Used both for the early-stopping "best" copy and for discarding a
// cancelled run.
func (c *Classifier) snapshotParams() paramSnapshot {
	s := paramSnapshot{norm: c.norm.clone(), trained: c.trained}
	for i, l := range c.layers {
		s.layers[i] = l.snapshot()
	}
	return s
}

func (c *Classifier) restoreParams(s paramSnapshot) {
	for i, l := range c.layers {
		l.restore(s.layers[i])
	}
	c.norm = s.norm
	c.trained = s.trained
}

type paramSnapshot struct {
	layers  [3]layerSnapshot
	norm    NormParams
	trained bool
}

func (p NormParams) clone() NormParams {
	if p.Len() == 0 {
		return NormParams{}
	}
	return NormParams{
		Means: append([]float64(nil), p.Means...),
		Stds:  append([]float64(nil), p.Stds...),
	}
}

// softmaxInPlace rewrites the slice with the softmax of its values. The
// maximum is subtracted first to keep the exponentials bounded.
func softmaxInPlace(x []float64) {
	max := x[0]
	for _, v := range x[1:] {
		if v > max {
			max = v
		}
	}

	var sum float64
	for i := range x {
		x[i] = math.Exp(x[i] - max)
		sum += x[i]
	}
	for i := range x {
		x[i] /= sum
	}
}
