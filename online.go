package kinet

import (
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

// OnlineClassifier is the lighter variant: the same fixed topology driven by
// single-sample SGD updates, without validation splits, clipping or early
// stopping. It persists through the text model format, which additionally
// carries the label vocabulary and the cumulative epoch count.
//
// Callers feed it min-max scaled features; it owns no normalization params.
type OnlineClassifier struct {
	labels []string
	layers [3]*DenseLayer

	// Epochs counts full passes completed via Epoch; persisted in the text
	// header so an interrupted schedule can resume where it left off.
	Epochs int
}

// NewOnlineClassifier constructs the lighter variant with He-initialized
// weights. Hidden sizes of zero fall back to the package defaults.
func NewOnlineClassifier(labels []string, hidden1, hidden2 int, seed int64) (*OnlineClassifier, error) {
	if len(labels) < 2 {
		return nil, errors.Wrapf(ErrNoClasses, "need at least 2 classes, have %d", len(labels))
	}
	if hidden1 <= 0 {
		hidden1 = DefaultHidden1
	}
	if hidden2 <= 0 {
		hidden2 = DefaultHidden2
	}

	o := &OnlineClassifier{labels: append([]string(nil), labels...)}
	o.layers[0] = NewDenseLayer(FeatureCount, hidden1, true)
	o.layers[1] = NewDenseLayer(hidden1, hidden2, true)
	o.layers[2] = NewDenseLayer(hidden2, len(labels), false)

	rng := rand.New(rand.NewSource(seed))
	for _, l := range o.layers {
		l.InitHe(rng)
	}
	return o, nil
}

// Labels returns the class labels in output-index order.
func (o *OnlineClassifier) Labels() []string {
	return append([]string(nil), o.labels...)
}

// Predict runs one forward pass. Same contract as Classifier.Predict.
func (o *OnlineClassifier) Predict(features []float64) (ClassificationResult, error) {
	if len(features) != FeatureCount {
		return ClassificationResult{}, errors.Wrapf(ErrInvalidInput,
			"feature vector has length %d, want %d", len(features), FeatureCount)
	}

	start := time.Now()
	probs := o.forward(features)

	best := 0
	for i := range probs {
		if probs[i] > probs[best] {
			best = i
		}
	}
	dist := make([]float64, len(probs))
	copy(dist, probs)

	return ClassificationResult{
		Label:        o.labels[best],
		Confidence:   probs[best],
		Distribution: dist,
		Latency:      time.Since(start),
	}, nil
}

// Update performs one SGD step on a single labeled sample: forward pass,
// cross-entropy loss -ln(p_true + eps), combined softmax+cross-entropy delta
// backpropagated through the ReLU layers, immediate weight application. It
// returns the pre-update loss.
func (o *OnlineClassifier) Update(features []float64, label string, learningRate float64) (float64, error) {
	if len(features) != FeatureCount {
		return 0, errors.Wrapf(ErrInvalidInput,
			"feature vector has length %d, want %d", len(features), FeatureCount)
	}
	target := -1
	for i, l := range o.labels {
		if l == label {
			target = i
			break
		}
	}
	if target < 0 {
		return 0, errors.Wrapf(ErrInvalidInput, "unknown label %q", label)
	}

	probs := o.forward(features)
	loss := -math.Log(probs[target] + crossEntropyEpsilon)

	dz := make([]float64, len(probs))
	copy(dz, probs)
	dz[target] -= 1

	d := dz
	for i := len(o.layers) - 1; i >= 0; i-- {
		d = o.layers[i].Backward(d)
	}
	for _, l := range o.layers {
		l.Apply(learningRate)
	}

	return loss, nil
}

// Epoch runs one full pass over the samples in an rng-shuffled order and
// returns the mean loss. One call constitutes one epoch.
func (o *OnlineClassifier) Epoch(samples []TrainSample, learningRate float64, rng *rand.Rand) (float64, error) {
	if len(samples) == 0 {
		return 0, errors.Errorf("epoch needs at least one sample")
	}

	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	var total float64
	for _, i := range order {
		loss, err := o.Update(samples[i].Features, samples[i].Label, learningRate)
		if err != nil {
			return 0, errors.Wrapf(err, "update failed on sample %d", i)
		}
		total += loss
	}

	o.Epochs++
	return total / float64(len(samples)), nil
}

func (o *OnlineClassifier) forward(features []float64) []float64 {
	x := features
	for _, l := range o.layers {
		x = l.Forward(x)
	}
	softmaxInPlace(x)
	return x
}

// ExportParams deep-copies the current parameters, including the label
// vocabulary and epoch count for the text format.
func (o *OnlineClassifier) ExportParams() ModelParams {
	p := exportLayers(o.layers)
	p.Labels = o.Labels()
	p.Epochs = o.Epochs
	return p
}

// ImportParams replaces the parameters with a validated copy of p. Dimension
// mismatches leave the classifier untouched and return a CorruptModel error.
func (o *OnlineClassifier) ImportParams(p ModelParams) error {
	if err := checkLayerDims(o.layers, p); err != nil {
		return err
	}
	if len(p.Labels) != len(o.labels) {
		return errors.Wrapf(ErrCorruptModel,
			"model has %d labels, classifier has %d", len(p.Labels), len(o.labels))
	}

	importLayers(o.layers, p)
	o.labels = append([]string(nil), p.Labels...)
	o.Epochs = p.Epochs
	return nil
}
