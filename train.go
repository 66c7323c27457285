package kinet

import (
	"context"
	"math/rand"
	"strconv"
)

// TrainSample is one labeled feature vector, as produced by running a
// feature extractor over a labeled window.
type TrainSample struct {
	Features []float64
	Label    string
}

// TrainConfig holds the knobs of the full training loop. Zero values are
// replaced by the corresponding DefaultTrainConfig fields.
type TrainConfig struct {
	// Epochs is the maximum number of passes over the training split.
	Epochs int

	// LearningRate is the initial step size. Every DecayEvery epochs it is
	// multiplied by DecayFactor.
	LearningRate float64
	DecayFactor  float64
	DecayEvery   int

	// ClipNorm caps the per-layer L2 gradient norm for each update.
	ClipNorm float64

	// ValidationFraction of the (shuffled) samples is held out for early
	// stopping. Seed drives the shuffle, the split and initialization.
	ValidationFraction float64
	Seed               int64

	// MinSamples and MinPerClass are the mandatory pre-training checks; a
	// run failing them is rejected with a structured Failure before any
	// weight is touched.
	MinSamples  int
	MinPerClass int

	// Early stopping: validation accuracy must improve on the best by more
	// than MinDelta to reset the patience counter; once Patience epochs pass
	// without improvement the best snapshot is restored and training stops.
	Patience int
	MinDelta float64
}

// DefaultTrainConfig returns the configuration used on-device.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:             100,
		LearningRate:       0.01,
		DecayFactor:        0.95,
		DecayEvery:         10,
		ClipNorm:           5.0,
		ValidationFraction: 0.2,
		MinSamples:         30,
		MinPerClass:        5,
		Patience:           10,
		MinDelta:           0.001,
	}
}

func (cfg TrainConfig) withDefaults() TrainConfig {
	def := DefaultTrainConfig()
	if cfg.Epochs <= 0 {
		cfg.Epochs = def.Epochs
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.DecayFactor <= 0 {
		cfg.DecayFactor = def.DecayFactor
	}
	if cfg.DecayEvery <= 0 {
		cfg.DecayEvery = def.DecayEvery
	}
	if cfg.ClipNorm <= 0 {
		cfg.ClipNorm = def.ClipNorm
	}
	if cfg.ValidationFraction <= 0 || cfg.ValidationFraction >= 1 {
		cfg.ValidationFraction = def.ValidationFraction
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.MinPerClass <= 0 {
		cfg.MinPerClass = def.MinPerClass
	}
	if cfg.Patience <= 0 {
		cfg.Patience = def.Patience
	}
	return cfg
}

// TrainResult reports the outcome of a training run. Success=false runs
// carry a Failure describing why; data problems never surface as errors.
type TrainResult struct {
	Success bool
	Failure *Failure

	// Accuracy is the best validation accuracy reached; the restored
	// parameters are the ones that produced it.
	Accuracy          float64
	TrainSamples      int
	ValidationSamples int
	Epochs            int
	EarlyStopped      bool
	FinalLearningRate float64
}

// ProgressFunc receives the completed fraction of the epoch budget and the
// current validation accuracy. It is invoked at least once per epoch.
type ProgressFunc func(fractionComplete, validationAccuracy float64)

// Train runs the full epoch-based training loop: validation checks, seeded
// train/validation split, normalization fitting, He re-initialization,
// per-sample SGD with per-layer gradient clipping, stepped learning-rate
// decay and early stopping with best-snapshot restore.
//
// The run is cooperatively cancellable through ctx, checked at the top of
// each epoch and between samples; a cancelled run discards every in-progress
// weight update and restores the parameters held at entry. Only one training
// session may run per instance.
func (c *Classifier) Train(ctx context.Context, samples []TrainSample, cfg TrainConfig, onProgress ProgressFunc) TrainResult {
	if !c.training.CompareAndSwap(false, true) {
		return failed(FailInvalidInput, ErrTraining.Error())
	}
	defer c.training.Store(false)

	cfg = cfg.withDefaults()
	if onProgress == nil {
		onProgress = func(float64, float64) {}
	}

	if res, ok := c.validateSamples(samples, cfg); !ok {
		return res
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	// Shuffled copy, then split. The validation tail is never trained on.
	shuffled := make([]TrainSample, len(samples))
	copy(shuffled, samples)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	valSize := int(float64(len(shuffled)) * cfg.ValidationFraction)
	if valSize < 1 {
		valSize = 1
	}
	train := shuffled[:len(shuffled)-valSize]
	val := shuffled[len(shuffled)-valSize:]

	entry := c.snapshotParams()

	norm, err := FitNorm(featureMatrix(train))
	if err != nil {
		return failed(FailInvalidInput, err.Error())
	}
	c.norm = norm

	trainX, trainY := c.encode(train)
	valX, valY := c.encode(val)

	for _, l := range c.layers {
		l.InitHe(rng)
		l.ZeroGrads()
	}

	var (
		lr           = cfg.LearningRate
		best         float64
		bestSnap     = c.snapshotParams()
		patienceLeft = cfg.Patience
		earlyStopped bool
		epochsRun    int
		order        = make([]int, len(trainX))
	)
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if cancelled(ctx) {
			c.restoreParams(entry)
			return failed(FailCancelled, "training cancelled")
		}

		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		for n, i := range order {
			if n%64 == 0 && cancelled(ctx) {
				c.restoreParams(entry)
				return failed(FailCancelled, "training cancelled")
			}

			probs := c.forwardNormalized(trainX[i])
			c.backward(probs, trainY[i])
			for _, l := range c.layers {
				l.ClipGrads(cfg.ClipNorm)
				l.Apply(lr)
			}
		}
		epochsRun = epoch + 1

		if (epoch+1)%cfg.DecayEvery == 0 {
			lr *= cfg.DecayFactor
		}

		acc := c.validationAccuracy(valX, valY)
		if acc > best+cfg.MinDelta || epoch == 0 {
			best = acc
			bestSnap = c.snapshotParams()
			patienceLeft = cfg.Patience
		} else {
			patienceLeft--
		}

		onProgress(float64(epoch+1)/float64(cfg.Epochs), acc)

		if patienceLeft <= 0 {
			earlyStopped = true
			break
		}
	}

	c.restoreParams(bestSnap)
	c.trained = true

	return TrainResult{
		Success:           true,
		Accuracy:          best,
		TrainSamples:      len(train),
		ValidationSamples: len(val),
		Epochs:            epochsRun,
		EarlyStopped:      earlyStopped,
		FinalLearningRate: lr,
	}
}

// validateSamples runs the mandatory pre-training checks. It performs zero
// weight mutation; rejected runs leave the classifier exactly as it was.
func (c *Classifier) validateSamples(samples []TrainSample, cfg TrainConfig) (TrainResult, bool) {
	if len(samples) < cfg.MinSamples {
		return failed(FailInsufficientData, "not enough samples to train"), false
	}

	index := c.labelIndex()
	counts := make(map[string]int, len(c.labels))
	for i, s := range samples {
		if len(s.Features) != FeatureCount {
			return failed(FailInvalidInput, "sample has wrong feature length"), false
		}
		if _, ok := index[s.Label]; !ok {
			return failed(FailInvalidInput, "sample "+strconv.Itoa(i)+" has unknown label "+s.Label), false
		}
		counts[s.Label]++
	}

	for _, label := range c.labels {
		if counts[label] < cfg.MinPerClass {
			return failed(FailClassBalance, "class "+label+" has too few samples"), false
		}
	}
	return TrainResult{}, true
}

func (c *Classifier) labelIndex() map[string]int {
	index := make(map[string]int, len(c.labels))
	for i, label := range c.labels {
		index[label] = i
	}
	return index
}

// encode normalizes features once up front and maps labels to class indices.
// Labels were validated before this runs.
func (c *Classifier) encode(samples []TrainSample) ([][]float64, []int) {
	index := c.labelIndex()
	xs := make([][]float64, len(samples))
	ys := make([]int, len(samples))
	for i, s := range samples {
		xs[i] = c.norm.Apply(s.Features)
		ys[i] = index[s.Label]
	}
	return xs, ys
}

// forwardNormalized runs the layer passes and softmax on an already
// normalized input.
func (c *Classifier) forwardNormalized(x []float64) []float64 {
	for _, l := range c.layers {
		x = l.Forward(x)
	}
	softmaxInPlace(x)
	return x
}

func (c *Classifier) validationAccuracy(xs [][]float64, ys []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	correct := 0
	for i := range xs {
		probs := c.forwardNormalized(xs[i])
		best := 0
		for j := range probs {
			if probs[j] > probs[best] {
				best = j
			}
		}
		if best == ys[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(xs))
}

func featureMatrix(samples []TrainSample) [][]float64 {
	m := make([][]float64, len(samples))
	for i := range samples {
		m[i] = samples[i].Features
	}
	return m
}

func failed(kind FailKind, reason string) TrainResult {
	return TrainResult{Success: false, Failure: &Failure{Kind: kind, Reason: reason}}
}

func cancelled(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
