// Package runner provides the two execution shells around the numeric core:
// a fixed-cadence inference loop that keeps classification off the
// interactive path, and a background trainer that runs full training without
// blocking sample capture.
package runner

import (
	"context"
	"time"

	"github.com/kinetml/kinet"
	"github.com/kinetml/kinet/aggregate"
	"github.com/kinetml/kinet/features"
	"github.com/kinetml/kinet/modelfile"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// DefaultInterval is the inference cadence.
const DefaultInterval = 500 * time.Millisecond

// WindowSource hands the loop the latest complete window of raw samples.
// The source is read on the loop goroutine only; implementations bridging
// from a capture goroutine must serialize access themselves.
type WindowSource interface {
	Latest() (kinet.Window, bool)
}

// InferenceLoop ties window source, feature extractor, classifier and
// aggregator together on a fixed tick. Each tick runs one predict and one
// aggregation step synchronously; both must finish well inside the tick.
type InferenceLoop struct {
	source     WindowSource
	extractor  features.Extractor
	classifier *kinet.Classifier
	aggregator *aggregate.Aggregator
	interval   time.Duration
	log        *zap.Logger

	ticks atomic.Int64
}

// NewInferenceLoop constructs a loop with the given cadence; interval <= 0
// selects DefaultInterval and a nil logger disables logging.
func NewInferenceLoop(src WindowSource, ex features.Extractor, cls *kinet.Classifier,
	agg *aggregate.Aggregator, interval time.Duration, log *zap.Logger) *InferenceLoop {

	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &InferenceLoop{
		source:     src,
		extractor:  ex,
		classifier: cls,
		aggregator: agg,
		interval:   interval,
		log:        log,
	}
}

// Run drives the loop until ctx is cancelled, returning the context error.
func (l *InferenceLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	var lastStable string
	for {
		select {
		case <-ctx.Done():
			l.log.Info("inference loop stopped", zap.Int64("ticks", l.ticks.Load()))
			return ctx.Err()
		case <-ticker.C:
		}

		window, ok := l.source.Latest()
		if !ok || window.Empty() {
			continue
		}

		start := time.Now()
		fv, err := l.extractor.Extract(window)
		if err != nil {
			l.log.Warn("feature extraction failed", zap.Error(err))
			continue
		}

		result, err := l.classifier.Predict(fv)
		if err != nil {
			l.log.Warn("predict failed", zap.Error(err))
			continue
		}

		consensus := l.aggregator.Add(result)
		l.ticks.Inc()

		if label, stable := l.aggregator.StableLabel(); stable && label != lastStable {
			lastStable = label
			l.log.Info("stable consensus",
				zap.String("label", label),
				zap.Float64("confidence", consensus.Confidence),
				zap.String("strategy", consensus.Strategy.String()),
				zap.Duration("tick", time.Since(start)))
		}
	}
}

// Ticks returns the number of completed inference ticks.
func (l *InferenceLoop) Ticks() int64 {
	return l.ticks.Load()
}

// BackgroundTrainer runs full training on a worker goroutine and persists
// the model only when a run completes successfully; a cancelled or rejected
// run leaves the previously persisted model authoritative.
type BackgroundTrainer struct {
	classifier *kinet.Classifier
	store      *modelfile.Store
	log        *zap.Logger

	running atomic.Bool
}

// NewBackgroundTrainer wires a trainer to its classifier and store.
func NewBackgroundTrainer(cls *kinet.Classifier, store *modelfile.Store, log *zap.Logger) *BackgroundTrainer {
	if log == nil {
		log = zap.NewNop()
	}
	return &BackgroundTrainer{classifier: cls, store: store, log: log}
}

// Running reports whether a training session is in flight.
func (t *BackgroundTrainer) Running() bool {
	return t.running.Load()
}

// Start launches one training run and returns a channel that delivers the
// single result. A second Start while one is in flight is refused.
func (t *BackgroundTrainer) Start(ctx context.Context, samples []kinet.TrainSample,
	cfg kinet.TrainConfig, onProgress kinet.ProgressFunc) (<-chan kinet.TrainResult, error) {

	if !t.running.CompareAndSwap(false, true) {
		return nil, errors.Wrap(kinet.ErrTraining, "background trainer busy")
	}

	done := make(chan kinet.TrainResult, 1)
	go func() {
		defer t.running.Store(false)

		progress := func(fraction, accuracy float64) {
			t.log.Debug("training progress",
				zap.Float64("fraction", fraction),
				zap.Float64("validation_accuracy", accuracy))
			if onProgress != nil {
				onProgress(fraction, accuracy)
			}
		}

		res := t.classifier.Train(ctx, samples, cfg, progress)
		if res.Success {
			if err := t.store.Save(t.classifier.ExportParams()); err != nil {
				// The in-memory model stays valid; only persistence failed.
				t.log.Error("saving trained model failed", zap.Error(err))
			} else {
				t.log.Info("trained model persisted",
					zap.String("path", t.store.Path()),
					zap.Float64("accuracy", res.Accuracy),
					zap.Int("epochs", res.Epochs),
					zap.Bool("early_stopped", res.EarlyStopped))
			}
		} else {
			t.log.Warn("training did not complete", zap.String("failure", res.Failure.String()))
		}

		done <- res
	}()

	return done, nil
}

// Restore loads the persisted model into the classifier, degrading to the
// untrained state when the store has no usable model.
func (t *BackgroundTrainer) Restore() bool {
	params, ok, err := t.store.Load()
	if err != nil {
		t.log.Warn("persisted model unusable, falling back to untrained", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := t.classifier.ImportParams(params); err != nil {
		t.log.Warn("persisted model rejected, falling back to untrained", zap.Error(err))
		return false
	}
	return true
}
