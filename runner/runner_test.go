package runner

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/kinetml/kinet"
	"github.com/kinetml/kinet/aggregate"
	"github.com/kinetml/kinet/features"
	"github.com/kinetml/kinet/modelfile"
	"github.com/pkg/errors"
)

// stubSource always serves the same window.
type stubSource struct {
	window kinet.Window
	ok     bool
}

func (s stubSource) Latest() (kinet.Window, bool) {
	return s.window, s.ok
}

func motionWindow() kinet.Window {
	base := time.Unix(0, 0)
	w := kinet.Window{}
	for i := 0; i < 5; i++ {
		w.Samples = append(w.Samples, kinet.Sample{
			Values: []float64{float64(i), 0.5, -0.5, 0.1, 0.2, 0.3},
			Time:   base.Add(time.Duration(i) * 10 * time.Millisecond),
		})
	}
	return w
}

func trainSamples(perClass int, seed int64) []kinet.TrainSample {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]kinet.TrainSample, 0, 2*perClass)
	for i := 0; i < perClass; i++ {
		a := make([]float64, kinet.FeatureCount)
		b := make([]float64, kinet.FeatureCount)
		for j := range a {
			a[j] = 0 + 0.1*rng.NormFloat64()
			b[j] = 5 + 0.1*rng.NormFloat64()
		}
		samples = append(samples,
			kinet.TrainSample{Features: a, Label: "idle"},
			kinet.TrainSample{Features: b, Label: "walk"})
	}
	return samples
}

func testAggregator(t *testing.T) *aggregate.Aggregator {
	t.Helper()
	agg, err := aggregate.New(aggregate.Config{Labels: []string{"idle", "walk"}})
	if err != nil {
		t.Fatalf("aggregate.New: %v", err)
	}
	return agg
}

func TestInferenceLoopTicks(t *testing.T) {
	cls, err := kinet.NewClassifier(kinet.Config{Classes: []string{"idle", "walk"}, Seed: 1})
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}

	loop := NewInferenceLoop(stubSource{window: motionWindow(), ok: true},
		features.MotionExtractor{}, cls, testAggregator(t), time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := loop.Run(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Run returned %v, want DeadlineExceeded", err)
	}
	if loop.Ticks() == 0 {
		t.Errorf("loop completed no inference ticks")
	}
}

func TestInferenceLoopSkipsMissingWindows(t *testing.T) {
	cls, _ := kinet.NewClassifier(kinet.Config{Classes: []string{"idle", "walk"}, Seed: 1})

	loop := NewInferenceLoop(stubSource{ok: false},
		features.MotionExtractor{}, cls, testAggregator(t), time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	loop.Run(ctx)
	if loop.Ticks() != 0 {
		t.Errorf("loop ticked %d times with no window available", loop.Ticks())
	}
}

func TestBackgroundTrainerPersistsOnSuccess(t *testing.T) {
	cls, _ := kinet.NewClassifier(kinet.Config{Classes: []string{"idle", "walk"}, Seed: 1})
	store := modelfile.NewStore(filepath.Join(t.TempDir(), "m.bin"),
		modelfile.ClassifierDims(0, 0, 2), modelfile.FormatBinary)
	trainer := NewBackgroundTrainer(cls, store, nil)

	cfg := kinet.DefaultTrainConfig()
	cfg.Seed = 2
	cfg.Epochs = 10

	done, err := trainer.Start(context.Background(), trainSamples(40, 2), cfg, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	res := <-done
	if !res.Success {
		t.Fatalf("training failed: %v", res.Failure)
	}
	if !store.HasModel() {
		t.Fatalf("successful run did not persist a model")
	}

	// A fresh classifier restores the persisted model.
	fresh, _ := kinet.NewClassifier(kinet.Config{Classes: []string{"idle", "walk"}, Seed: 9})
	restorer := NewBackgroundTrainer(fresh, store, nil)
	if !restorer.Restore() {
		t.Fatalf("Restore failed with a persisted model in place")
	}
	if !fresh.HasTrainedModel() {
		t.Errorf("restored classifier not marked trained")
	}
}

func TestBackgroundTrainerRejectedRunPersistsNothing(t *testing.T) {
	cls, _ := kinet.NewClassifier(kinet.Config{Classes: []string{"idle", "walk"}, Seed: 1})
	store := modelfile.NewStore(filepath.Join(t.TempDir(), "m.bin"),
		modelfile.ClassifierDims(0, 0, 2), modelfile.FormatBinary)
	trainer := NewBackgroundTrainer(cls, store, nil)

	done, err := trainer.Start(context.Background(), trainSamples(2, 1), kinet.DefaultTrainConfig(), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	res := <-done
	if res.Success {
		t.Fatalf("training succeeded with too few samples")
	}
	if res.Failure == nil || res.Failure.Kind != kinet.FailInsufficientData {
		t.Fatalf("failure == %v, want InsufficientData", res.Failure)
	}
	if store.HasModel() {
		t.Errorf("rejected run persisted a model")
	}
}

func TestBackgroundTrainerRefusesConcurrentRuns(t *testing.T) {
	cls, _ := kinet.NewClassifier(kinet.Config{Classes: []string{"idle", "walk"}, Seed: 1})
	store := modelfile.NewStore(filepath.Join(t.TempDir(), "m.bin"),
		modelfile.ClassifierDims(0, 0, 2), modelfile.FormatBinary)
	trainer := NewBackgroundTrainer(cls, store, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	var once bool
	progress := func(fraction, accuracy float64) {
		if !once {
			once = true
			close(started)
			<-release
		}
	}

	cfg := kinet.DefaultTrainConfig()
	cfg.Seed = 3
	cfg.Epochs = 5

	done, err := trainer.Start(context.Background(), trainSamples(40, 3), cfg, progress)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	<-started
	if !trainer.Running() {
		t.Errorf("Running false while a session is in flight")
	}
	if _, err := trainer.Start(context.Background(), trainSamples(40, 3), cfg, nil); errors.Cause(err) != kinet.ErrTraining {
		t.Errorf("second Start error == %v, want ErrTraining", err)
	}

	close(release)
	<-done

	// The worker clears the running flag after delivering the result.
	deadline := time.After(time.Second)
	for trainer.Running() {
		select {
		case <-deadline:
			t.Fatalf("running flag never cleared")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRestoreWithoutModel(t *testing.T) {
	cls, _ := kinet.NewClassifier(kinet.Config{Classes: []string{"idle", "walk"}, Seed: 1})
	store := modelfile.NewStore(filepath.Join(t.TempDir(), "missing.bin"),
		modelfile.ClassifierDims(0, 0, 2), modelfile.FormatBinary)

	if NewBackgroundTrainer(cls, store, nil).Restore() {
		t.Errorf("Restore reported success with no model file")
	}
	if cls.HasTrainedModel() {
		t.Errorf("classifier marked trained with no model restored")
	}
}
