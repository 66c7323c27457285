package kinet

import (
	"math"
	"testing"
)

func probeFeatures(seed float64) []float64 {
	fv := make([]float64, FeatureCount)
	for i := range fv {
		fv[i] = seed + float64(i)*0.37
	}
	return fv
}

// Identical weights and identical input must produce bit-identical output
// across repeated calls.
func TestPredictDeterministic(t *testing.T) {
	c, err := NewClassifier(Config{Classes: []string{"a", "b", "c"}, Seed: 3})
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}

	fv := probeFeatures(0.5)
	first, err := c.Predict(fv)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	for run := 0; run < 5; run++ {
		again, err := c.Predict(fv)
		if err != nil {
			t.Fatalf("Predict (run %d): %v", run, err)
		}
		if again.Label != first.Label {
			t.Fatalf("label changed across runs: %q vs %q", again.Label, first.Label)
		}
		if math.Float64bits(again.Confidence) != math.Float64bits(first.Confidence) {
			t.Errorf("confidence not bit-identical: %x vs %x",
				math.Float64bits(again.Confidence), math.Float64bits(first.Confidence))
		}
		for i := range first.Distribution {
			if math.Float64bits(again.Distribution[i]) != math.Float64bits(first.Distribution[i]) {
				t.Errorf("distribution[%d] not bit-identical", i)
			}
		}
	}
}

func TestPredictDistribution(t *testing.T) {
	c, _ := NewClassifier(Config{Classes: []string{"a", "b", "c"}, Seed: 1})

	res, err := c.Predict(probeFeatures(-1.0))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	var sum float64
	for i, p := range res.Distribution {
		if p < 0 || p > 1 || math.IsNaN(p) {
			t.Errorf("distribution[%d] == %v out of range", i, p)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("distribution sums to %v, want 1", sum)
	}
	if res.Confidence != res.Distribution[0] && res.Confidence != res.Distribution[1] && res.Confidence != res.Distribution[2] {
		t.Errorf("confidence %v not taken from the distribution", res.Confidence)
	}
	if res.Latency < 0 {
		t.Errorf("negative latency %v", res.Latency)
	}
}

func TestPredictInvalidInput(t *testing.T) {
	c, _ := NewClassifier(Config{Classes: []string{"a", "b"}, Seed: 1})

	if _, err := c.Predict(make([]float64, FeatureCount-1)); err == nil {
		t.Errorf("short feature vector accepted")
	}
	if _, err := c.Predict(nil); err == nil {
		t.Errorf("nil feature vector accepted")
	}
}

func TestNewClassifierNeedsClasses(t *testing.T) {
	if _, err := NewClassifier(Config{Classes: []string{"only"}}); err == nil {
		t.Errorf("single-class classifier accepted")
	}
	if _, err := NewClassifier(Config{}); err == nil {
		t.Errorf("zero-class classifier accepted")
	}
}

func TestSoftmaxInPlace(t *testing.T) {
	x := []float64{1000, 1000, 1000} // would overflow without max subtraction
	softmaxInPlace(x)
	for i, v := range x {
		if math.Abs(v-1.0/3) > 1e-12 {
			t.Errorf("softmax[%d] == %v, want 1/3", i, v)
		}
	}
}
