package kinet

import (
	"math/rand"
	"testing"
)

func TestOnlineUpdateReducesLoss(t *testing.T) {
	o, err := NewOnlineClassifier([]string{"a", "b"}, 8, 8, 5)
	if err != nil {
		t.Fatalf("NewOnlineClassifier: %v", err)
	}

	fv := make([]float64, FeatureCount)
	for i := range fv {
		fv[i] = 0.1 * float64(i%5)
	}

	first, err := o.Update(fv, "a", 0.1)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	var last float64
	for i := 0; i < 20; i++ {
		if last, err = o.Update(fv, "a", 0.1); err != nil {
			t.Fatalf("Update %d: %v", i, err)
		}
	}

	if last >= first {
		t.Errorf("loss did not decrease on repeated updates: first %v, last %v", first, last)
	}

	res, err := o.Predict(fv)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Label != "a" {
		t.Errorf("after fitting one sample, predicted %q, want %q", res.Label, "a")
	}
}

func TestOnlineUpdateErrors(t *testing.T) {
	o, _ := NewOnlineClassifier([]string{"a", "b"}, 0, 0, 1)

	if _, err := o.Update(make([]float64, 3), "a", 0.1); err == nil {
		t.Errorf("short feature vector accepted")
	}
	if _, err := o.Update(make([]float64, FeatureCount), "nope", 0.1); err == nil {
		t.Errorf("unknown label accepted")
	}
}

func TestOnlineEpoch(t *testing.T) {
	o, _ := NewOnlineClassifier([]string{"low", "high"}, 8, 8, 9)
	rng := rand.New(rand.NewSource(3))

	samples := separableSamples(20, 9)

	var first, last float64
	for e := 0; e < 15; e++ {
		loss, err := o.Epoch(samples, 0.05, rng)
		if err != nil {
			t.Fatalf("Epoch %d: %v", e, err)
		}
		if e == 0 {
			first = loss
		}
		last = loss
	}

	if o.Epochs != 15 {
		t.Errorf("epoch counter == %d, want 15", o.Epochs)
	}
	if last >= first {
		t.Errorf("mean loss did not decrease: first %v, last %v", first, last)
	}

	correct := 0
	for _, s := range samples {
		res, err := o.Predict(s.Features)
		if err != nil {
			t.Fatalf("Predict: %v", err)
		}
		if res.Label == s.Label {
			correct++
		}
	}
	if frac := float64(correct) / float64(len(samples)); frac < 0.9 {
		t.Errorf("online classifier fits separable data at %v accuracy", frac)
	}

	if _, err := o.Epoch(nil, 0.05, rng); err == nil {
		t.Errorf("empty epoch accepted")
	}
}
