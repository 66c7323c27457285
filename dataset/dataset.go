// Package dataset holds the training-data plumbing between the external
// store of labeled capture sessions and the classifier: labeled recordings,
// window building, and the seeded shuffle/split helpers.
package dataset

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/kinetml/kinet"
	"github.com/kinetml/kinet/features"
	"github.com/pkg/errors"
)

// Recording is one labeled capture session: an ordered run of samples
// recorded under a single activity label.
type Recording struct {
	ID      uuid.UUID
	Label   string
	Started time.Time
	Samples []kinet.Sample
}

// NewRecording starts an empty recording for the given label.
func NewRecording(label string) *Recording {
	return &Recording{
		ID:      uuid.New(),
		Label:   label,
		Started: time.Now(),
	}
}

// Append adds one sample to the recording.
func (r *Recording) Append(s kinet.Sample) {
	r.Samples = append(r.Samples, s)
}

// BuildWindows slices every recording into labeled windows of the given size
// and step. Windows are built strictly within one recording, so no window
// ever straddles a class boundary or two distinct capture sessions of the
// same class; a window spanning sessions would mix discontinuous timestamps
// and leak across the split.
func BuildWindows(recordings []Recording, size, step int) ([]kinet.Window, error) {
	if size <= 0 || step <= 0 {
		return nil, errors.Errorf("window size and step must be positive (%d, %d)", size, step)
	}

	var windows []kinet.Window
	for _, rec := range recordings {
		for start := 0; start+size <= len(rec.Samples); start += step {
			samples := rec.Samples[start : start+size]
			windows = append(windows, kinet.Window{
				Samples:  samples,
				Label:    rec.Label,
				Duration: samples[len(samples)-1].Time.Sub(samples[0].Time),
			})
		}
	}
	return windows, nil
}

// Split shuffles the windows with the seeded source and carves off the last
// valFraction as the validation set. The input slice is left untouched.
func Split(windows []kinet.Window, valFraction float64, seed int64) (train, val []kinet.Window) {
	shuffled := make([]kinet.Window, len(windows))
	copy(shuffled, windows)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	valSize := int(float64(len(shuffled)) * valFraction)
	cut := len(shuffled) - valSize
	return shuffled[:cut], shuffled[cut:]
}

// CountByLabel tallies windows per label, the input of the class-balance
// check.
func CountByLabel(windows []kinet.Window) map[string]int {
	counts := make(map[string]int)
	for _, w := range windows {
		counts[w.Label]++
	}
	return counts
}

// ExtractAll runs the extractor over every window, producing the labeled
// feature vectors the training loop consumes.
func ExtractAll(ex features.Extractor, windows []kinet.Window) ([]kinet.TrainSample, error) {
	samples := make([]kinet.TrainSample, 0, len(windows))
	for i, w := range windows {
		fv, err := ex.Extract(w)
		if err != nil {
			return nil, errors.Wrapf(err, "extracting features from window %d", i)
		}
		samples = append(samples, kinet.TrainSample{Features: fv, Label: w.Label})
	}
	return samples, nil
}
