// Package features turns windows of raw samples into fixed-length numeric
// feature vectors. The two strategies, touch-gesture features and motion
// axis statistics, share one contract so that a single network shape serves
// both. Every extracted vector has kinet.FeatureCount values and is always
// finite.
package features

import (
	"math"

	"github.com/kinetml/kinet"
	"github.com/pkg/errors"
)

// Extractor is the shared contract of both strategies.
type Extractor interface {
	// Extract summarizes the window into exactly kinet.FeatureCount values.
	// Empty windows produce a well-defined degenerate vector, never an error.
	Extract(w kinet.Window) ([]float64, error)
}

// MinMaxScaler scales features to [0,1] per index, with a zero-range guard.
// It is the lightweight normalization used by the online classifier variant;
// the full classifier owns mean/std params instead (kinet.NormParams).
type MinMaxScaler struct {
	Min []float64
	Max []float64
}

// FitMinMax computes per-index minima and maxima over the feature set.
func FitMinMax(features [][]float64) (MinMaxScaler, error) {
	if len(features) == 0 {
		return MinMaxScaler{}, errors.Errorf("cannot fit scaler on an empty feature set")
	}

	n := len(features[0])
	s := MinMaxScaler{
		Min: make([]float64, n),
		Max: make([]float64, n),
	}
	copy(s.Min, features[0])
	copy(s.Max, features[0])

	for j, f := range features[1:] {
		if len(f) != n {
			return MinMaxScaler{}, errors.Errorf("feature vector %d has length %d, want %d", j+1, len(f), n)
		}
		for i, v := range f {
			if v < s.Min[i] {
				s.Min[i] = v
			}
			if v > s.Max[i] {
				s.Max[i] = v
			}
		}
	}
	return s, nil
}

// Apply returns the scaled copy of v. Indices whose fitted range is zero (or
// not finite) map to 0.
func (s MinMaxScaler) Apply(v []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		span := s.Max[i] - s.Min[i]
		if span <= 0 || math.IsNaN(span) || math.IsInf(span, 0) {
			continue
		}
		out[i] = (v[i] - s.Min[i]) / span
	}
	return out
}

// finite replaces NaN and infinities with 0 so that extracted vectors uphold
// the always-finite invariant even on degenerate windows.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
