package kinet

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// stdFloor guards the per-feature standard deviations against zero; a
// constant feature column otherwise divides by zero at inference time.
const stdFloor = 1e-8

// NormParams holds per-feature mean and standard deviation, fitted once from
// a training set. They are owned by the classifier that was trained with
// them and are persisted alongside its weights; a trained network only ever
// sees features normalized through the params it was fitted with.
type NormParams struct {
	Means []float64
	Stds  []float64
}

// FitNorm computes per-feature mean/std over the given feature vectors. All
// vectors must have the same length. NaN or infinite moments (possible only
// with non-finite inputs) are replaced by 0/1, and stds are floored so that
// Apply can never divide by zero.
func FitNorm(features [][]float64) (NormParams, error) {
	if len(features) == 0 {
		return NormParams{}, errors.Errorf("cannot fit normalization on an empty feature set")
	}

	n := len(features[0])
	column := make([]float64, len(features))
	p := NormParams{
		Means: make([]float64, n),
		Stds:  make([]float64, n),
	}

	for i := 0; i < n; i++ {
		for j := range features {
			if len(features[j]) != n {
				return NormParams{}, errors.Errorf("feature vector %d has length %d, want %d", j, len(features[j]), n)
			}
			column[j] = features[j][i]
		}

		mean, std := stat.MeanStdDev(column, nil)
		if math.IsNaN(mean) || math.IsInf(mean, 0) {
			mean = 0
		}
		if math.IsNaN(std) || math.IsInf(std, 0) || std < stdFloor {
			std = 1
		}

		p.Means[i] = mean
		p.Stds[i] = std
	}

	return p, nil
}

// Len returns the number of features the params were fitted for, or 0 for
// the zero value.
func (p NormParams) Len() int {
	return len(p.Means)
}

// Valid reports whether the params are usable: fitted, consistent, and with
// strictly positive deviations.
func (p NormParams) Valid() bool {
	if len(p.Means) == 0 || len(p.Means) != len(p.Stds) {
		return false
	}
	for i := range p.Stds {
		if !(p.Stds[i] > 0) {
			return false
		}
	}
	return true
}

// Apply returns the standardized copy of v. The input is left untouched.
func (p NormParams) Apply(v []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = (v[i] - p.Means[i]) / p.Stds[i]
	}
	return out
}
