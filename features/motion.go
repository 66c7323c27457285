package features

import (
	"math"

	"github.com/kinetml/kinet"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Number of per-axis statistics: mean, std, min, max.
const motionStats = 4

// MotionExtractor summarizes a window of 6-axis IMU samples (3 accelerometer
// + 3 gyroscope values per sample) into per-axis statistics. The feature
// index is axis*4 + stat, axis-major in the kinet.AccelX..GyroZ order, stat
// order mean, std, min, max.
type MotionExtractor struct{}

// Extract computes mean/std/min/max for each of the six axes. A degenerate
// standard deviation (constant axis, or fewer than two samples) floors to
// 1.0, preventing divide-by-zero in later normalization. An empty window
// yields zero means/minima/maxima with the same floored deviations.
func (MotionExtractor) Extract(w kinet.Window) ([]float64, error) {
	out := make([]float64, kinet.FeatureCount)
	if w.Empty() {
		for axis := 0; axis < kinet.MotionValues; axis++ {
			out[axis*motionStats+1] = 1.0
		}
		return out, nil
	}

	column := make([]float64, len(w.Samples))
	for axis := 0; axis < kinet.MotionValues; axis++ {
		for i, s := range w.Samples {
			if len(s.Values) < kinet.MotionValues {
				return nil, errors.Wrapf(kinet.ErrInvalidInput,
					"motion sample %d has %d values, want %d", i, len(s.Values), kinet.MotionValues)
			}
			column[i] = s.Values[axis]
		}

		mean, std := stat.MeanStdDev(column, nil)
		min, max := column[0], column[0]
		for _, v := range column[1:] {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}

		if math.IsNaN(std) || math.IsInf(std, 0) || std == 0 {
			std = 1.0
		}

		base := axis * motionStats
		out[base+0] = finite(mean)
		out[base+1] = std
		out[base+2] = finite(min)
		out[base+3] = finite(max)
	}

	return out, nil
}
