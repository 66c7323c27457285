package kinet

import "time"

// FeatureCount is the fixed length of every feature vector. Both extraction
// strategies fill all slots so that one network shape serves both.
const FeatureCount = 24

// Value indices for motion samples: three accelerometer axes followed by
// three gyroscope axes.
const (
	AccelX = iota
	AccelY
	AccelZ
	GyroX
	GyroY
	GyroZ
	MotionValues
)

// Value indices for touch samples.
const (
	TouchX = iota
	TouchY
	TouchPressure
	TouchSize
	TouchValues
)

// TouchPhase is the pointer transition carried by a touch sample. Motion
// samples leave it at PhaseNone.
type TouchPhase int

const (
	PhaseNone TouchPhase = iota
	PhaseDown
	PhaseMove
	PhaseUp
)

// Sample is one raw sensor reading: a small value vector plus a monotonic
// timestamp. Samples are produced externally at a fixed nominal rate and are
// never mutated after capture.
type Sample struct {
	Values  []float64
	Time    time.Time
	Phase   TouchPhase
	Pointer int // finger id; touch streams only
}

// Window is a fixed-length ordered run of samples forming one classification
// or training unit. Label is set only on training windows.
type Window struct {
	Samples  []Sample
	Label    string
	Duration time.Duration
}

// Empty reports whether the window holds no samples.
func (w Window) Empty() bool {
	return len(w.Samples) == 0
}

// Seconds returns the window duration in seconds, falling back to the span
// between the first and last sample timestamps when Duration is unset.
func (w Window) Seconds() float64 {
	if w.Duration > 0 {
		return w.Duration.Seconds()
	}
	if len(w.Samples) < 2 {
		return 0
	}
	return w.Samples[len(w.Samples)-1].Time.Sub(w.Samples[0].Time).Seconds()
}
