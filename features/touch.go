package features

import (
	"math"
	"sort"

	"github.com/kinetml/kinet"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Gesture classification thresholds, in pixels and seconds.
const (
	tapMaxDuration      = 0.200
	tapMaxPath          = 50.0
	swipeMinDistance    = 100.0
	swipeMinVelocity    = 500.0
	dragMinStraightness = 0.8
)

// Touch feature vector indices.
const (
	tfTapRate = iota
	tfTapDurationMean
	tfTapDurationStd
	tfPressureMean
	tfPressureStd
	tfSwipeVelocityMean
	tfSwipeLengthMean
	tfSwipeLinearityMean
	tfInterTapMean
	tfInterTapStd
	tfCenterOfMassX
	tfCenterOfMassY
	tfZoneHistogram           // 9 slots, 3x3 row-major
	tfGestureRate   = iota + 8 // skips past the histogram block
	tfDragFraction
	tfTouchSizeMean
)

type gestureKind int

const (
	gestureTap gestureKind = iota
	gestureSwipe
	gestureDrag
	gestureDraw
)

// gesture is one per-finger down..up stroke with its derived measurements.
type gesture struct {
	kind         gestureKind
	start        float64 // seconds from window start
	duration     float64
	pathLength   float64
	directDist   float64
	velocity     float64 // direct distance over duration
	straightness float64 // direct / path
}

// TouchExtractor summarizes a window of pointer samples (x, y, pressure,
// size per sample) into gesture-level features. Screen dimensions are
// required for coordinate normalization of the center of mass and the 3x3
// zone histogram.
type TouchExtractor struct {
	ScreenW float64
	ScreenH float64
}

// Extract groups samples into per-finger gestures by down/move/up
// transitions, classifies each as tap, swipe, drag or draw, and fills all
// kinet.FeatureCount slots. An empty window yields the all-zero vector.
func (e TouchExtractor) Extract(w kinet.Window) ([]float64, error) {
	out := make([]float64, kinet.FeatureCount)
	if w.Empty() {
		return out, nil
	}
	if e.ScreenW <= 0 || e.ScreenH <= 0 {
		return nil, errors.Wrapf(kinet.ErrInvalidInput,
			"screen dimensions %gx%g are not positive", e.ScreenW, e.ScreenH)
	}
	for i, s := range w.Samples {
		if len(s.Values) < kinet.TouchValues {
			return nil, errors.Wrapf(kinet.ErrInvalidInput,
				"touch sample %d has %d values, want %d", i, len(s.Values), kinet.TouchValues)
		}
	}

	gestures := e.groupGestures(w)
	seconds := w.Seconds()

	var (
		taps         []gesture
		swipes       []gesture
		dragsOrDraws int
	)
	for _, g := range gestures {
		switch g.kind {
		case gestureTap:
			taps = append(taps, g)
		case gestureSwipe:
			swipes = append(swipes, g)
		default:
			dragsOrDraws++
		}
	}

	// Tap statistics and inter-tap intervals (by tap start time).
	if len(taps) > 0 {
		if seconds > 0 {
			out[tfTapRate] = finite(float64(len(taps)) / seconds)
		}
		durations := make([]float64, len(taps))
		starts := make([]float64, len(taps))
		for i, g := range taps {
			durations[i] = g.duration
			starts[i] = g.start
		}
		out[tfTapDurationMean], out[tfTapDurationStd] = finiteMoments(durations)

		sort.Float64s(starts)
		if len(starts) > 1 {
			intervals := make([]float64, len(starts)-1)
			for i := 1; i < len(starts); i++ {
				intervals[i-1] = starts[i] - starts[i-1]
			}
			out[tfInterTapMean], out[tfInterTapStd] = finiteMoments(intervals)
		}
	}

	// Pressure and touch-size moments over the full window.
	pressures := make([]float64, len(w.Samples))
	sizes := make([]float64, len(w.Samples))
	for i, s := range w.Samples {
		pressures[i] = s.Values[kinet.TouchPressure]
		sizes[i] = s.Values[kinet.TouchSize]
	}
	out[tfPressureMean], out[tfPressureStd] = finiteMoments(pressures)
	mean, _ := finiteMoments(sizes)
	out[tfTouchSizeMean] = mean

	// Swipe statistics.
	if len(swipes) > 0 {
		var vel, length, lin float64
		for _, g := range swipes {
			vel += g.velocity
			length += g.directDist
			lin += g.straightness
		}
		n := float64(len(swipes))
		out[tfSwipeVelocityMean] = finite(vel / n)
		out[tfSwipeLengthMean] = finite(length / n)
		out[tfSwipeLinearityMean] = finite(lin / n)
	}

	// Center of mass of all samples, screen-normalized.
	var comX, comY float64
	for _, s := range w.Samples {
		comX += s.Values[kinet.TouchX] / e.ScreenW
		comY += s.Values[kinet.TouchY] / e.ScreenH
	}
	out[tfCenterOfMassX] = finite(comX / float64(len(w.Samples)))
	out[tfCenterOfMassY] = finite(comY / float64(len(w.Samples)))

	// 3x3 spatial zone histogram, normalized by the number of down events.
	downs := 0
	for _, s := range w.Samples {
		if s.Phase != kinet.PhaseDown {
			continue
		}
		downs++
		col := zoneIndex(s.Values[kinet.TouchX], e.ScreenW)
		row := zoneIndex(s.Values[kinet.TouchY], e.ScreenH)
		out[tfZoneHistogram+row*3+col]++
	}
	if downs > 0 {
		for i := 0; i < 9; i++ {
			out[tfZoneHistogram+i] /= float64(downs)
		}
	}

	if seconds > 0 {
		out[tfGestureRate] = finite(float64(len(gestures)) / seconds)
	}
	if len(gestures) > 0 {
		out[tfDragFraction] = float64(dragsOrDraws) / float64(len(gestures))
	}

	return out, nil
}

// groupGestures splits the window into per-finger strokes. A stroke opens on
// PhaseDown, extends over PhaseMove and closes on PhaseUp; a stroke still
// open at the window edge is closed with what it has. Moves without a
// preceding down are dropped.
func (e TouchExtractor) groupGestures(w kinet.Window) []gesture {
	type stroke struct {
		xs, ys []float64
		times  []float64
	}

	origin := w.Samples[0].Time
	open := make(map[int]*stroke)
	var gestures []gesture

	closeStroke := func(s *stroke) {
		if len(s.xs) == 0 {
			return
		}
		gestures = append(gestures, e.measure(s.xs, s.ys, s.times))
	}

	for _, s := range w.Samples {
		t := s.Time.Sub(origin).Seconds()
		switch s.Phase {
		case kinet.PhaseDown:
			if prev, ok := open[s.Pointer]; ok {
				closeStroke(prev)
			}
			open[s.Pointer] = &stroke{
				xs:    []float64{s.Values[kinet.TouchX]},
				ys:    []float64{s.Values[kinet.TouchY]},
				times: []float64{t},
			}
		case kinet.PhaseMove, kinet.PhaseUp:
			st, ok := open[s.Pointer]
			if !ok {
				continue
			}
			st.xs = append(st.xs, s.Values[kinet.TouchX])
			st.ys = append(st.ys, s.Values[kinet.TouchY])
			st.times = append(st.times, t)
			if s.Phase == kinet.PhaseUp {
				closeStroke(st)
				delete(open, s.Pointer)
			}
		}
	}

	// Strokes left open at the window edge.
	pointers := make([]int, 0, len(open))
	for p := range open {
		pointers = append(pointers, p)
	}
	sort.Ints(pointers)
	for _, p := range pointers {
		closeStroke(open[p])
	}

	return gestures
}

// measure derives the stroke's measurements and classifies it.
func (e TouchExtractor) measure(xs, ys, times []float64) gesture {
	g := gesture{start: times[0]}
	g.duration = times[len(times)-1] - times[0]

	for i := 1; i < len(xs); i++ {
		g.pathLength += math.Hypot(xs[i]-xs[i-1], ys[i]-ys[i-1])
	}
	g.directDist = math.Hypot(xs[len(xs)-1]-xs[0], ys[len(ys)-1]-ys[0])

	if g.duration > 0 {
		g.velocity = g.directDist / g.duration
	}
	if g.pathLength > 0 {
		g.straightness = g.directDist / g.pathLength
	} else {
		g.straightness = 1
	}

	switch {
	case g.duration < tapMaxDuration && g.pathLength < tapMaxPath:
		g.kind = gestureTap
	case g.directDist > swipeMinDistance && g.velocity > swipeMinVelocity:
		g.kind = gestureSwipe
	case g.straightness >= dragMinStraightness:
		g.kind = gestureDrag
	default:
		g.kind = gestureDraw
	}
	return g
}

// zoneIndex maps a coordinate to its third of the screen, clamped to [0,2].
func zoneIndex(v, span float64) int {
	idx := int(v / span * 3)
	if idx < 0 {
		return 0
	}
	if idx > 2 {
		return 2
	}
	return idx
}

// finiteMoments returns the finite mean and standard deviation of vs; a
// degenerate or single-value set reports std 0.
func finiteMoments(vs []float64) (float64, float64) {
	if len(vs) == 0 {
		return 0, 0
	}
	if len(vs) == 1 {
		return finite(vs[0]), 0
	}
	mean, std := stat.MeanStdDev(vs, nil)
	return finite(mean), finite(std)
}
