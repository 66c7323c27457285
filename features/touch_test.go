package features

import (
	"math"
	"testing"
	"time"

	"github.com/kinetml/kinet"
	"github.com/pkg/errors"
)

const (
	testScreenW = 900.0
	testScreenH = 900.0
)

func touchSample(sec, x, y float64, phase kinet.TouchPhase, pointer int) kinet.Sample {
	return kinet.Sample{
		Values:  []float64{x, y, 0.5, 0.2},
		Time:    time.Unix(0, 0).Add(time.Duration(sec * float64(time.Second))),
		Phase:   phase,
		Pointer: pointer,
	}
}

func touchWindow(samples ...kinet.Sample) kinet.Window {
	return kinet.Window{Samples: samples}
}

func testExtractor() TouchExtractor {
	return TouchExtractor{ScreenW: testScreenW, ScreenH: testScreenH}
}

func TestTouchExtractTap(t *testing.T) {
	// One short, nearly stationary stroke over a two second window.
	w := touchWindow(
		touchSample(0.0, 100, 100, kinet.PhaseDown, 0),
		touchSample(0.1, 110, 105, kinet.PhaseUp, 0),
		touchSample(2.0, 110, 105, kinet.PhaseNone, 0),
	)

	fv, err := testExtractor().Extract(w)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(fv) != kinet.FeatureCount {
		t.Fatalf("feature vector has %d values, want %d", len(fv), kinet.FeatureCount)
	}

	if math.Abs(fv[tfTapRate]-0.5) > 1e-12 {
		t.Errorf("tap rate == %v, want 0.5 (one tap over two seconds)", fv[tfTapRate])
	}
	if math.Abs(fv[tfTapDurationMean]-0.1) > 1e-9 {
		t.Errorf("tap duration mean == %v, want 0.1", fv[tfTapDurationMean])
	}
	if fv[tfSwipeVelocityMean] != 0 || fv[tfSwipeLengthMean] != 0 {
		t.Errorf("tap window reported swipe stats: %v %v", fv[tfSwipeVelocityMean], fv[tfSwipeLengthMean])
	}
	if fv[tfDragFraction] != 0 {
		t.Errorf("drag fraction == %v, want 0", fv[tfDragFraction])
	}
	if math.Abs(fv[tfPressureMean]-0.5) > 1e-12 {
		t.Errorf("pressure mean == %v, want 0.5", fv[tfPressureMean])
	}
	if math.Abs(fv[tfTouchSizeMean]-0.2) > 1e-12 {
		t.Errorf("touch size mean == %v, want 0.2", fv[tfTouchSizeMean])
	}
}

func TestTouchExtractSwipe(t *testing.T) {
	// 400px in 0.3s: too long for a tap, fast and far enough for a swipe.
	w := touchWindow(
		touchSample(0.0, 100, 500, kinet.PhaseDown, 0),
		touchSample(0.15, 300, 500, kinet.PhaseMove, 0),
		touchSample(0.3, 500, 500, kinet.PhaseUp, 0),
	)

	fv, err := testExtractor().Extract(w)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if fv[tfTapRate] != 0 {
		t.Errorf("swipe counted as a tap: rate %v", fv[tfTapRate])
	}
	if math.Abs(fv[tfSwipeLengthMean]-400) > 1e-9 {
		t.Errorf("swipe length mean == %v, want 400", fv[tfSwipeLengthMean])
	}
	if math.Abs(fv[tfSwipeVelocityMean]-400/0.3) > 1e-6 {
		t.Errorf("swipe velocity mean == %v, want %v", fv[tfSwipeVelocityMean], 400/0.3)
	}
	if math.Abs(fv[tfSwipeLinearityMean]-1) > 1e-12 {
		t.Errorf("straight swipe linearity == %v, want 1", fv[tfSwipeLinearityMean])
	}
}

func TestTouchExtractDragAndDraw(t *testing.T) {
	w := touchWindow(
		// Slow straight stroke: too slow for a swipe, straightness 1.
		touchSample(0.0, 100, 100, kinet.PhaseDown, 0),
		touchSample(1.0, 180, 100, kinet.PhaseUp, 0),
		// Zigzag stroke: long path, tiny direct distance.
		touchSample(1.5, 100, 100, kinet.PhaseDown, 0),
		touchSample(2.0, 300, 100, kinet.PhaseMove, 0),
		touchSample(2.5, 100, 105, kinet.PhaseUp, 0),
	)

	fv, err := testExtractor().Extract(w)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if fv[tfTapRate] != 0 {
		t.Errorf("drag window counted taps: rate %v", fv[tfTapRate])
	}
	if fv[tfDragFraction] != 1 {
		t.Errorf("drag fraction == %v, want 1 (both strokes are drags or draws)", fv[tfDragFraction])
	}
	if math.Abs(fv[tfGestureRate]-2/2.5) > 1e-9 {
		t.Errorf("gesture rate == %v, want %v", fv[tfGestureRate], 2/2.5)
	}
}

func TestTouchExtractInterTapIntervals(t *testing.T) {
	// Tap starts at 0, 0.5 and 1.2: intervals 0.5 and 0.7.
	w := touchWindow(
		touchSample(0.0, 100, 100, kinet.PhaseDown, 0),
		touchSample(0.05, 100, 100, kinet.PhaseUp, 0),
		touchSample(0.5, 200, 200, kinet.PhaseDown, 0),
		touchSample(0.55, 200, 200, kinet.PhaseUp, 0),
		touchSample(1.2, 300, 300, kinet.PhaseDown, 0),
		touchSample(1.25, 300, 300, kinet.PhaseUp, 0),
	)

	fv, err := testExtractor().Extract(w)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if math.Abs(fv[tfInterTapMean]-0.6) > 1e-9 {
		t.Errorf("inter-tap mean == %v, want 0.6", fv[tfInterTapMean])
	}
	wantStd := math.Sqrt(0.02) // sample std of {0.5, 0.7}
	if math.Abs(fv[tfInterTapStd]-wantStd) > 1e-9 {
		t.Errorf("inter-tap std == %v, want %v", fv[tfInterTapStd], wantStd)
	}
}

func TestTouchExtractZoneHistogram(t *testing.T) {
	// Downs in the top-left, center and bottom-right thirds of a 900x900
	// screen: each zone gets one third of the mass.
	w := touchWindow(
		touchSample(0.0, 100, 100, kinet.PhaseDown, 0),
		touchSample(0.05, 100, 100, kinet.PhaseUp, 0),
		touchSample(0.5, 450, 450, kinet.PhaseDown, 0),
		touchSample(0.55, 450, 450, kinet.PhaseUp, 0),
		touchSample(1.0, 850, 850, kinet.PhaseDown, 0),
		touchSample(1.05, 850, 850, kinet.PhaseUp, 0),
	)

	fv, err := testExtractor().Extract(w)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	third := 1.0 / 3
	for i := 0; i < 9; i++ {
		want := 0.0
		if i == 0 || i == 4 || i == 8 {
			want = third
		}
		if math.Abs(fv[tfZoneHistogram+i]-want) > 1e-12 {
			t.Errorf("zone %d == %v, want %v", i, fv[tfZoneHistogram+i], want)
		}
	}
}

func TestTouchExtractMultiPointer(t *testing.T) {
	// Two fingers down simultaneously; both strokes must be tracked apart.
	w := touchWindow(
		touchSample(0.0, 100, 100, kinet.PhaseDown, 0),
		touchSample(0.0, 700, 700, kinet.PhaseDown, 1),
		touchSample(0.1, 105, 100, kinet.PhaseUp, 0),
		touchSample(0.1, 705, 700, kinet.PhaseUp, 1),
		touchSample(1.0, 705, 700, kinet.PhaseNone, 1),
	)

	fv, err := testExtractor().Extract(w)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if math.Abs(fv[tfTapRate]-2) > 1e-9 {
		t.Errorf("tap rate == %v, want 2 (two taps over one second)", fv[tfTapRate])
	}
}

func TestTouchExtractUnclosedStroke(t *testing.T) {
	// A down with no up is still a gesture, closed at the window edge.
	w := touchWindow(
		touchSample(0.0, 100, 100, kinet.PhaseDown, 0),
		touchSample(1.0, 300, 100, kinet.PhaseMove, 0),
	)

	fv, err := testExtractor().Extract(w)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if fv[tfGestureRate] == 0 {
		t.Errorf("unclosed stroke produced no gesture")
	}
}

func TestTouchExtractEmptyWindow(t *testing.T) {
	fv, err := testExtractor().Extract(kinet.Window{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for i, v := range fv {
		if v != 0 {
			t.Errorf("feature %d == %v on an empty window, want 0", i, v)
		}
	}
}

func TestTouchExtractErrors(t *testing.T) {
	w := touchWindow(touchSample(0, 100, 100, kinet.PhaseDown, 0))

	if _, err := (TouchExtractor{}).Extract(w); errors.Cause(err) != kinet.ErrInvalidInput {
		t.Errorf("zero screen dimensions: %v, want ErrInvalidInput", err)
	}

	short := touchWindow(kinet.Sample{Values: []float64{1, 2}, Time: time.Unix(0, 0)})
	if _, err := testExtractor().Extract(short); errors.Cause(err) != kinet.ErrInvalidInput {
		t.Errorf("short sample: %v, want ErrInvalidInput", err)
	}
}

func TestMinMaxScaler(t *testing.T) {
	s, err := FitMinMax([][]float64{
		{0, 10, 3},
		{10, 20, 3},
	})
	if err != nil {
		t.Fatalf("FitMinMax: %v", err)
	}

	out := s.Apply([]float64{5, 15, 3})
	want := []float64{0.5, 0.5, 0} // zero-range index maps to 0
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-12 {
			t.Errorf("scaled[%d] == %v, want %v", i, out[i], want[i])
		}
	}

	if _, err := FitMinMax(nil); err == nil {
		t.Errorf("empty fit accepted")
	}
	if _, err := FitMinMax([][]float64{{1, 2}, {1}}); err == nil {
		t.Errorf("ragged fit accepted")
	}
}
