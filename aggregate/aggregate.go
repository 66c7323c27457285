// Package aggregate turns the noisy stream of per-window classification
// results into a stable consensus label. It keeps a bounded, self-aging
// history of recent results, recomputes a pluggable consensus on every new
// result, and declares stability only after the consensus label has held for
// a minimum run of consecutive updates.
//
// Like the ring buffers it builds on, an Aggregator is a single-consumer
// primitive with no internal locking.
package aggregate

import (
	"time"

	"github.com/kinetml/kinet"
	"github.com/kinetml/kinet/ring"
	"github.com/pkg/errors"
)

// Defaults for Config's zero values.
const (
	DefaultHistorySize        = 10
	DefaultStabilityThreshold = 3
	DefaultDecay              = 0.8
	DefaultConfidenceFloor    = 0.5
)

// Result is the consensus over the current history. It is recomputed on
// every Add; SampleCount is the number of history entries that contributed
// (0 signals the confidence-threshold fallback, see ConfidenceThreshold).
type Result struct {
	Label        string
	Confidence   float64
	Strategy     Strategy
	Distribution []float64
	SampleCount  int
	Time         time.Time
}

// Config describes an Aggregator. Labels fixes the class order of consensus
// distributions and must match the classifier's label order.
type Config struct {
	Strategy           Strategy
	Labels             []string
	HistorySize        int
	StabilityThreshold int

	// Decay is the geometric age factor of RecencyWeighted; ConfidenceFloor
	// is the qualification bar of ConfidenceThreshold.
	Decay           float64
	ConfidenceFloor float64
}

func (cfg Config) withDefaults() Config {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if cfg.StabilityThreshold <= 0 {
		cfg.StabilityThreshold = DefaultStabilityThreshold
	}
	if cfg.Decay <= 0 || cfg.Decay >= 1 {
		cfg.Decay = DefaultDecay
	}
	if cfg.ConfidenceFloor <= 0 {
		cfg.ConfidenceFloor = DefaultConfidenceFloor
	}
	return cfg
}

// Aggregator consumes classification results and maintains the consensus and
// its stability state.
type Aggregator struct {
	cfg     Config
	history *ring.Buffer[kinet.ClassificationResult]

	candidate string
	streak    int
	stable    bool

	last    Result
	hasLast bool
}

// New constructs an aggregator. Labels is required.
func New(cfg Config) (*Aggregator, error) {
	if len(cfg.Labels) == 0 {
		return nil, errors.Errorf("aggregator needs the class labels")
	}
	cfg = cfg.withDefaults()

	h, err := ring.New[kinet.ClassificationResult](cfg.HistorySize)
	if err != nil {
		return nil, errors.Wrapf(err, "creating history ring")
	}
	return &Aggregator{cfg: cfg, history: h}, nil
}

// Add appends r to the history, recomputes the consensus under the
// configured strategy, advances the stability state and returns the new
// consensus.
func (a *Aggregator) Add(r kinet.ClassificationResult) Result {
	a.history.Push(r)

	res := consensus(a.cfg, a.history.Slice())
	res.Time = time.Now()

	if res.Label == a.candidate {
		a.streak++
	} else {
		a.candidate = res.Label
		a.streak = 1
	}
	a.stable = a.streak >= a.cfg.StabilityThreshold

	a.last = res
	a.hasLast = true
	return res
}

// Aggregated returns the most recent consensus, if any result has been added
// since the last reset.
func (a *Aggregator) Aggregated() (Result, bool) {
	return a.last, a.hasLast
}

// IsStable reports whether the current consensus label has held for at least
// the stability threshold of consecutive updates.
func (a *Aggregator) IsStable() bool {
	return a.stable
}

// StableLabel returns the candidate label only while stable; an unstable
// guess is never exposed.
func (a *Aggregator) StableLabel() (string, bool) {
	if !a.stable {
		return "", false
	}
	return a.candidate, true
}

// Reset clears the history and all stability state.
func (a *Aggregator) Reset() {
	a.history.Reset()
	a.candidate = ""
	a.streak = 0
	a.stable = false
	a.last = Result{}
	a.hasLast = false
}
