package aggregate

import (
	"github.com/kinetml/kinet"
)

// Strategy selects one of the closed set of consensus computations. Each is
// a pure function of the history; consensus dispatches exhaustively.
type Strategy int

const (
	// RecencyWeighted is the default: confidence-weighted averaging with a
	// geometric age decay on top.
	RecencyWeighted Strategy = iota

	// Majority takes the highest raw label frequency.
	Majority

	// WeightedAverage sums each result's full distribution weighted by its
	// own confidence.
	WeightedAverage

	// ConfidenceThreshold is a majority vote restricted to results at or
	// above the confidence floor, falling back to the most recent raw
	// result (with SampleCount 0) when none qualify.
	ConfidenceThreshold
)

func (s Strategy) String() string {
	switch s {
	case RecencyWeighted:
		return "recency-weighted"
	case Majority:
		return "majority"
	case WeightedAverage:
		return "weighted-average"
	case ConfidenceThreshold:
		return "confidence-threshold"
	}
	return "unknown"
}

// consensus computes the aggregate of the history (oldest first) under the
// configured strategy.
func consensus(cfg Config, history []kinet.ClassificationResult) Result {
	switch cfg.Strategy {
	case Majority:
		return majority(cfg.Labels, history)
	case WeightedAverage:
		return weightedAverage(cfg.Labels, history)
	case ConfidenceThreshold:
		return confidenceThreshold(cfg.Labels, cfg.ConfidenceFloor, history)
	default:
		return recencyWeighted(cfg.Labels, cfg.Decay, history)
	}
}

func majority(labels []string, history []kinet.ClassificationResult) Result {
	counts := make([]float64, len(labels))
	for _, r := range history {
		if i := labelIndex(labels, r.Label); i >= 0 {
			counts[i]++
		}
	}
	return fromWeights(labels, counts, Majority, len(history))
}

func weightedAverage(labels []string, history []kinet.ClassificationResult) Result {
	weights := make([]float64, len(labels))
	for _, r := range history {
		accumulate(labels, weights, r, r.Confidence)
	}
	return fromWeights(labels, weights, WeightedAverage, len(history))
}

// recencyWeighted weights each result's distribution by its confidence times
// decay^i, with i counted from the oldest retained result. Accumulated
// agreement therefore outweighs a single fresh outlier (the damping the
// plain weighted average lacks), while the bounded history ages old evidence
// out entirely.
func recencyWeighted(labels []string, decay float64, history []kinet.ClassificationResult) Result {
	weights := make([]float64, len(labels))
	w := 1.0
	for _, r := range history {
		accumulate(labels, weights, r, r.Confidence*w)
		w *= decay
	}
	return fromWeights(labels, weights, RecencyWeighted, len(history))
}

func confidenceThreshold(labels []string, floor float64, history []kinet.ClassificationResult) Result {
	counts := make([]float64, len(labels))
	qualified := 0
	for _, r := range history {
		if r.Confidence < floor {
			continue
		}
		if i := labelIndex(labels, r.Label); i >= 0 {
			counts[i]++
			qualified++
		}
	}

	if qualified == 0 {
		// No confident consensus: surface the newest raw result and signal
		// the fallback with SampleCount 0.
		newest := history[len(history)-1]
		dist := make([]float64, len(newest.Distribution))
		copy(dist, newest.Distribution)
		return Result{
			Label:        newest.Label,
			Confidence:   newest.Confidence,
			Strategy:     ConfidenceThreshold,
			Distribution: dist,
			SampleCount:  0,
		}
	}
	return fromWeights(labels, counts, ConfidenceThreshold, qualified)
}

// accumulate adds the result's distribution, scaled by weight, into acc.
// Results whose distribution does not line up with the label set contribute
// their weight to the winning label only.
func accumulate(labels []string, acc []float64, r kinet.ClassificationResult, weight float64) {
	if len(r.Distribution) == len(acc) {
		for i, p := range r.Distribution {
			acc[i] += weight * p
		}
		return
	}
	if i := labelIndex(labels, r.Label); i >= 0 {
		acc[i] += weight
	}
}

// fromWeights normalizes the accumulated weights into a distribution and
// picks the winner.
func fromWeights(labels []string, weights []float64, s Strategy, samples int) Result {
	var total float64
	best := 0
	for i, w := range weights {
		total += w
		if w > weights[best] {
			best = i
		}
	}

	dist := make([]float64, len(weights))
	if total > 0 {
		for i, w := range weights {
			dist[i] = w / total
		}
	}

	return Result{
		Label:        labels[best],
		Confidence:   dist[best],
		Strategy:     s,
		Distribution: dist,
		SampleCount:  samples,
	}
}

func labelIndex(labels []string, label string) int {
	for i, l := range labels {
		if l == label {
			return i
		}
	}
	return -1
}
