package kinet

import "time"

// ClassificationResult is the outcome of one inference: the winning label,
// its probability, the full distribution over all classes (indexed like the
// classifier's Labels), and how long the forward pass took. Results are
// immutable; one is produced per Predict call.
type ClassificationResult struct {
	Label        string
	Confidence   float64
	Distribution []float64
	Latency      time.Duration
}
