package kinet

import "github.com/pkg/errors"

// ModelParams is the serialization-neutral view of a classifier's learned
// state: normalization moments plus each weight matrix/bias pair in network
// order. The modelfile subpackage encodes and decodes this shape; neither
// side ever aliases a live classifier's buffers.
type ModelParams struct {
	Means []float64
	Stds  []float64

	Weights [3][][]float64
	Biases  [3][]float64

	// Text-format metadata; unused by the binary layout.
	Labels []string
	Epochs int
}

// Dims returns the layer sizes implied by the parameters:
// input, hidden1, hidden2, classes.
func (p ModelParams) Dims() (in, h1, h2, classes int) {
	if len(p.Weights[0]) == 0 {
		return 0, 0, 0, 0
	}
	return len(p.Weights[0][0]), len(p.Weights[0]), len(p.Weights[1]), len(p.Weights[2])
}

// ExportParams deep-copies the classifier's current parameters.
func (c *Classifier) ExportParams() ModelParams {
	p := exportLayers(c.layers)
	p.Means = append([]float64(nil), c.norm.Means...)
	p.Stds = append([]float64(nil), c.norm.Stds...)
	p.Labels = c.Labels()
	return p
}

// ImportParams replaces the classifier's parameters with a validated copy of
// p. Any dimension mismatch leaves the classifier untouched and returns a
// CorruptModel error; callers treat that as "no trained model".
func (c *Classifier) ImportParams(p ModelParams) error {
	if err := checkLayerDims(c.layers, p); err != nil {
		return err
	}
	if len(p.Means) != FeatureCount || len(p.Stds) != FeatureCount {
		return errors.Wrapf(ErrCorruptModel,
			"normalization has %d/%d values, want %d", len(p.Means), len(p.Stds), FeatureCount)
	}

	importLayers(c.layers, p)
	c.norm = NormParams{
		Means: append([]float64(nil), p.Means...),
		Stds:  append([]float64(nil), p.Stds...),
	}
	c.trained = true
	return nil
}

func exportLayers(layers [3]*DenseLayer) ModelParams {
	var p ModelParams
	for i, l := range layers {
		p.Weights[i] = make([][]float64, len(l.Weights))
		for v := range l.Weights {
			p.Weights[i][v] = append([]float64(nil), l.Weights[v]...)
		}
		p.Biases[i] = append([]float64(nil), l.Biases...)
	}
	return p
}

func checkLayerDims(layers [3]*DenseLayer, p ModelParams) error {
	for i, l := range layers {
		if len(p.Weights[i]) != l.Out || len(p.Biases[i]) != l.Out {
			return errors.Wrapf(ErrCorruptModel,
				"layer %d has %d rows / %d biases, want %d", i, len(p.Weights[i]), len(p.Biases[i]), l.Out)
		}
		for v := range p.Weights[i] {
			if len(p.Weights[i][v]) != l.In {
				return errors.Wrapf(ErrCorruptModel,
					"layer %d row %d has %d columns, want %d", i, v, len(p.Weights[i][v]), l.In)
			}
		}
	}
	return nil
}

func importLayers(layers [3]*DenseLayer, p ModelParams) {
	for i, l := range layers {
		for v := range l.Weights {
			copy(l.Weights[v], p.Weights[i][v])
		}
		copy(l.Biases, p.Biases[i])
	}
}
