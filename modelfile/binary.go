// Package modelfile implements the persistence formats of the classifier:
// a binary layout of raw little-endian 32-bit float words for the full
// variant, a line-oriented text layout for the online variant, and a
// file-backed Store wrapping both.
//
// Deserialization is defensive throughout: any length mismatch, short read
// or trailing garbage degrades to "no model" (a CorruptModel error) rather
// than crashing, so persistence problems can never prevent falling back to
// an untrained state.
package modelfile

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/kinetml/kinet"
	"github.com/pkg/errors"
)

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Binary header. Unknown versions are rejected as corrupt so the layout can
// evolve without misreading old files.
const (
	binaryMagic   uint32 = 0x6b4e4554 // "kNET"
	binaryVersion uint32 = 1
)

// Dims are the layer sizes a reader expects. Every section length in both
// formats is derived from them.
type Dims struct {
	In      int
	Hidden1 int
	Hidden2 int
	Classes int
}

// ClassifierDims returns the dims of the given classifier configuration.
func ClassifierDims(hidden1, hidden2, classes int) Dims {
	if hidden1 <= 0 {
		hidden1 = kinet.DefaultHidden1
	}
	if hidden2 <= 0 {
		hidden2 = kinet.DefaultHidden2
	}
	return Dims{In: kinet.FeatureCount, Hidden1: hidden1, Hidden2: hidden2, Classes: classes}
}

func (d Dims) valid() bool {
	return d.In > 0 && d.Hidden1 > 0 && d.Hidden2 > 0 && d.Classes > 1
}

// layerShapes returns (rows, cols) for the three weight matrices in order.
func (d Dims) layerShapes() [3][2]int {
	return [3][2]int{
		{d.Hidden1, d.In},
		{d.Hidden2, d.Hidden1},
		{d.Classes, d.Hidden2},
	}
}

// WriteBinary encodes p in the fixed order: magic, version, normalization
// means, normalization stds, then each weight matrix (row-major) and bias
// vector pair. All values are little-endian f32 words.
func WriteBinary(w io.Writer, p kinet.ModelParams) error {
	var buf bytes.Buffer

	write := func(vs []float64) {
		words := make([]float32, len(vs))
		for i, v := range vs {
			words[i] = float32(v)
		}
		binary.Write(&buf, binary.LittleEndian, words)
	}

	binary.Write(&buf, binary.LittleEndian, binaryMagic)
	binary.Write(&buf, binary.LittleEndian, binaryVersion)

	write(p.Means)
	write(p.Stds)
	for i := 0; i < 3; i++ {
		for _, row := range p.Weights[i] {
			write(row)
		}
		write(p.Biases[i])
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return errors.Wrapf(err, "writing binary model")
	}
	return nil
}

// ReadBinary decodes a model with the expected dims. Everything unexpected
// (bad magic or version, short reads, trailing bytes) returns a CorruptModel
// error; callers treat that as having no model.
func ReadBinary(r io.Reader, d Dims) (kinet.ModelParams, error) {
	var p kinet.ModelParams
	if !d.valid() {
		return p, errors.Wrapf(kinet.ErrCorruptModel, "invalid expected dims %+v", d)
	}

	var magic, version uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return p, errors.Wrapf(kinet.ErrCorruptModel, "reading magic: %v", err)
	}
	if magic != binaryMagic {
		return p, errors.Wrapf(kinet.ErrCorruptModel, "bad magic %#x", magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return p, errors.Wrapf(kinet.ErrCorruptModel, "reading version: %v", err)
	}
	if version != binaryVersion {
		return p, errors.Wrapf(kinet.ErrCorruptModel, "unsupported version %d", version)
	}

	read := func(n int, what string) ([]float64, error) {
		words := make([]float32, n)
		if err := binary.Read(r, binary.LittleEndian, words); err != nil {
			return nil, errors.Wrapf(kinet.ErrCorruptModel, "reading %s: %v", what, err)
		}
		vs := make([]float64, n)
		for i, w := range words {
			vs[i] = float64(w)
		}
		return vs, nil
	}

	var err error
	if p.Means, err = read(d.In, "normalization means"); err != nil {
		return kinet.ModelParams{}, err
	}
	if p.Stds, err = read(d.In, "normalization stds"); err != nil {
		return kinet.ModelParams{}, err
	}
	for i := range p.Means {
		if !isFinite(p.Means[i]) || !isFinite(p.Stds[i]) {
			return kinet.ModelParams{}, errors.Wrapf(kinet.ErrCorruptModel,
				"normalization value %d is not finite", i)
		}
	}

	for i, shape := range d.layerShapes() {
		rows, cols := shape[0], shape[1]
		p.Weights[i] = make([][]float64, rows)
		for v := 0; v < rows; v++ {
			if p.Weights[i][v], err = read(cols, "weights"); err != nil {
				return kinet.ModelParams{}, err
			}
		}
		if p.Biases[i], err = read(rows, "biases"); err != nil {
			return kinet.ModelParams{}, err
		}
	}

	// The layout is exact; anything left over is corruption.
	var trailing [1]byte
	if n, _ := r.Read(trailing[:]); n != 0 {
		return kinet.ModelParams{}, errors.Wrapf(kinet.ErrCorruptModel, "trailing bytes after model data")
	}

	return p, nil
}
