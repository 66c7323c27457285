package modelfile

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/kinetml/kinet"
	"github.com/pkg/errors"
)

// WriteText encodes p for the online classifier variant: a three-line
// metadata header (class count, comma-joined labels, epoch count) followed
// by comma-separated rows for each weight matrix and bias vector, in the
// same fixed order as the binary layout. The text format carries no
// normalization params; the online variant owns none.
func WriteText(w io.Writer, p kinet.ModelParams) error {
	bw := bufio.NewWriter(w)

	bw.WriteString(strconv.Itoa(len(p.Labels)) + "\n")
	bw.WriteString(strings.Join(p.Labels, ",") + "\n")
	bw.WriteString(strconv.Itoa(p.Epochs) + "\n")

	for i := 0; i < 3; i++ {
		for _, row := range p.Weights[i] {
			bw.WriteString(joinFloats(row) + "\n")
		}
		bw.WriteString(joinFloats(p.Biases[i]) + "\n")
	}

	if err := bw.Flush(); err != nil {
		return errors.Wrapf(err, "writing text model")
	}
	return nil
}

// ReadText decodes a text model with the expected dims. Malformed headers,
// wrong row lengths or missing lines return a CorruptModel error.
func ReadText(r io.Reader, d Dims) (kinet.ModelParams, error) {
	var p kinet.ModelParams
	if !d.valid() {
		return p, errors.Wrapf(kinet.ErrCorruptModel, "invalid expected dims %+v", d)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	line := func(what string) (string, error) {
		if !sc.Scan() {
			return "", errors.Wrapf(kinet.ErrCorruptModel, "missing %s line", what)
		}
		return sc.Text(), nil
	}

	// Header: class count, labels, epoch count.
	countStr, err := line("class count")
	if err != nil {
		return p, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil || count != d.Classes {
		return p, errors.Wrapf(kinet.ErrCorruptModel, "class count %q does not match expected %d", countStr, d.Classes)
	}

	labelsStr, err := line("labels")
	if err != nil {
		return p, err
	}
	p.Labels = strings.Split(labelsStr, ",")
	if len(p.Labels) != count {
		return kinet.ModelParams{}, errors.Wrapf(kinet.ErrCorruptModel, "have %d labels, header says %d", len(p.Labels), count)
	}

	epochStr, err := line("epoch count")
	if err != nil {
		return kinet.ModelParams{}, err
	}
	if p.Epochs, err = strconv.Atoi(strings.TrimSpace(epochStr)); err != nil {
		return kinet.ModelParams{}, errors.Wrapf(kinet.ErrCorruptModel, "bad epoch count %q", epochStr)
	}

	row := func(n int, what string) ([]float64, error) {
		s, err := line(what)
		if err != nil {
			return nil, err
		}
		return parseFloats(s, n, what)
	}

	for i, shape := range d.layerShapes() {
		rows, cols := shape[0], shape[1]
		p.Weights[i] = make([][]float64, rows)
		for v := 0; v < rows; v++ {
			if p.Weights[i][v], err = row(cols, "weight row"); err != nil {
				return kinet.ModelParams{}, err
			}
		}
		if p.Biases[i], err = row(rows, "bias row"); err != nil {
			return kinet.ModelParams{}, err
		}
	}

	return p, nil
}

func joinFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func parseFloats(s string, n int, what string) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, errors.Wrapf(kinet.ErrCorruptModel, "%s has %d values, want %d", what, len(parts), n)
	}
	vs := make([]float64, n)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, errors.Wrapf(kinet.ErrCorruptModel, "%s value %d is not a number", what, i)
		}
		vs[i] = v
	}
	return vs, nil
}
