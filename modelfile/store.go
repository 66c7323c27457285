package modelfile

import (
	"os"
	"path/filepath"
	"time"

	"github.com/kinetml/kinet"
	"github.com/pkg/errors"
)

// Format selects the on-disk encoding of a Store.
type Format int

const (
	FormatBinary Format = iota
	FormatText
)

// ModelInfo describes a persisted model file.
type ModelInfo struct {
	Path     string
	Size     int64
	Modified time.Time
	Dims     Dims
}

// Store persists one model at a fixed path. Saves are all-or-nothing: the
// model is written to a temporary file in the same directory and renamed
// over the target, so a failed save never clobbers the previous model.
// I/O and corruption problems are caught here and reported as return values,
// never thrown past the boundary, and never touch the in-memory model.
type Store struct {
	path   string
	dims   Dims
	format Format
}

// NewStore returns a store for the given path and expected dims.
func NewStore(path string, dims Dims, format Format) *Store {
	return &Store{path: path, dims: dims, format: format}
}

// Path returns the target file path.
func (s *Store) Path() string { return s.path }

// Save persists p atomically. On any error the previous file (if one exists)
// is left intact.
func (s *Store) Save(p kinet.ModelParams) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrapf(err, "creating model directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp*")
	if err != nil {
		return errors.Wrapf(err, "creating temporary model file")
	}

	finished := false
	defer func() {
		if !finished {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	switch s.format {
	case FormatText:
		err = WriteText(tmp, p)
	default:
		err = WriteBinary(tmp, p)
	}
	if err != nil {
		return errors.Wrapf(err, "encoding model to %s", tmp.Name())
	}

	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing temporary model file")
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrapf(err, "replacing model file %s", s.path)
	}
	finished = true
	return nil
}

// Load reads the persisted model. ok is false when there is no usable model:
// the file is missing (err nil) or unreadable/corrupt (err describes why,
// for logging). Callers always degrade to the untrained state on !ok.
func (s *Store) Load() (p kinet.ModelParams, ok bool, err error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return kinet.ModelParams{}, false, nil
	}
	if err != nil {
		return kinet.ModelParams{}, false, errors.Wrapf(err, "opening model file %s", s.path)
	}
	defer f.Close()

	switch s.format {
	case FormatText:
		p, err = ReadText(f, s.dims)
	default:
		p, err = ReadBinary(f, s.dims)
	}
	if err != nil {
		return kinet.ModelParams{}, false, err
	}
	return p, true, nil
}

// HasModel reports whether a model file exists at the store's path.
func (s *Store) HasModel() bool {
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

// Delete removes the persisted model. Deleting a store with no model is not
// an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "deleting model file %s", s.path)
	}
	return nil
}

// Info describes the persisted model file, if one exists.
func (s *Store) Info() (ModelInfo, bool) {
	info, err := os.Stat(s.path)
	if err != nil || info.IsDir() {
		return ModelInfo{}, false
	}
	return ModelInfo{
		Path:     s.path,
		Size:     info.Size(),
		Modified: info.ModTime(),
		Dims:     s.dims,
	}, true
}
