// Package dense materializes a data model into dense tiled arrays: one
// independently addressable array per variable, grouped under a directory
// per domain.  Writes are plain coordinate-range assignments, and appends
// are placed with an explicit offset vector.
package dense

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/batchatco/go-netcdf-store/internal/codec"
	"github.com/batchatco/go-netcdf-store/internal/names"
	"github.com/batchatco/go-netcdf-store/ncstore/api"
	"github.com/batchatco/go-netcdf-store/ncstore/dims"
	"github.com/batchatco/go-netcdf-store/ncstore/domain"
)

var logger = logrus.WithField("backend", "dense")

// Writer materializes one data model into a dense tiled store at
// outputPath/arrayName/domain_<i>/<variable>.
type Writer struct {
	model     api.DataModel
	outPath   string
	arrayName string
	unlimited map[string]bool
}

var _ api.Writer = (*Writer)(nil)

// Option configures a Writer.
type Option func(*Writer)

// WithArrayName overrides the store name derived from the source
// identifier.
func WithArrayName(name string) Option {
	return func(w *Writer) {
		w.arrayName = name
	}
}

// WithUnlimitedDims declares dimensions unbounded for this materialization,
// in addition to the data model's own unbounded set.
func WithUnlimitedDims(names ...string) Option {
	return func(w *Writer) {
		for _, n := range names {
			w.unlimited[n] = true
		}
	}
}

// NewWriter prepares a writer for one data model.  Nothing touches disk
// until Create or Append.
func NewWriter(model api.DataModel, outPath string, opts ...Option) *Writer {
	w := &Writer{
		model:     model,
		outPath:   outPath,
		unlimited: make(map[string]bool),
	}
	for _, d := range model.UnlimitedDimensions() {
		w.unlimited[d] = true
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.arrayName == "" {
		w.arrayName = baseName(model.Identifier())
	}
	return w
}

// ArrayPath returns where one variable's array lives on disk.
func (w *Writer) ArrayPath(varName string) (string, error) {
	tuple, ok := w.model.DomainFor(varName)
	if !ok {
		return "", fmt.Errorf("%w: %q has no domain", api.ErrNoSuchVariable, varName)
	}
	label, ok := domain.Label(w.model.Domains(), tuple)
	if !ok {
		return "", fmt.Errorf("%w: %q has no domain label", api.ErrNoSuchVariable, varName)
	}
	return filepath.Join(w.outPath, w.arrayName, label, varName), nil
}

// Create builds one group directory per domain and one array per data
// variable, then populates every array with its full payload and a
// verbatim copy of its attributes.  Pre-existing directories are not an
// error; pre-existing arrays are.
func (w *Writer) Create() error {
	if !names.IsValid(w.arrayName) {
		return fmt.Errorf("%w: %q", api.ErrBadName, w.arrayName)
	}
	domains := w.model.Domains()
	for _, tuple := range domains {
		label, _ := domain.Label(domains, tuple)
		groupDir := filepath.Join(w.outPath, w.arrayName, label)
		if err := createGroupDir(groupDir); err != nil {
			return err
		}

		vars := w.model.DomainVariables(tuple)
		logger.WithFields(logrus.Fields{
			"domain":    label,
			"dims":      strings.Join(tuple, ","),
			"variables": len(vars),
		}).Info("creating domain arrays")

		for _, name := range vars {
			v, err := w.model.Variable(name)
			if err != nil {
				return err
			}
			dir := filepath.Join(groupDir, name)
			if err := w.createArrayFor(v, dir); err != nil {
				return err
			}
			if err := w.populate(v, dir, nil, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// createGroupDir makes a domain group directory.  An already-existing
// directory is treated as success.
func createGroupDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	marker := filepath.Join(dir, groupMarker)
	f, err := os.OpenFile(marker, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// createArrayFor builds an empty array shaped by the variable's own
// translated dimensions.  Dimensions are never shared across variables,
// even within a domain.
func (w *Writer) createArrayFor(v api.Variable, dir string) error {
	if !names.IsValid(v.Name()) {
		return fmt.Errorf("%w: variable %q", api.ErrBadName, v.Name())
	}
	dtype, err := codec.FromGoType(v.Type())
	if err != nil {
		return fmt.Errorf("variable %s: %w", v.Name(), err)
	}
	tiles, err := w.model.ChunkSizes(v.Name())
	if err != nil {
		return err
	}

	dimNames := v.Dimensions()
	specs := make([]dimSpec, len(dimNames))
	for i, name := range dimNames {
		length, ok := w.model.DimensionLength(name)
		if !ok {
			return fmt.Errorf("%w: %q of variable %s", api.ErrNoSuchDimension, name, v.Name())
		}
		d, err := dims.Translate(name, length, w.unlimited[name], tiles[i])
		if err != nil {
			return err
		}
		specs[i] = dimSpec{Name: d.Name, Lower: d.Lower, Upper: d.Upper, Tile: d.Tile}
	}

	sc := schema{
		Attr: attrSpec{Name: v.Name(), DType: dtype},
		Dims: specs,
	}
	return createArray(dir, sc)
}

// populate writes the variable's full payload at the given offset vector.
// A nil offset writes at the origin; a single-element offset broadcasts to
// every dimension.  Attributes are copied only when writeMeta is set, so
// the copy happens exactly once, at creation time.
func (w *Writer) populate(v api.Variable, dir string, offset []int64, writeMeta bool) error {
	vals, err := v.Values()
	if err != nil {
		return fmt.Errorf("reading %s: %w", v.Name(), err)
	}
	data, shape, dtype, err := codec.Flatten(vals)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", v.Name(), err)
	}

	a, err := OpenArray(dir)
	if err != nil {
		return err
	}
	if a.DType() != dtype {
		return fmt.Errorf("%w: array %s holds %s, payload is %s",
			api.ErrTypeMismatch, dir, a.DType(), dtype)
	}

	offset = broadcast(offset, len(shape))
	if err := a.writeAt(offset, shape, data); err != nil {
		return err
	}
	if writeMeta {
		return a.setAttrs(v.Attributes())
	}
	return nil
}

// broadcast expands a scalar offset to every dimension and defaults a nil
// offset to the origin.
func broadcast(offset []int64, rank int) []int64 {
	switch len(offset) {
	case 0:
		return make([]int64, rank)
	case 1:
		out := make([]int64, rank)
		for i := range out {
			out[i] = offset[0]
		}
		return out
	default:
		return offset
	}
}

// Append extends one variable along one dimension with data from a second,
// newer data model.  The offset is the target array's current extent along
// that dimension, so the new data lands directly after the old.  The new
// data is assumed to be contiguous with the old: no gap, no overlap, and
// nothing here verifies that.
func (w *Writer) Append(other api.DataModel, varName, appendDim string) error {
	selfVar, err := w.model.Variable(varName)
	if err != nil {
		return fmt.Errorf("append target: %w", err)
	}
	otherVar, err := other.Variable(varName)
	if err != nil {
		return fmt.Errorf("append source: %w", err)
	}

	selfDims := selfVar.Dimensions()
	otherDims := otherVar.Dimensions()
	if !domain.Equal(selfDims, otherDims) {
		return fmt.Errorf("%w: %q has (%s), new data has (%s)",
			api.ErrDimensionMismatch, varName,
			strings.Join(selfDims, ","), strings.Join(otherDims, ","))
	}
	axis := -1
	for i, d := range selfDims {
		if d == appendDim {
			axis = i
			break
		}
	}
	if axis < 0 {
		return fmt.Errorf("%w: %q not in dimensions of %q",
			api.ErrNoSuchDimension, appendDim, varName)
	}

	dir, err := w.ArrayPath(varName)
	if err != nil {
		return err
	}
	a, err := OpenArray(dir)
	if err != nil {
		return err
	}

	offset := make([]int64, len(selfDims))
	offset[axis] = a.Shape()[axis]

	logger.WithFields(logrus.Fields{
		"variable": varName,
		"dim":      appendDim,
		"offset":   offset[axis],
	}).Info("appending")

	return w.populate(otherVar, dir, offset, false)
}

// baseName strips the directory and extension from a source identifier.
func baseName(source string) string {
	b := filepath.Base(source)
	return strings.TrimSuffix(b, filepath.Ext(b))
}
