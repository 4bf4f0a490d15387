// Package zarr materializes a data model into a single zarr v2 directory
// container with one dataset per variable, flat across domains.  Every
// dataset is stamped with a dimension-name-list attribute because the
// container format has no named dimensions of its own.  Appends use the
// container's native resize-then-assign along the first axis.
package zarr

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/batchatco/go-netcdf-store/internal/codec"
	"github.com/batchatco/go-netcdf-store/internal/names"
	"github.com/batchatco/go-netcdf-store/ncstore/api"
	"github.com/batchatco/go-netcdf-store/ncstore/domain"
)

var logger = logrus.WithField("backend", "zarr")

// ErrAppendAxis means an append named a dimension other than the first.
// The container grows datasets along axis 0 only.
var ErrAppendAxis = errors.New("native append is limited to the first dimension")

const containerExt = ".zarr"

// Writer materializes one data model into outputPath/<groupName>.zarr.
type Writer struct {
	model     api.DataModel
	outPath   string
	groupName string
}

var _ api.Writer = (*Writer)(nil)

// Option configures a Writer.
type Option func(*Writer)

// WithGroupName overrides the container name derived from the source
// identifier.
func WithGroupName(name string) Option {
	return func(w *Writer) {
		w.groupName = name
	}
}

// NewWriter prepares a writer for one data model.
func NewWriter(model api.DataModel, outPath string, opts ...Option) *Writer {
	w := &Writer{
		model:   model,
		outPath: outPath,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.groupName == "" {
		w.groupName = baseName(model.Identifier())
	}
	return w
}

// Root returns the container directory.
func (w *Writer) Root() string {
	return filepath.Join(w.outPath, w.groupName+containerExt)
}

// Create builds the container and writes one dataset per data variable,
// domain by domain, then one per dimension-coordinate variable.  The
// layout is flat:
//
//	root
//	 | - phenom_0
//	 | - phenom_1
//	 | - ...
//	 | - dimension_0
//	 | - ...
func (w *Writer) Create() error {
	if !names.IsValid(w.groupName) {
		return fmt.Errorf("%w: %q", api.ErrBadName, w.groupName)
	}
	root := w.Root()
	if err := createContainer(root); err != nil {
		return err
	}

	for _, tuple := range w.model.Domains() {
		for _, name := range w.model.DomainVariables(tuple) {
			if err := w.createDatasetFor(root, name); err != nil {
				return err
			}
		}
	}
	for _, name := range w.model.DimCoordinates() {
		if err := w.createDatasetFor(root, name); err != nil {
			return err
		}
	}
	logger.WithField("container", root).Info("created container")
	return nil
}

func (w *Writer) createDatasetFor(root, name string) error {
	if !names.IsValid(name) {
		return fmt.Errorf("%w: variable %q", api.ErrBadName, name)
	}
	v, err := w.model.Variable(name)
	if err != nil {
		return err
	}
	dtype, err := codec.FromGoType(v.Type())
	if err != nil {
		return fmt.Errorf("variable %s: %w", name, err)
	}
	chunks, err := w.model.ChunkSizes(name)
	if err != nil {
		return err
	}

	vals, err := v.Values()
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	data, shape, _, err := codec.Flatten(vals)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	za := zarray{
		Chunks:     chunks,
		DType:      dtype.ZarrCode(),
		Order:      "C",
		Shape:      shape,
		ZarrFormat: zarrFormat,
	}
	if err := createDataset(root, name, za, v.Attributes(), v.Dimensions()); err != nil {
		return err
	}
	return writeRegion(root, name, za, make([]int64, len(shape)), shape, data)
}

// Append extends one variable with data from a second, newer data model,
// using the container's native append along axis 0.  The named append
// dimension must therefore be the variable's first dimension.  The new
// data is assumed to follow the existing data exactly; nothing verifies
// contiguity.  Attributes are not re-copied.
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
	if !domain.Equal(selfDims, otherVar.Dimensions()) {
		return fmt.Errorf("%w: %q has (%s), new data has (%s)",
			api.ErrDimensionMismatch, varName,
			strings.Join(selfDims, ","), strings.Join(otherVar.Dimensions(), ","))
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
	if axis != 0 {
		return fmt.Errorf("%w: %q is axis %d of %q",
			ErrAppendAxis, appendDim, axis, varName)
	}
	return w.appendDataset(otherVar)
}

// AppendAll extends every variable in the container with the matching
// variable from the new data model, all along axis 0.  The two variable
// sets must be identical, and every variable must be unchanged in shape
// along all other dimensions.
func (w *Writer) AppendAll(other api.DataModel) error {
	mine := sortedNames(w.model.DataVariables())
	theirs := sortedNames(other.DataVariables())
	if !domain.Equal(mine, theirs) {
		return fmt.Errorf("%w: container holds (%s), new data has (%s)",
			api.ErrNoSuchVariable,
			strings.Join(mine, ","), strings.Join(theirs, ","))
	}
	for _, name := range other.DataVariables() {
		v, err := other.Variable(name)
		if err != nil {
			return err
		}
		if err := w.appendDataset(v); err != nil {
			return err
		}
	}
	return nil
}

// appendDataset grows a dataset along axis 0: the new region is assigned
// past the current extent, then the shape is rewritten.
func (w *Writer) appendDataset(v api.Variable) error {
	root := w.Root()
	name := v.Name()

	za, err := readZarray(root, name)
	if err != nil {
		return err
	}

	vals, err := v.Values()
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	data, shape, dtype, err := codec.Flatten(vals)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if dtype.ZarrCode() != za.DType {
		return fmt.Errorf("%w: dataset %s holds %s, payload is %s",
			api.ErrTypeMismatch, name, za.DType, dtype.ZarrCode())
	}
	if len(shape) != len(za.Shape) {
		return fmt.Errorf("%w: dataset %s has rank %d, payload has rank %d",
			api.ErrDimensionMismatch, name, len(za.Shape), len(shape))
	}
	for i := 1; i < len(shape); i++ {
		if shape[i] != za.Shape[i] {
			return fmt.Errorf("%w: dataset %s axis %d is %d, payload has %d",
				api.ErrDimensionMismatch, name, i, za.Shape[i], shape[i])
		}
	}

	offset := make([]int64, len(shape))
	offset[0] = za.Shape[0]

	logger.WithFields(logrus.Fields{
		"dataset": name,
		"offset":  offset[0],
		"n":       shape[0],
	}).Info("appending")

	if err := writeRegion(root, name, za, offset, shape, data); err != nil {
		return err
	}
	za.Shape[0] += shape[0]
	return writeZarray(root, name, za)
}

func sortedNames(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}

// baseName strips the directory and extension from a source identifier.
func baseName(source string) string {
	b := filepath.Base(source)
	return strings.TrimSuffix(b, filepath.Ext(b))
}
