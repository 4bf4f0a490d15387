// Package api defines the contract between a source data model and the
// chunked-array writers (dense and zarr).  A data model is implemented once
// per source format; the writers only ever see these interfaces.
package api

import (
	"errors"

	ncapi "github.com/batchatco/go-native-netcdf/netcdf/api"
)

// Errors shared by both writer backends.  Callers can distinguish them
// with errors.Is.
var (
	// ErrNoSuchVariable means a variable was not found in a data model
	// or in the target store.
	ErrNoSuchVariable = errors.New("no such variable")
	// ErrNoSuchDimension means a dimension name was not found in a
	// variable's dimension tuple.
	ErrNoSuchDimension = errors.New("no such dimension")
	// ErrDimensionMismatch means two variables' dimension tuples are not
	// identical element for element.
	ErrDimensionMismatch = errors.New("dimension tuples do not match")
	// ErrArrayExists means an array was about to be re-created.
	// Creation never truncates existing data.
	ErrArrayExists = errors.New("array already exists")
	// ErrTypeMismatch means a payload's element type differs from the
	// dtype the target array was created with.
	ErrTypeMismatch = errors.New("payload dtype does not match array")
	// ErrOverflow means a write would extend a dimension past the bound
	// reserved for it at creation time.
	ErrOverflow = errors.New("write exceeds dimension bounds")
	// ErrBadName means a variable or store name cannot serve as a
	// directory component on disk.
	ErrBadName = errors.New("invalid store name")
)

// DataModel is the read side of a materialization: everything the writers
// need to know about one source file.
type DataModel interface {
	// Identifier returns a human-readable name for the source, used to
	// derive default output naming.
	Identifier() string

	// DataVariables lists the names of the variables to materialize.
	DataVariables() []string

	// DimCoordinates lists variables that are themselves dimensions.
	DimCoordinates() []string

	// Variable resolves any variable by name, whatever its class.
	Variable(name string) (Variable, error)

	// Domains returns the distinct ordered dimension-name tuples of the
	// data variables, sorted lexicographically.  The sort makes domain
	// labels reproducible across processes.
	Domains() [][]string

	// DomainVariables returns the data variables sharing one tuple.
	DomainVariables(tuple []string) []string

	// DomainFor resolves a data variable to its owning tuple.
	DomainFor(varName string) ([]string, bool)

	// DimensionLength returns the current length of a named dimension.
	DimensionLength(name string) (int64, bool)

	// ChunkSize returns the tile hint for one dimension.
	ChunkSize(name string) (int64, bool)

	// ChunkSizes returns one tile size per dimension of a variable.
	ChunkSizes(varName string) ([]int64, error)

	// UnlimitedDimensions returns the dimension names considered
	// logically unbounded.
	UnlimitedDimensions() []string
}

// Variable describes one source variable.  Immutable once read.
type Variable interface {
	Name() string

	// Dimensions is the ordered dimension-name tuple.
	Dimensions() []string

	Shape() []int64

	// Type returns the Go name of the element type ("float32", ...).
	Type() string

	Attributes() ncapi.AttributeMap

	// Values returns the whole payload as nested slices, as read from
	// the source.
	Values() (any, error)
}

// Writer materializes a data model into one storage backend.  Both backends
// implement it, so the same property tests run against either.
type Writer interface {
	// Create builds the full domain/array hierarchy and populates it.
	// Container directories are created idempotently, but re-creating an
	// existing array fails with ErrArrayExists.
	Create() error

	// Append extends one variable along one dimension with the data from
	// a second, newer data model.  The new data is assumed to follow the
	// existing data exactly, with no gap and no overlap; the writers do
	// not verify this.  Attributes are not re-copied on append.
	Append(other DataModel, varName, appendDim string) error
}
