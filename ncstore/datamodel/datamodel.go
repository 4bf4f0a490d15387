// Package datamodel implements api.DataModel on top of the go-native-netcdf
// readers.  It classifies the source variables, derives the domain
// partition, and supplies chunking hints to the writers.
package datamodel

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	ncapi "github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/batchatco/go-netcdf-store/ncstore/api"
	"github.com/batchatco/go-netcdf-store/ncstore/domain"
)

var (
	// ErrNoDataVariables means classification found nothing to
	// materialize.
	ErrNoDataVariables = errors.New("no data variables found")
)

// A dataset with more dimensions than this chunks its leading dimensions
// at 1 to keep default tile sizes down.
const maxContiguousDims = 3

// Model is the NetCDF-backed data model.
type Model struct {
	group  ncapi.Group
	source string

	vars map[string]ncapi.VarGetter

	dataVars     []string
	dimCoords    []string
	auxCoords    []string
	scalarCoords []string
	bounds       []string
	gridMappings []string

	part domain.Partition

	unlimited map[string]bool
	chunks    map[string]int64
}

var _ api.DataModel = (*Model)(nil)

// Option configures a Model.
type Option func(*Model)

// WithUnlimitedDims declares dimensions as logically unbounded in addition
// to anything the source itself declares.
func WithUnlimitedDims(names ...string) Option {
	return func(m *Model) {
		for _, n := range names {
			m.unlimited[n] = true
		}
	}
}

// WithChunk overrides the tile size hint for one dimension.
func WithChunk(dim string, size int64) Option {
	return func(m *Model) {
		m.chunks[dim] = size
	}
}

// Open reads a NetCDF file (CDF or HDF5 serialization) and builds the
// data model for it.
func Open(path string, opts ...Option) (*Model, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	m, err := FromGroup(g, path, opts...)
	if err != nil {
		g.Close()
		return nil, err
	}
	return m, nil
}

// FromGroup wraps an already-open NetCDF group.  The source string is the
// human-readable identifier used to derive default output naming.
func FromGroup(g ncapi.Group, source string, opts ...Option) (*Model, error) {
	m := &Model{
		group:     g,
		source:    source,
		vars:      make(map[string]ncapi.VarGetter),
		unlimited: make(map[string]bool),
		chunks:    make(map[string]int64),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.classify(); err != nil {
		return nil, err
	}
	if len(m.dataVars) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDataVariables, source)
	}

	entries := make([]domain.Entry, 0, len(m.dataVars))
	for _, name := range m.dataVars {
		entries = append(entries, domain.Entry{
			Name: name,
			Dims: m.vars[name].Dimensions(),
		})
	}
	m.part = domain.Group(entries)
	return m, nil
}

// Close releases the underlying group.
func (m *Model) Close() {
	m.group.Close()
}

// classify sorts every source variable into one of: grid mapping,
// dimension coordinate, scalar coordinate, bounds, auxiliary coordinate,
// or data variable.  Only data variables are grouped into domains.
func (m *Model) classify() error {
	dimSet := make(map[string]bool)
	for _, d := range m.group.ListDimensions() {
		dimSet[d] = true
	}

	var candidates []string
	referenced := make(map[string]bool)

	for _, name := range m.group.ListVariables() {
		vg, err := m.group.GetVarGetter(name)
		if err != nil {
			return fmt.Errorf("reading variable %s: %w", name, err)
		}
		m.vars[name] = vg

		attrs := vg.Attributes()
		switch {
		case attrHas(attrs, "grid_mapping_name"):
			m.gridMappings = append(m.gridMappings, name)
		case dimSet[name]:
			m.dimCoords = append(m.dimCoords, name)
		case len(vg.Dimensions()) == 0:
			m.scalarCoords = append(m.scalarCoords, name)
		case strings.HasSuffix(name, "bnds") || strings.HasSuffix(name, "bounds"):
			m.bounds = append(m.bounds, name)
		default:
			candidates = append(candidates, name)
			if coords, has := attrs.Get("coordinates"); has {
				if s, ok := coords.(string); ok {
					for _, ref := range strings.Fields(s) {
						referenced[ref] = true
					}
				}
			}
		}
	}

	// Anything named by another variable's "coordinates" attribute is an
	// auxiliary coordinate, not a data variable of its own.
	for _, name := range candidates {
		if referenced[name] {
			m.auxCoords = append(m.auxCoords, name)
		} else {
			m.dataVars = append(m.dataVars, name)
		}
	}
	return nil
}

func attrHas(attrs ncapi.AttributeMap, key string) bool {
	if attrs == nil {
		return false
	}
	_, has := attrs.Get(key)
	return has
}

// Identifier returns the source name given at open time.
func (m *Model) Identifier() string {
	return m.source
}

// DataVariables lists the variables to materialize, in source order.
func (m *Model) DataVariables() []string {
	return append([]string(nil), m.dataVars...)
}

// DimCoordinates lists variables that are themselves dimensions.
func (m *Model) DimCoordinates() []string {
	return append([]string(nil), m.dimCoords...)
}

// Variable resolves any source variable, whatever its class.
func (m *Model) Variable(name string) (api.Variable, error) {
	vg, ok := m.vars[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", api.ErrNoSuchVariable, name, m.source)
	}
	return &variable{name: name, vg: vg}, nil
}

// Domains returns the distinct dimension tuples, sorted lexicographically.
func (m *Model) Domains() [][]string {
	out := make([][]string, len(m.part.Domains))
	for i, d := range m.part.Domains {
		out[i] = append([]string(nil), d...)
	}
	return out
}

// DomainVariables returns the data variables sharing one tuple.
func (m *Model) DomainVariables(tuple []string) []string {
	return append([]string(nil), m.part.Members[domain.Key(tuple)]...)
}

// DomainFor resolves a data variable to its owning tuple.
func (m *Model) DomainFor(varName string) ([]string, bool) {
	tuple, ok := m.part.ByVar[varName]
	if !ok {
		return nil, false
	}
	return append([]string(nil), tuple...), true
}

// DimensionLength returns the current length of a named dimension.
func (m *Model) DimensionLength(name string) (int64, bool) {
	n, ok := m.group.GetDimension(name)
	if !ok {
		return 0, false
	}
	return int64(n), true
}

// ChunkSize returns the tile hint for one dimension: a configured
// override, or the dimension's full length (the "contiguous" default).
func (m *Model) ChunkSize(name string) (int64, bool) {
	if c, ok := m.chunks[name]; ok {
		return c, true
	}
	return m.DimensionLength(name)
}

// ChunkSizes returns one tile size per dimension of a variable.  Without
// overrides a variable chunks contiguously; past maxContiguousDims the
// leading dimensions tile at 1 to keep individual tiles small.
func (m *Model) ChunkSizes(varName string) ([]int64, error) {
	vg, ok := m.vars[varName]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", api.ErrNoSuchVariable, varName, m.source)
	}
	dimNames := vg.Dimensions()
	shape := vg.Shape()
	ndim := len(dimNames)

	out := make([]int64, ndim)
	for i, d := range dimNames {
		if c, ok := m.chunks[d]; ok {
			out[i] = c
			continue
		}
		if ndim > maxContiguousDims && i < ndim-maxContiguousDims {
			out[i] = 1
			continue
		}
		out[i] = shape[i]
	}
	return out, nil
}

// UnlimitedDimensions returns the configured unbounded dimension names,
// sorted.  The reader API does not surface the source's own record-
// dimension flag, so configuration is the only source here.
func (m *Model) UnlimitedDimensions() []string {
	out := make([]string, 0, len(m.unlimited))
	for d := range m.unlimited {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

type variable struct {
	name string
	vg   ncapi.VarGetter
}

var _ api.Variable = (*variable)(nil)

func (v *variable) Name() string {
	return v.name
}

func (v *variable) Dimensions() []string {
	return append([]string(nil), v.vg.Dimensions()...)
}

func (v *variable) Shape() []int64 {
	return append([]int64(nil), v.vg.Shape()...)
}

func (v *variable) Type() string {
	return v.vg.GoType()
}

func (v *variable) Attributes() ncapi.AttributeMap {
	return v.vg.Attributes()
}

func (v *variable) Values() (any, error) {
	return v.vg.Values()
}
