package dense

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	ncapi "github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/batchatco/go-netcdf-store/internal/codec"
	"github.com/batchatco/go-netcdf-store/internal/tilegrid"
	"github.com/batchatco/go-netcdf-store/ncstore/api"
	"github.com/batchatco/go-netcdf-store/ncstore/dims"
)

const (
	schemaFile  = "__schema__.json"
	metaFile    = "__meta__.json"
	groupMarker = "__group__"
)

// schema fixes an array's dimensions and value attribute at creation time.
// It never changes afterwards; appends only advance the meta shape.
type schema struct {
	Attr attrSpec  `json:"attribute"`
	Dims []dimSpec `json:"dimensions"`
}

type attrSpec struct {
	Name  string     `json:"name"`
	DType codec.Type `json:"dtype"`
}

type dimSpec struct {
	Name  string `json:"name"`
	Lower int64  `json:"lower"`
	Upper int64  `json:"upper"`
	Tile  int64  `json:"tile"`
}

// meta is the array's mutable state: the extent written so far and the
// verbatim copy of the source attributes.
type meta struct {
	Shape     []int64        `json:"shape"`
	AttrOrder []string       `json:"attribute_order"`
	Attrs     map[string]any `json:"attributes"`
}

// Array is one dense tiled array on disk.  It is reopened by path for
// every write; no handle is held across calls.
type Array struct {
	dir string
	sc  schema
	mt  meta
}

// createArray lays down a new array directory.  Re-creating an existing
// array is an error: creation never truncates data.
func createArray(dir string, sc schema) error {
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("%w: %s", api.ErrArrayExists, dir)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, schemaFile), sc); err != nil {
		return err
	}
	mt := meta{
		Shape: make([]int64, len(sc.Dims)),
		Attrs: map[string]any{},
	}
	return writeJSON(filepath.Join(dir, metaFile), mt)
}

// OpenArray opens an existing array by path.
func OpenArray(dir string) (*Array, error) {
	a := &Array{dir: dir}
	if err := readJSON(filepath.Join(dir, schemaFile), &a.sc); err != nil {
		return nil, fmt.Errorf("opening array %s: %w", dir, err)
	}
	if err := readJSON(filepath.Join(dir, metaFile), &a.mt); err != nil {
		return nil, fmt.Errorf("opening array %s: %w", dir, err)
	}
	return a, nil
}

// Dimensions returns the array's translated dimensions, fixed at creation.
func (a *Array) Dimensions() []dims.Dim {
	out := make([]dims.Dim, len(a.sc.Dims))
	for i, d := range a.sc.Dims {
		out[i] = dims.Dim{Name: d.Name, Lower: d.Lower, Upper: d.Upper, Tile: d.Tile}
	}
	return out
}

// DType returns the value attribute's native element type.
func (a *Array) DType() codec.Type {
	return a.sc.Attr.DType
}

// Shape returns the extent written so far, per dimension.
func (a *Array) Shape() []int64 {
	return append([]int64(nil), a.mt.Shape...)
}

// AttrKeys returns the copied source attribute names in source order.
func (a *Array) AttrKeys() []string {
	return append([]string(nil), a.mt.AttrOrder...)
}

// Attr returns one copied source attribute.
func (a *Array) Attr(key string) (any, bool) {
	v, has := a.mt.Attrs[key]
	return v, has
}

func (a *Array) tiles() []int64 {
	t := make([]int64, len(a.sc.Dims))
	for i, d := range a.sc.Dims {
		t[i] = d.Tile
	}
	return t
}

// writeAt scatters a region of encoded values into the array's tiles,
// read-modify-writing any partially covered tile, and advances the meta
// shape.  Exceeding a dimension's upper bound is fatal: for unbounded
// dimensions it means the headroom reserved at creation has run out.
func (a *Array) writeAt(offset, extent []int64, data []byte) error {
	rank := len(a.sc.Dims)
	if len(offset) != rank || len(extent) != rank {
		return fmt.Errorf("%w: array %s has rank %d", tilegrid.ErrRank, a.dir, rank)
	}
	for i, d := range a.sc.Dims {
		if offset[i] < d.Lower || offset[i]+extent[i]-1 > d.Upper {
			return fmt.Errorf("%w: %q [%d, %d) outside [%d, %d]",
				api.ErrOverflow, d.Name, offset[i], offset[i]+extent[i], d.Lower, d.Upper)
		}
	}

	tile := a.tiles()
	elemSize := a.sc.Attr.DType.Size()
	tileBytes := elemSize
	for _, t := range tile {
		tileBytes *= t
	}

	region := tilegrid.Region{Offset: offset, Extent: extent}
	err := tilegrid.Tiles(region, tile, func(in tilegrid.Intersection) error {
		path := filepath.Join(a.dir, tilegrid.Key(in.Index))
		buf, err := readTile(path, tileBytes)
		if err != nil {
			return err
		}
		tilegrid.Scatter(data, extent, buf, tile, in, elemSize)
		return os.WriteFile(path, buf, 0o644)
	})
	if err != nil {
		return err
	}

	for i := range a.mt.Shape {
		if end := offset[i] + extent[i]; end > a.mt.Shape[i] {
			a.mt.Shape[i] = end
		}
	}
	return a.saveMeta()
}

// Read gathers the whole written extent back into nested slices of the
// array's native dtype.
func (a *Array) Read() (any, error) {
	shape := a.mt.Shape
	elemSize := a.sc.Attr.DType.Size()
	n := elemSize
	for _, s := range shape {
		n *= s
	}
	data := make([]byte, n)

	tile := a.tiles()
	tileBytes := elemSize
	for _, t := range tile {
		tileBytes *= t
	}

	region := tilegrid.Region{Offset: make([]int64, len(shape)), Extent: shape}
	err := tilegrid.Tiles(region, tile, func(in tilegrid.Intersection) error {
		buf, err := readTile(filepath.Join(a.dir, tilegrid.Key(in.Index)), tileBytes)
		if err != nil {
			return err
		}
		tilegrid.Gather(data, shape, buf, tile, in, elemSize)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return codec.Unflatten(data, shape, a.sc.Attr.DType)
}

// setAttrs copies every source attribute verbatim into the array's
// metadata store.  Called exactly once, at creation-time population.
func (a *Array) setAttrs(attrs ncapi.AttributeMap) error {
	if attrs == nil {
		return a.saveMeta()
	}
	for _, key := range attrs.Keys() {
		val, has := attrs.Get(key)
		if !has {
			continue
		}
		if _, dup := a.mt.Attrs[key]; !dup {
			a.mt.AttrOrder = append(a.mt.AttrOrder, key)
		}
		a.mt.Attrs[key] = val
	}
	return a.saveMeta()
}

func (a *Array) saveMeta() error {
	return writeJSON(filepath.Join(a.dir, metaFile), a.mt)
}

// readTile loads one tile, or a zero-filled buffer if the tile has never
// been written.
func readTile(path string, size int64) ([]byte, error) {
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return make([]byte, size), nil
	}
	if err != nil {
		return nil, err
	}
	if int64(len(buf)) != size {
		return nil, fmt.Errorf("tile %s: %d bytes, want %d", path, len(buf), size)
	}
	return buf, nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
