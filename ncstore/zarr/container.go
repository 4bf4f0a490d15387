package zarr

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
)

const (
	zarrFormat = 2
	zgroupFile = ".zgroup"
	zarrayFile = ".zarray"
	zattrsFile = ".zattrs"

	// dimListAttr stamps a dataset with its dimension names.  The
	// container format has no first-class named dimensions, so readers
	// rely on this attribute to recover the tuple.
	dimListAttr = "_ARRAY_DIMENSIONS"
)

// zarray is the v2 array metadata document.  Compression is not applied:
// chunks are stored raw, row-major, little-endian.
type zarray struct {
	Chunks     []int64 `json:"chunks"`
	Compressor any     `json:"compressor"`
	DType      string  `json:"dtype"`
	FillValue  any     `json:"fill_value"`
	Filters    any     `json:"filters"`
	Order      string  `json:"order"`
	Shape      []int64 `json:"shape"`
	ZarrFormat int     `json:"zarr_format"`
}

// createContainer lays down the container root.  A pre-existing directory
// is treated as success, matching the idempotent group creation of the
// dense store.
func createContainer(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	doc := map[string]int{"zarr_format": zarrFormat}
	return writeJSON(filepath.Join(root, zgroupFile), doc)
}

// createDataset builds one dataset directory with its metadata, payload
// chunks, and attributes.  Re-creating an existing dataset is an error.
func createDataset(root, name string, za zarray, attrs ncapi.AttributeMap, dimNames []string) error {
	dir := filepath.Join(root, name)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("%w: %s", api.ErrArrayExists, dir)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, zarrayFile), za); err != nil {
		return err
	}

	doc := make(map[string]any)
	if attrs != nil {
		for _, key := range attrs.Keys() {
			if val, has := attrs.Get(key); has {
				doc[key] = val
			}
		}
	}
	doc[dimListAttr] = dimNames
	return writeJSON(filepath.Join(dir, zattrsFile), doc)
}

// writeRegion scatters encoded values into a dataset's chunk files,
// read-modify-writing partially covered chunks.
func writeRegion(root, name string, za zarray, offset, extent []int64, data []byte) error {
	dir := filepath.Join(root, name)
	dtype, err := codec.FromZarrCode(za.DType)
	if err != nil {
		return err
	}
	elemSize := dtype.Size()
	chunkBytes := elemSize
	for _, c := range za.Chunks {
		chunkBytes *= c
	}

	region := tilegrid.Region{Offset: offset, Extent: extent}
	return tilegrid.Tiles(region, za.Chunks, func(in tilegrid.Intersection) error {
		path := filepath.Join(dir, tilegrid.Key(in.Index))
		buf, err := readChunk(path, chunkBytes)
		if err != nil {
			return err
		}
		tilegrid.Scatter(data, extent, buf, za.Chunks, in, elemSize)
		return os.WriteFile(path, buf, 0o644)
	})
}

// ReadDataset gathers a dataset's full payload back into nested slices of
// its native dtype.
func ReadDataset(root, name string) (any, error) {
	dir := filepath.Join(root, name)
	za, err := readZarray(root, name)
	if err != nil {
		return nil, err
	}
	dtype, err := codec.FromZarrCode(za.DType)
	if err != nil {
		return nil, err
	}
	elemSize := dtype.Size()
	n := elemSize
	for _, s := range za.Shape {
		n *= s
	}
	data := make([]byte, n)
	chunkBytes := elemSize
	for _, c := range za.Chunks {
		chunkBytes *= c
	}

	region := tilegrid.Region{Offset: make([]int64, len(za.Shape)), Extent: za.Shape}
	err = tilegrid.Tiles(region, za.Chunks, func(in tilegrid.Intersection) error {
		buf, err := readChunk(filepath.Join(dir, tilegrid.Key(in.Index)), chunkBytes)
		if err != nil {
			return err
		}
		tilegrid.Gather(data, za.Shape, buf, za.Chunks, in, elemSize)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return codec.Unflatten(data, za.Shape, dtype)
}

// ReadAttrs returns a dataset's attribute document.
func ReadAttrs(root, name string) (map[string]any, error) {
	doc := make(map[string]any)
	err := readJSON(filepath.Join(root, name, zattrsFile), &doc)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func readZarray(root, name string) (zarray, error) {
	var za zarray
	path := filepath.Join(root, name, zarrayFile)
	if err := readJSON(path, &za); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return za, fmt.Errorf("%w: no dataset %q in %s", api.ErrNoSuchVariable, name, root)
		}
		return za, err
	}
	return za, nil
}

func writeZarray(root, name string, za zarray) error {
	return writeJSON(filepath.Join(root, name, zarrayFile), za)
}

func readChunk(path string, size int64) ([]byte, error) {
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return make([]byte, size), nil
	}
	if err != nil {
		return nil, err
	}
	if int64(len(buf)) != size {
		return nil, fmt.Errorf("chunk %s: %d bytes, want %d", path, len(buf), size)
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
