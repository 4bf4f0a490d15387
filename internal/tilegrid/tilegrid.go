// Package tilegrid provides the n-dimensional chunk-grid arithmetic shared
// by the storage backends: locating the tiles a write region intersects and
// moving bytes between region buffers and tile buffers.
//
// All buffers are row-major ("C" order).  Tiles are always allocated at
// full size; edge tiles are padded rather than truncated.
package tilegrid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrRank = errors.New("rank mismatch")

// GridShape returns the number of tiles per dimension needed to cover an
// extent: ceil(extent[i] / tile[i]).
func GridShape(extent, tile []int64) []int64 {
	grid := make([]int64, len(extent))
	for i := range extent {
		grid[i] = (extent[i] + tile[i] - 1) / tile[i]
	}
	return grid
}

// Key renders a tile index vector as a storage key, "i.j.k".  A zero-rank
// index renders as "0".
func Key(indices []int64) string {
	if len(indices) == 0 {
		return "0"
	}
	var sb strings.Builder
	for i, idx := range indices {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.FormatInt(idx, 10))
	}
	return sb.String()
}

// Region is a half-open box [Offset, Offset+Extent) in array coordinates.
type Region struct {
	Offset []int64
	Extent []int64
}

// Intersection describes the overlap of a region with one tile, in the
// coordinates of both buffers.
type Intersection struct {
	// Index is the tile's position on the chunk grid.
	Index []int64
	// TileOff is the overlap's origin within the tile buffer.
	TileOff []int64
	// RegionOff is the overlap's origin within the region buffer.
	RegionOff []int64
	// N is the overlap's extent.
	N []int64
}

// Tiles calls fn for every tile a region intersects, in row-major tile
// order.  Tile indices are absolute: a region at a large offset maps to
// correspondingly large indices, untouched tiles are never visited.
func Tiles(r Region, tile []int64, fn func(in Intersection) error) error {
	rank := len(tile)
	if len(r.Offset) != rank || len(r.Extent) != rank {
		return fmt.Errorf("%w: offset %d, extent %d, tile %d",
			ErrRank, len(r.Offset), len(r.Extent), rank)
	}
	lo := make([]int64, rank)
	hi := make([]int64, rank)
	for i := 0; i < rank; i++ {
		if r.Extent[i] < 1 {
			return nil
		}
		lo[i] = r.Offset[i] / tile[i]
		hi[i] = (r.Offset[i] + r.Extent[i] - 1) / tile[i]
	}

	idx := make([]int64, rank)
	copy(idx, lo)
	for {
		in := Intersection{
			Index:     append([]int64(nil), idx...),
			TileOff:   make([]int64, rank),
			RegionOff: make([]int64, rank),
			N:         make([]int64, rank),
		}
		for i := 0; i < rank; i++ {
			tileStart := idx[i] * tile[i]
			start := max64(r.Offset[i], tileStart)
			end := min64(r.Offset[i]+r.Extent[i], tileStart+tile[i])
			in.TileOff[i] = start - tileStart
			in.RegionOff[i] = start - r.Offset[i]
			in.N[i] = end - start
		}
		if err := fn(in); err != nil {
			return err
		}

		// advance the odometer
		d := rank - 1
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] <= hi[d] {
				break
			}
			idx[d] = lo[d]
		}
		if d < 0 {
			return nil
		}
	}
}

// Scatter copies an intersection from a region buffer into a tile buffer.
func Scatter(region []byte, regionExtent []int64, tileBuf []byte, tile []int64,
	in Intersection, elemSize int64) {
	move(tileBuf, tile, in.TileOff, region, regionExtent, in.RegionOff, in.N, elemSize)
}

// Gather copies an intersection from a tile buffer into a region buffer.
func Gather(region []byte, regionExtent []int64, tileBuf []byte, tile []int64,
	in Intersection, elemSize int64) {
	move(region, regionExtent, in.RegionOff, tileBuf, tile, in.TileOff, in.N, elemSize)
}

// move copies the box n at srcOff in src to dstOff in dst, one contiguous
// run of the innermost dimension at a time.
func move(dst []byte, dstShape, dstOff []int64, src []byte, srcShape, srcOff []int64,
	n []int64, elemSize int64) {
	rank := len(n)
	if rank == 0 {
		copy(dst[:elemSize], src[:elemSize])
		return
	}
	dstStride := strides(dstShape, elemSize)
	srcStride := strides(srcShape, elemSize)
	run := n[rank-1] * elemSize

	pos := make([]int64, rank-1)
	for {
		d := dstOff[rank-1] * dstStride[rank-1]
		s := srcOff[rank-1] * srcStride[rank-1]
		for i := 0; i < rank-1; i++ {
			d += (dstOff[i] + pos[i]) * dstStride[i]
			s += (srcOff[i] + pos[i]) * srcStride[i]
		}
		copy(dst[d:d+run], src[s:s+run])

		i := rank - 2
		for ; i >= 0; i-- {
			pos[i]++
			if pos[i] < n[i] {
				break
			}
			pos[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

func strides(shape []int64, elemSize int64) []int64 {
	st := make([]int64, len(shape))
	acc := elemSize
	for i := len(shape) - 1; i >= 0; i-- {
		st[i] = acc
		acc *= shape[i]
	}
	return st
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
