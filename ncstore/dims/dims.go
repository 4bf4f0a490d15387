// Package dims translates source dimensions into the bounded, tiled
// dimensions of a target array.  Target coordinates are always int64 so
// that every dimension of every array in a domain has the same dtype.
package dims

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyDimension means a dimension has no extent to materialize.
	ErrEmptyDimension = errors.New("dimension has no extent")
	// ErrTileSize means a tile size is non-positive or exceeds the
	// dimension's bound span.
	ErrTileSize = errors.New("invalid tile size")
)

// Dim is the target rendering of one source dimension: a zero-based
// coordinate range [Lower, Upper] tiled in blocks of Tile elements.
type Dim struct {
	Name  string
	Lower int64
	Upper int64
	Tile  int64
}

// Translate converts one source dimension.  A bounded dimension spans
// exactly its current length.  An unbounded dimension's upper bound is set
// to MaxInt64 minus the current length, reserving headroom of at least one
// further append of the current size without the true eventual size being
// known at creation time.
func Translate(name string, length int64, unlimited bool, tile int64) (Dim, error) {
	if length < 1 {
		return Dim{}, fmt.Errorf("%w: %q has length %d", ErrEmptyDimension, name, length)
	}
	upper := length - 1
	if unlimited {
		upper = math.MaxInt64 - length
	}
	if tile < 1 || tile > upper+1 {
		return Dim{}, fmt.Errorf("%w: %q tile %d with span %d",
			ErrTileSize, name, tile, upper+1)
	}
	return Dim{Name: name, Lower: 0, Upper: upper, Tile: tile}, nil
}

// Span is the number of addressable coordinates.
func (d Dim) Span() int64 {
	return d.Upper - d.Lower + 1
}

// Unbounded reports whether the dimension carries headroom beyond any
// realistic length, i.e. was translated from an unlimited dimension.
func (d Dim) Unbounded() bool {
	return d.Upper > math.MaxInt64/2
}
