package tilegrid_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/batchatco/go-netcdf-store/internal/tilegrid"
)

func TestGridShape(t *testing.T) {
	require.Equal(t, []int64{2, 1}, tilegrid.GridShape([]int64{10, 3}, []int64{5, 3}))
	require.Equal(t, []int64{3}, tilegrid.GridShape([]int64{11}, []int64{5}))
}

func TestKey(t *testing.T) {
	require.Equal(t, "0", tilegrid.Key(nil))
	require.Equal(t, "7", tilegrid.Key([]int64{7}))
	require.Equal(t, "1.0.4", tilegrid.Key([]int64{1, 0, 4}))
}

func TestTilesSingleTileAppend(t *testing.T) {
	// A length-4 append at offset 10 with tile 5 touches exactly the
	// third tile, starting at its origin.
	r := tilegrid.Region{Offset: []int64{10}, Extent: []int64{4}}
	var got []tilegrid.Intersection
	err := tilegrid.Tiles(r, []int64{5}, func(in tilegrid.Intersection) error {
		got = append(got, in)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, []int64{2}, got[0].Index)
	require.Equal(t, []int64{0}, got[0].TileOff)
	require.Equal(t, []int64{0}, got[0].RegionOff)
	require.Equal(t, []int64{4}, got[0].N)
}

func TestTilesCoverRegion(t *testing.T) {
	// Region (1,1)+(3,4) on a (2,3) tile grid crosses four tiles; the
	// intersections must cover every element exactly once.
	r := tilegrid.Region{Offset: []int64{1, 1}, Extent: []int64{3, 4}}
	covered := int64(0)
	err := tilegrid.Tiles(r, []int64{2, 3}, func(in tilegrid.Intersection) error {
		n := int64(1)
		for _, x := range in.N {
			require.Positive(t, x)
			n *= x
		}
		covered += n
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(12), covered)
}

func TestScatterGatherRoundTrip(t *testing.T) {
	// Scatter a 3x4 region at offset (1,1) into (2,3) tiles, then gather
	// it back out and compare.
	extent := []int64{3, 4}
	tile := []int64{2, 3}
	elemSize := int64(2)

	region := make([]byte, 3*4*elemSize)
	for i := range region {
		region[i] = byte(i + 1)
	}

	tiles := map[string][]byte{}
	r := tilegrid.Region{Offset: []int64{1, 1}, Extent: extent}
	err := tilegrid.Tiles(r, tile, func(in tilegrid.Intersection) error {
		key := tilegrid.Key(in.Index)
		buf, ok := tiles[key]
		if !ok {
			buf = make([]byte, 2*3*elemSize)
			tiles[key] = buf
		}
		tilegrid.Scatter(region, extent, buf, tile, in, elemSize)
		return nil
	})
	require.NoError(t, err)

	out := make([]byte, len(region))
	err = tilegrid.Tiles(r, tile, func(in tilegrid.Intersection) error {
		tilegrid.Gather(out, extent, tiles[tilegrid.Key(in.Index)], tile, in, elemSize)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, region, out)
}

func TestTilesRankMismatch(t *testing.T) {
	r := tilegrid.Region{Offset: []int64{0}, Extent: []int64{1, 1}}
	err := tilegrid.Tiles(r, []int64{2, 2}, func(tilegrid.Intersection) error { return nil })
	require.ErrorIs(t, err, tilegrid.ErrRank)
}
