package datamodel_test

import (
	"path/filepath"
	"testing"

	ncapi "github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/stretchr/testify/require"

	"github.com/batchatco/go-netcdf-store/ncstore/api"
	"github.com/batchatco/go-netcdf-store/ncstore/datamodel"
)

type fvar struct {
	name  string
	vals  any
	dims  []string
	attrs map[string]any
	order []string
}

func writeCDF(t *testing.T, path string, fvars []fvar) {
	t.Helper()
	cw, err := cdf.OpenWriter(path)
	require.NoError(t, err)
	for _, fv := range fvars {
		var am ncapi.AttributeMap
		if fv.attrs != nil {
			om, err := util.NewOrderedMap(fv.order, fv.attrs)
			require.NoError(t, err)
			am = om
		}
		err = cw.AddVar(fv.name, ncapi.Variable{
			Values:     fv.vals,
			Dimensions: fv.dims,
			Attributes: am,
		})
		require.NoError(t, err)
	}
	require.NoError(t, cw.Close())
}

func grid3D(nt, nlat, nlon int, base float32) [][][]float32 {
	out := make([][][]float32, nt)
	for i := range out {
		out[i] = make([][]float32, nlat)
		for j := range out[i] {
			out[i][j] = make([]float32, nlon)
			for k := range out[i][j] {
				out[i][j][k] = base + float32(i*100+j*10+k)
			}
		}
	}
	return out
}

func ramp(n int, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) * step
	}
	return out
}

func classificationFixture(t *testing.T) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "obs_2000.nc")

	conc := make([][][][]float32, 2)
	for e := range conc {
		conc[e] = grid3D(10, 2, 3, float32(e)*1000)
	}
	bnds := make([][]float64, 10)
	for i := range bnds {
		bnds[i] = []float64{float64(i), float64(i + 1)}
	}
	area := [][]float32{{1, 2, 3}, {4, 5, 6}}

	writeCDF(t, path, []fvar{
		{name: "time", vals: ramp(10, 1), dims: []string{"time"}},
		{name: "lat", vals: ramp(2, 0.5), dims: []string{"lat"}},
		{name: "lon", vals: ramp(3, 0.5), dims: []string{"lon"}},
		{name: "temp", vals: grid3D(10, 2, 3, 0), dims: []string{"time", "lat", "lon"},
			attrs: map[string]any{"units": "K", "coordinates": "area"},
			order: []string{"units", "coordinates"}},
		{name: "conc", vals: conc, dims: []string{"ens", "time", "lat", "lon"}},
		{name: "area", vals: area, dims: []string{"lat", "lon"}},
		{name: "time_bnds", vals: bnds, dims: []string{"time", "bnd2"}},
		{name: "height", vals: float64(1.5)},
		{name: "crs", vals: int32(0),
			attrs: map[string]any{"grid_mapping_name": "latitude_longitude"},
			order: []string{"grid_mapping_name"}},
	})
	return path
}

func TestClassification(t *testing.T) {
	path := classificationFixture(t)
	m, err := datamodel.Open(path)
	require.NoError(t, err)
	defer m.Close()

	// Data variables: everything that is not a coordinate, bounds, or
	// grid mapping.  "area" is named by temp's coordinates attribute,
	// so it is an auxiliary coordinate, not a data variable.
	require.ElementsMatch(t, []string{"temp", "conc"}, m.DataVariables())
	require.ElementsMatch(t, []string{"time", "lat", "lon"}, m.DimCoordinates())

	// Non-data variables still resolve by name.
	v, err := m.Variable("area")
	require.NoError(t, err)
	require.Equal(t, []string{"lat", "lon"}, v.Dimensions())

	_, err = m.Variable("missing")
	require.ErrorIs(t, err, api.ErrNoSuchVariable)
}

func TestDomains(t *testing.T) {
	path := classificationFixture(t)
	m, err := datamodel.Open(path)
	require.NoError(t, err)
	defer m.Close()

	require.Equal(t, [][]string{
		{"ens", "time", "lat", "lon"},
		{"time", "lat", "lon"},
	}, m.Domains())

	require.Equal(t, []string{"temp"},
		m.DomainVariables([]string{"time", "lat", "lon"}))

	tuple, ok := m.DomainFor("conc")
	require.True(t, ok)
	require.Equal(t, []string{"ens", "time", "lat", "lon"}, tuple)

	_, ok = m.DomainFor("area")
	require.False(t, ok)
}

func TestDimensionAndChunkHints(t *testing.T) {
	path := classificationFixture(t)
	m, err := datamodel.Open(path,
		datamodel.WithUnlimitedDims("time"),
		datamodel.WithChunk("time", 5))
	require.NoError(t, err)
	defer m.Close()

	n, ok := m.DimensionLength("time")
	require.True(t, ok)
	require.Equal(t, int64(10), n)

	_, ok = m.DimensionLength("depth")
	require.False(t, ok)

	// Override wins; otherwise a dimension chunks contiguously.
	c, ok := m.ChunkSize("time")
	require.True(t, ok)
	require.Equal(t, int64(5), c)
	c, ok = m.ChunkSize("lon")
	require.True(t, ok)
	require.Equal(t, int64(3), c)

	// A 3-D variable chunks contiguously apart from overrides.
	chunks, err := m.ChunkSizes("temp")
	require.NoError(t, err)
	require.Equal(t, []int64{5, 2, 3}, chunks)

	// Past three dimensions the leading dimensions tile at 1.
	chunks, err = m.ChunkSizes("conc")
	require.NoError(t, err)
	require.Equal(t, []int64{1, 5, 2, 3}, chunks)

	require.Equal(t, []string{"time"}, m.UnlimitedDimensions())
	require.Equal(t, path, m.Identifier())
}

func TestNoDataVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coords_only.nc")
	writeCDF(t, path, []fvar{
		{name: "time", vals: ramp(4, 1), dims: []string{"time"}},
	})
	_, err := datamodel.Open(path)
	require.ErrorIs(t, err, datamodel.ErrNoDataVariables)
}
