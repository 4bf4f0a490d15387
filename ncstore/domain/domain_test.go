package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/batchatco/go-netcdf-store/ncstore/domain"
)

func TestGroupIsAPartition(t *testing.T) {
	entries := []domain.Entry{
		{Name: "temp", Dims: []string{"time", "lat", "lon"}},
		{Name: "wind", Dims: []string{"time", "lon", "lat"}},
		{Name: "elev", Dims: []string{"lat", "lon"}},
		{Name: "press", Dims: []string{"time", "lat", "lon"}},
	}
	p := domain.Group(entries)

	// Ordered tuples are distinct domains: (time, lat, lon) and
	// (time, lon, lat) must not merge.
	require.Len(t, p.Domains, 3)

	// Every variable lands in exactly one domain.
	seen := map[string]int{}
	for _, d := range p.Domains {
		for _, name := range p.Members[domain.Key(d)] {
			seen[name]++
		}
	}
	for _, e := range entries {
		require.Equal(t, 1, seen[e.Name], e.Name)
	}

	// Membership is exactly tuple equality.
	for _, e := range entries {
		tuple, ok := p.ByVar[e.Name]
		require.True(t, ok)
		require.Equal(t, e.Dims, tuple)
		require.Contains(t, p.Members[domain.Key(tuple)], e.Name)
	}

	require.ElementsMatch(t, []string{"temp", "press"},
		p.Members[domain.Key([]string{"time", "lat", "lon"})])
}

func TestDomainsAreSorted(t *testing.T) {
	p := domain.Group([]domain.Entry{
		{Name: "a", Dims: []string{"time", "lat", "lon"}},
		{Name: "b", Dims: []string{"lat", "lon"}},
		{Name: "c", Dims: []string{"time", "lon", "lat"}},
	})
	require.Equal(t, [][]string{
		{"lat", "lon"},
		{"time", "lat", "lon"},
		{"time", "lon", "lat"},
	}, p.Domains)
}

func TestLabelIsStableAcrossRuns(t *testing.T) {
	// Same variable set presented in a different order must produce the
	// same labels: an append recomputes them in a fresh process.
	first := domain.Group([]domain.Entry{
		{Name: "temp", Dims: []string{"time", "lat", "lon"}},
		{Name: "elev", Dims: []string{"lat", "lon"}},
	})
	second := domain.Group([]domain.Entry{
		{Name: "elev", Dims: []string{"lat", "lon"}},
		{Name: "temp", Dims: []string{"time", "lat", "lon"}},
	})

	for _, tuple := range first.Domains {
		l1, ok := domain.Label(first.Domains, tuple)
		require.True(t, ok)
		l2, ok := domain.Label(second.Domains, tuple)
		require.True(t, ok)
		require.Equal(t, l1, l2)
	}

	label, ok := domain.Label(first.Domains, []string{"lat", "lon"})
	require.True(t, ok)
	require.Equal(t, "domain_0", label)

	_, ok = domain.Label(first.Domains, []string{"depth"})
	require.False(t, ok)
}

func TestEqual(t *testing.T) {
	require.True(t, domain.Equal([]string{"time", "lat"}, []string{"time", "lat"}))
	require.False(t, domain.Equal([]string{"time", "lat"}, []string{"lat", "time"}))
	require.False(t, domain.Equal([]string{"time"}, []string{"time", "lat"}))
}
