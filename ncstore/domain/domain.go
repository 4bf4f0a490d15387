// Package domain partitions variables into equivalence classes keyed by
// their ordered dimension-name tuple.  Two variables share a domain iff
// their tuples are equal, including order: (time, lat, lon) and
// (time, lon, lat) are different domains.
package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Entry names one variable and its ordered dimension tuple.
type Entry struct {
	Name string
	Dims []string
}

// Partition is a strict equivalence partition of a variable set: every
// variable appears in exactly one domain.
type Partition struct {
	// Domains holds the distinct tuples, sorted by Key.
	Domains [][]string
	// Members maps Key(tuple) to the variables in that domain, in
	// input order.
	Members map[string][]string
	// ByVar maps a variable name to its owning tuple.
	ByVar map[string][]string
}

// Key flattens a tuple into a single map key.  Dimension names follow
// NetCDF naming rules, which exclude commas.
func Key(tuple []string) string {
	return strings.Join(tuple, ",")
}

// Group computes the partition for a variable set.
func Group(entries []Entry) Partition {
	p := Partition{
		Members: make(map[string][]string),
		ByVar:   make(map[string][]string),
	}
	for _, e := range entries {
		k := Key(e.Dims)
		if _, seen := p.Members[k]; !seen {
			tuple := make([]string, len(e.Dims))
			copy(tuple, e.Dims)
			p.Domains = append(p.Domains, tuple)
		}
		p.Members[k] = append(p.Members[k], e.Name)
		p.ByVar[e.Name] = append([]string(nil), e.Dims...)
	}
	sort.Slice(p.Domains, func(i, j int) bool {
		return Key(p.Domains[i]) < Key(p.Domains[j])
	})
	return p
}

// Label derives the stable storage name of a domain from its position in
// the sorted tuple list.  It is recomputed from scratch by every process,
// so a later append agrees with the original materialization without any
// cached state.
func Label(domains [][]string, tuple []string) (string, bool) {
	k := Key(tuple)
	for i, d := range domains {
		if Key(d) == k {
			return fmt.Sprintf("domain_%d", i), true
		}
	}
	return "", false
}

// Equal reports whether two tuples are identical element for element.
func Equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
