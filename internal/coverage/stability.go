// SPDX-License-Identifier: Apache-2.0

package coverage

import (
	"sort"

	"github.com/rdhproj/rdharmony/internal/match"
)

// StabilityParams configures the boundary-instability predicate: a
// district is flagged unstable when the overlap (Jaccard index) of its
// matched membership sets across some pair of consecutive reference
// years falls below MinOverlap.
type StabilityParams struct {
	MinOverlap float64 `yaml:"min_overlap"`
}

// DefaultMinOverlap is the default instability cutoff.
const DefaultMinOverlap = 0.5

// DefaultStabilityParams returns the default predicate parameters.
func DefaultStabilityParams() StabilityParams {
	return StabilityParams{MinOverlap: DefaultMinOverlap}
}

// Stability classifies one district's boundary composition over the
// reference years.
type Stability struct {
	DistrictID         string
	MinAdjacentOverlap float64
	Unstable           bool
}

// ClassifyStability evaluates the instability predicate for one district
// given its matched unit sets per reference year. Districts observed in
// fewer than two reference years are stable by definition.
func ClassifyStability(districtID string, setsByYear map[int][]string, params StabilityParams) Stability {
	if params.MinOverlap <= 0 {
		params.MinOverlap = DefaultMinOverlap
	}

	years := make([]int, 0, len(setsByYear))
	for y := range setsByYear {
		years = append(years, y)
	}
	sort.Ints(years)

	st := Stability{DistrictID: districtID, MinAdjacentOverlap: 1}
	for i := 1; i < len(years); i++ {
		overlap := jaccard(setsByYear[years[i-1]], setsByYear[years[i]])
		if overlap < st.MinAdjacentOverlap {
			st.MinAdjacentOverlap = overlap
		}
	}
	st.Unstable = st.MinAdjacentOverlap < params.MinOverlap
	return st
}

// MatchedSets derives, for one district's records, the matched unit-ID
// set active at each reference year.
func MatchedSets(records []match.Record, years []int) map[int][]string {
	out := make(map[int][]string, len(years))
	for _, year := range years {
		seen := make(map[string]bool)
		var ids []string
		for _, r := range records {
			if r.Matched && r.ActiveIn(year) && !seen[r.UnitID] {
				seen[r.UnitID] = true
				ids = append(ids, r.UnitID)
			}
		}
		sort.Strings(ids)
		out[year] = ids
	}
	return out
}

// jaccard computes |a∩b| / |a∪b|; two empty sets overlap fully.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inA := make(map[string]bool, len(a))
	for _, x := range a {
		inA[x] = true
	}
	inter := 0
	for _, x := range b {
		if inA[x] {
			inter++
		}
	}
	union := len(inA) + len(b) - inter
	// Duplicate IDs never occur; MatchedSets deduplicates.
	return float64(inter) / float64(union)
}
