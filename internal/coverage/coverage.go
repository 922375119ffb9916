// SPDX-License-Identifier: Apache-2.0

// Package coverage combines matcher, dissolver, and validator output into
// the per-district, per-year coverage table that downstream assignment
// joins on. Zero coverage is a recorded outcome, never an error.
package coverage

import (
	"math"
	"sort"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/rdhproj/rdharmony/internal/catalog"
	"github.com/rdhproj/rdharmony/internal/dissolve"
	"github.com/rdhproj/rdharmony/internal/match"
	"github.com/rdhproj/rdharmony/internal/validate"
)

// DefaultThreshold is the matched-membership fraction above which a
// district-year counts as a usable backbone.
const DefaultThreshold = 0.8

// Provenance records where a coverage centroid came from.
type Provenance string

const (
	// ProvenanceValidated means the centroid comes from the district's
	// own dissolved geometry.
	ProvenanceValidated Provenance = "validated"
	// ProvenanceImputed means the centroid was borrowed from the nearest
	// district-year with a valid backbone.
	ProvenanceImputed Provenance = "imputed-from-neighbor"
)

// Key identifies a coverage record; it is the canonical downstream join
// key.
type Key struct {
	DistrictID string
	Year       int
}

// Record is the coverage summary for one (district, year).
type Record struct {
	DistrictID      string
	District        string
	Year            int
	ActiveRows      int
	MatchedRows     int
	MatchedUnits    int
	MatchedFraction float64
	Usable          bool

	HasCentroid         bool
	Centroid            geom.XY
	Provenance          Provenance
	ImputedFromDistrict string
	ImputedFromYear     int
	// ImputedDistance is the anchor-to-donor distance. It is set only
	// when the donor was picked spatially; same-district borrowing is a
	// temporal relation and leaves it zero.
	ImputedDistance  float64
	ImputationFailed bool

	Validated          bool
	DiagnosticDistance float64

	DominantUnitID    string
	DominantAreaShare float64
}

// Scorer computes coverage records. Each (district, year) is scored
// independently; there is no cross-year smoothing.
type Scorer struct {
	threshold float64
}

// NewScorer creates a Scorer. A non-positive threshold selects
// DefaultThreshold.
func NewScorer(threshold float64) *Scorer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Scorer{threshold: threshold}
}

// Threshold reports the configured usability threshold.
func (s *Scorer) Threshold() float64 {
	return s.threshold
}

// Score produces the coverage record for one district-year from the
// district's membership records and, when present, its constructed
// geometry and diagnostic.
func (s *Scorer) Score(districtID, district string, year int, records []match.Record, constructed *dissolve.Constructed, diag *validate.Diagnostic) Record {
	rec := Record{
		DistrictID: districtID,
		District:   district,
		Year:       year,
	}

	units := make(map[string]bool)
	for _, r := range records {
		if !r.ActiveIn(year) {
			continue
		}
		rec.ActiveRows++
		if r.Matched {
			rec.MatchedRows++
			units[r.UnitID] = true
		}
	}
	rec.MatchedUnits = len(units)
	if rec.ActiveRows > 0 {
		rec.MatchedFraction = float64(rec.MatchedRows) / float64(rec.ActiveRows)
	}
	rec.Usable = rec.ActiveRows > 0 && rec.MatchedFraction >= s.threshold

	if constructed != nil {
		rec.HasCentroid = true
		rec.Centroid = constructed.Centroid
		rec.Provenance = ProvenanceValidated
		rec.DominantUnitID = constructed.DominantUnitID
		rec.DominantAreaShare = constructed.DominantAreaShare
	}
	if diag != nil {
		rec.Validated = true
		rec.DiagnosticDistance = diag.Distance
	}
	return rec
}

// ImputeCentroids fills in centroids for records that have none, by
// borrowing from the nearest district-year with a validated backbone
// centroid. Preference order: the same district's nearest year (ties
// break to the earlier year); failing that, the validated centroid
// spatially nearest to the district's official centroid, when official
// geometry provides an anchor. Records that cannot be resolved keep
// HasCentroid=false with ImputationFailed set. The input is not
// mutated; a new slice is returned.
func ImputeCentroids(records []Record, officials *catalog.OfficialSet) []Record {
	out := make([]Record, len(records))
	copy(out, records)

	// Donors: validated centroids only, so imputation never chains.
	var donors []Record
	for _, r := range out {
		if r.HasCentroid && r.Provenance == ProvenanceValidated {
			donors = append(donors, r)
		}
	}
	sort.Slice(donors, func(i, j int) bool {
		if donors[i].DistrictID != donors[j].DistrictID {
			return donors[i].DistrictID < donors[j].DistrictID
		}
		return donors[i].Year < donors[j].Year
	})

	for i := range out {
		if out[i].HasCentroid {
			continue
		}
		if donor, ok := sameDistrictDonor(out[i], donors); ok {
			out[i].HasCentroid = true
			out[i].Centroid = donor.Centroid
			out[i].Provenance = ProvenanceImputed
			out[i].ImputedFromDistrict = donor.DistrictID
			out[i].ImputedFromYear = donor.Year
			continue
		}
		if anchor, ok := officialAnchor(out[i].District, officials); ok {
			if donor, ok := nearestDonor(anchor, donors); ok {
				out[i].HasCentroid = true
				out[i].Centroid = donor.Centroid
				out[i].Provenance = ProvenanceImputed
				out[i].ImputedFromDistrict = donor.DistrictID
				out[i].ImputedFromYear = donor.Year
				out[i].ImputedDistance = dist(anchor, donor.Centroid)
				continue
			}
		}
		out[i].ImputationFailed = true
	}
	return out
}

// sameDistrictDonor picks the donor from the same district with the
// smallest year gap, earlier year on ties.
func sameDistrictDonor(rec Record, donors []Record) (Record, bool) {
	var best Record
	found := false
	for _, d := range donors {
		if d.DistrictID != rec.DistrictID {
			continue
		}
		if !found || yearGap(d.Year, rec.Year) < yearGap(best.Year, rec.Year) {
			best = d
			found = true
		}
	}
	return best, found
}

// officialAnchor finds an official centroid for a district by name,
// picking the first year (ascending) in which it appears.
func officialAnchor(district string, officials *catalog.OfficialSet) (geom.XY, bool) {
	if officials == nil {
		return geom.XY{}, false
	}
	for _, year := range officials.Years() {
		for _, o := range officials.Year(year) {
			if o.District == district {
				return o.Centroid, true
			}
		}
	}
	return geom.XY{}, false
}

// nearestDonor picks the donor whose centroid is closest to the anchor.
// Donor order is deterministic, so ties resolve to the first donor.
func nearestDonor(anchor geom.XY, donors []Record) (Record, bool) {
	var best Record
	bestDist := math.Inf(1)
	found := false
	for _, d := range donors {
		if dd := dist(anchor, d.Centroid); dd < bestDist {
			best = d
			bestDist = dd
			found = true
		}
	}
	return best, found
}

func yearGap(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

func dist(a, b geom.XY) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
