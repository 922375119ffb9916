// SPDX-License-Identifier: Apache-2.0

// Package dissolve constructs per-district, per-year geometries by
// unioning the polygons of matched member units. Absence of a
// constructed geometry (zero matched members) is meaningful and is
// reported, not raised.
package dissolve

import (
	"fmt"
	"sort"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/rdhproj/rdharmony/internal/catalog"
	"github.com/rdhproj/rdharmony/internal/match"
)

// Constructed is the dissolved geometry of one district at one reference
// year, with its centroid and the member that contributes the largest
// area (used downstream as an imputation anchor).
type Constructed struct {
	DistrictID        string
	District          string
	Year              int
	Geometry          geom.Geometry
	Centroid          geom.XY
	UnitIDs           []string
	DominantUnitID    string
	DominantUnitName  string
	DominantAreaShare float64
	TotalArea         float64
}

// Dissolver unions member geometries out of the backbone catalog.
type Dissolver struct {
	cat *catalog.Catalog
}

// NewDissolver creates a Dissolver over the given catalog.
func NewDissolver(c *catalog.Catalog) *Dissolver {
	return &Dissolver{cat: c}
}

// Dissolve unions the geometries of all matched records active in year.
// It returns ok=false when no member matched; the union is performed in
// sorted unit-ID order so the result is stable under member reordering.
func (d *Dissolver) Dissolve(districtID, district string, year int, records []match.Record) (Constructed, bool, error) {
	ids := matchedUnitIDs(records, year)
	if len(ids) == 0 {
		return Constructed{}, false, nil
	}

	units := make([]catalog.Unit, 0, len(ids))
	for _, id := range ids {
		u, ok := d.cat.ByID(id)
		if !ok {
			return Constructed{}, false, fmt.Errorf("district %q/%d: matched unit %q not in catalog", districtID, year, id)
		}
		units = append(units, u)
	}

	union := units[0].Geometry
	for _, u := range units[1:] {
		var err error
		union, err = geom.Union(union, u.Geometry)
		if err != nil {
			return Constructed{}, false, fmt.Errorf("district %q/%d: union with unit %q: %w", districtID, year, u.ID, err)
		}
	}

	centroid, ok := union.Centroid().XY()
	if !ok {
		return Constructed{}, false, fmt.Errorf("district %q/%d: dissolved geometry is empty", districtID, year)
	}

	var total float64
	dominant := units[0]
	for _, u := range units {
		total += u.Area
		if u.Area > dominant.Area {
			dominant = u
		}
	}

	c := Constructed{
		DistrictID:       districtID,
		District:         district,
		Year:             year,
		Geometry:         union,
		Centroid:         centroid,
		UnitIDs:          ids,
		DominantUnitID:   dominant.ID,
		DominantUnitName: dominant.Name,
		TotalArea:        total,
	}
	if total > 0 {
		c.DominantAreaShare = dominant.Area / total
	}
	return c, true, nil
}

// matchedUnitIDs collects the distinct matched unit IDs active in year,
// sorted.
func matchedUnitIDs(records []match.Record, year int) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range records {
		if !r.Matched || !r.ActiveIn(year) || seen[r.UnitID] {
			continue
		}
		seen[r.UnitID] = true
		ids = append(ids, r.UnitID)
	}
	sort.Strings(ids)
	return ids
}
