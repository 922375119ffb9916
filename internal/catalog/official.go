// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"fmt"
	"sort"

	"github.com/peterstace/simplefeatures/geom"
)

// OfficialSource is a raw official-geometry row: one district polygon for
// one reference year, as digitized from the independent ground-truth set.
type OfficialSource struct {
	District string `yaml:"district"`
	Year     int    `yaml:"year"`
	WKT      string `yaml:"wkt"`
}

// Official is a parsed official district polygon with its precomputed
// centroid.
type Official struct {
	District string
	Year     int
	Geometry geom.Geometry
	Centroid geom.XY
}

// OfficialSet indexes official geometries by reference year. Years are
// sparse; absence of a year means validation is not possible for it.
type OfficialSet struct {
	byYear map[int][]Official
}

// NewOfficialSet parses and indexes official geometry rows.
func NewOfficialSet(sources []OfficialSource) (*OfficialSet, error) {
	s := &OfficialSet{byYear: make(map[int][]Official)}
	for _, src := range sources {
		g, err := geom.UnmarshalWKT(src.WKT)
		if err != nil {
			return nil, fmt.Errorf("official %q/%d: parse geometry: %w", src.District, src.Year, err)
		}
		xy, ok := g.Centroid().XY()
		if !ok {
			return nil, fmt.Errorf("official %q/%d: empty geometry", src.District, src.Year)
		}
		s.byYear[src.Year] = append(s.byYear[src.Year], Official{
			District: src.District,
			Year:     src.Year,
			Geometry: g,
			Centroid: xy,
		})
	}
	for year := range s.byYear {
		sort.Slice(s.byYear[year], func(i, j int) bool {
			return s.byYear[year][i].District < s.byYear[year][j].District
		})
	}
	return s, nil
}

// Year returns the official geometries for a reference year, or nil when
// none were digitized for it.
func (s *OfficialSet) Year(year int) []Official {
	return s.byYear[year]
}

// HasYear reports whether official geometry exists for a year.
func (s *OfficialSet) HasYear(year int) bool {
	return len(s.byYear[year]) > 0
}

// Years lists the reference years with official geometry, ascending.
func (s *OfficialSet) Years() []int {
	years := make([]int, 0, len(s.byYear))
	for y := range s.byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
