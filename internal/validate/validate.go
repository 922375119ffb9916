// SPDX-License-Identifier: Apache-2.0

// Package validate compares constructed centroids against the
// independent official geometry set. A diagnostic exists only for years
// where official geometry was digitized; other years carry none.
package validate

import (
	"math"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/rdhproj/rdharmony/internal/catalog"
	"github.com/rdhproj/rdharmony/internal/dissolve"
)

// MatchType distinguishes how the official counterpart was selected.
type MatchType string

const (
	// MatchContained means the constructed centroid fell inside an
	// official polygon.
	MatchContained MatchType = "contained"
	// MatchNearest means no official polygon contained the centroid and
	// the nearest official centroid was used instead.
	MatchNearest MatchType = "nearest-neighbor-fallback"
)

// Diagnostic records the distance between a constructed centroid and its
// official counterpart. Distance is zero for containment matches.
type Diagnostic struct {
	DistrictID       string
	Year             int
	OfficialDistrict string
	MatchType        MatchType
	Distance         float64
}

// Validate locates the constructed centroid among the official polygons
// for the same year. Containment wins; otherwise the nearest official
// centroid by Euclidean distance (shared projected coordinate system) is
// recorded. ok=false when officials is empty.
func Validate(c dissolve.Constructed, officials []catalog.Official) (Diagnostic, bool) {
	if len(officials) == 0 {
		return Diagnostic{}, false
	}

	pt := c.Centroid.AsPoint().AsGeometry()
	for _, o := range officials {
		if geom.Intersects(o.Geometry, pt) {
			return Diagnostic{
				DistrictID:       c.DistrictID,
				Year:             c.Year,
				OfficialDistrict: o.District,
				MatchType:        MatchContained,
			}, true
		}
	}

	nearest := officials[0]
	best := distance(c.Centroid, nearest.Centroid)
	for _, o := range officials[1:] {
		if d := distance(c.Centroid, o.Centroid); d < best {
			best = d
			nearest = o
		}
	}
	return Diagnostic{
		DistrictID:       c.DistrictID,
		Year:             c.Year,
		OfficialDistrict: nearest.District,
		MatchType:        MatchNearest,
		Distance:         best,
	}, true
}

func distance(a, b geom.XY) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
