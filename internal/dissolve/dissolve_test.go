// SPDX-License-Identifier: Apache-2.0

package dissolve_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdhproj/rdharmony/internal/catalog"
	"github.com/rdhproj/rdharmony/internal/dissolve"
	"github.com/rdhproj/rdharmony/internal/match"
	"github.com/rdhproj/rdharmony/internal/normalize"
)

// box returns the WKT of an axis-aligned rectangle.
func box(x0, y0, x1, y1 float64) string {
	return fmt.Sprintf("POLYGON((%[1]v %[2]v,%[3]v %[2]v,%[3]v %[4]v,%[1]v %[4]v,%[1]v %[2]v))",
		x0, y0, x1, y1)
}

func newDissolver(t *testing.T) *dissolve.Dissolver {
	t.Helper()
	n := normalize.New(normalize.DefaultRules())
	c, err := catalog.New(n, []catalog.UnitSource{
		// Dover: one large member and two small ones, contiguous.
		{ID: "P1", Name: "Dover Castle", WKT: box(0, 0, 3, 3)}, // area 9
		{ID: "P2", Name: "Charlton", WKT: box(3, 0, 4, 0.5)},   // area 0.5
		{ID: "P3", Name: "Hougham", WKT: box(3, 0.5, 4, 1)},    // area 0.5
		{ID: "P4", Name: "Eastry", WKT: box(10, 0, 11, 1), ToYear: 1860},
	})
	require.NoError(t, err)
	return dissolve.NewDissolver(c)
}

func TestDissolver_Dissolve(t *testing.T) {
	d := newDissolver(t)

	records := []match.Record{
		{DistrictID: "D1", UnitName: "Dover Castle", Matched: true, UnitID: "P1"},
		{DistrictID: "D1", UnitName: "Charlton", Matched: true, UnitID: "P2"},
		{DistrictID: "D1", UnitName: "Hougham", Matched: true, UnitID: "P3"},
		{DistrictID: "D1", UnitName: "Something Else"}, // unmatched, ignored
	}

	c, ok, err := d.Dissolve("D1", "Dover", 1851, records)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "D1", c.DistrictID)
	assert.Equal(t, 1851, c.Year)
	assert.Equal(t, []string{"P1", "P2", "P3"}, c.UnitIDs)
	assert.InDelta(t, 10.0, c.TotalArea, 1e-9)
	assert.InDelta(t, 10.0, c.Geometry.Area(), 1e-9)

	// The dominant member contributes 9 of 10 area units.
	assert.Equal(t, "P1", c.DominantUnitID)
	assert.Equal(t, "Dover Castle", c.DominantUnitName)
	assert.InDelta(t, 0.9, c.DominantAreaShare, 1e-9)
}

func TestDissolver_Dissolve_OrderInvariant(t *testing.T) {
	d := newDissolver(t)

	forward := []match.Record{
		{DistrictID: "D1", Matched: true, UnitID: "P1"},
		{DistrictID: "D1", Matched: true, UnitID: "P2"},
		{DistrictID: "D1", Matched: true, UnitID: "P3"},
	}
	backward := []match.Record{
		{DistrictID: "D1", Matched: true, UnitID: "P3"},
		{DistrictID: "D1", Matched: true, UnitID: "P2"},
		{DistrictID: "D1", Matched: true, UnitID: "P1"},
	}

	a, ok, err := d.Dissolve("D1", "Dover", 1851, forward)
	require.NoError(t, err)
	require.True(t, ok)
	b, ok, err := d.Dissolve("D1", "Dover", 1851, backward)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, a.UnitIDs, b.UnitIDs)
	assert.InDelta(t, a.Centroid.X, b.Centroid.X, 1e-9)
	assert.InDelta(t, a.Centroid.Y, b.Centroid.Y, 1e-9)
	assert.InDelta(t, a.Geometry.Area(), b.Geometry.Area(), 1e-9)
	assert.Equal(t, a.DominantUnitID, b.DominantUnitID)
}

func TestDissolver_Dissolve_NoMatchedMembers(t *testing.T) {
	d := newDissolver(t)

	tests := []struct {
		name    string
		records []match.Record
	}{
		{name: "empty input", records: nil},
		{name: "all unmatched", records: []match.Record{
			{DistrictID: "D1", UnitName: "a"},
			{DistrictID: "D1", UnitName: "b", Ambiguous: true},
		}},
		{name: "matched but outside year", records: []match.Record{
			{DistrictID: "D1", Matched: true, UnitID: "P4", ToYear: 1860},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := d.Dissolve("D1", "Dover", 1871, tt.records)
			require.NoError(t, err)
			assert.False(t, ok, "no geometry must be constructed")
		})
	}
}

func TestDissolver_Dissolve_DuplicateMembersCountedOnce(t *testing.T) {
	d := newDissolver(t)

	records := []match.Record{
		{DistrictID: "D1", Matched: true, UnitID: "P1"},
		{DistrictID: "D1", Matched: true, UnitID: "P1"},
	}

	c, ok, err := d.Dissolve("D1", "Dover", 1851, records)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"P1"}, c.UnitIDs)
	assert.InDelta(t, 9.0, c.TotalArea, 1e-9)
	assert.InDelta(t, 1.0, c.DominantAreaShare, 1e-9)
}

func TestDissolver_Dissolve_UnknownUnit(t *testing.T) {
	d := newDissolver(t)

	_, _, err := d.Dissolve("D1", "Dover", 1851, []match.Record{
		{DistrictID: "D1", Matched: true, UnitID: "P99"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in catalog")
}
