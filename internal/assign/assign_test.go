// SPDX-License-Identifier: Apache-2.0

package assign_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdhproj/rdharmony/internal/assign"
	"github.com/rdhproj/rdharmony/internal/coverage"
)

func statTable() *assign.StatTable {
	return assign.NewStatTable([]assign.GroupStat{
		{
			Key:    assign.GroupKey{DistrictID: "X", Decade: 1930, AgeBucket: "a_45_54", Sex: "M"},
			Counts: map[string]int{"tuberculosis": 30, "pneumonia": 20},
		},
		{
			Key:    assign.GroupKey{DistrictID: "Y", Decade: 1930, AgeBucket: "a_45_54", Sex: "M"},
			Counts: map[string]int{"tuberculosis": 10},
		},
		{
			Key:    assign.GroupKey{DistrictID: "Z", Decade: 1930, AgeBucket: "a_45_54", Sex: "M"},
			Counts: map[string]int{"tuberculosis": 0},
		},
	})
}

func sumDist(dist map[string]float64) float64 {
	var sum float64
	for _, p := range dist {
		sum += p
	}
	return sum
}

func TestNewStatTable_SumsDuplicateKeys(t *testing.T) {
	key := assign.GroupKey{DistrictID: "X", Decade: 1860, AgeBucket: "a_0", Sex: "F"}
	table := assign.NewStatTable([]assign.GroupStat{
		{Key: key, Counts: map[string]int{"measles": 3}},
		{Key: key, Counts: map[string]int{"measles": 2, "scarlatina": 5}},
	})

	counts, ok := table.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"measles": 5, "scarlatina": 5}, counts)
	assert.Equal(t, 1, table.Len())
}

func TestAssigner_Assign_PartialCoverage(t *testing.T) {
	// District X in 1935: five membership rows, three matched.
	a := assign.NewAssigner(statTable(), []coverage.Record{
		{DistrictID: "X", Year: 1935, ActiveRows: 5, MatchedRows: 3, MatchedFraction: 0.6},
	}, nil)

	got, outcome := a.Assign(assign.Individual{
		ID: "i1", DistrictID: "X", Year: 1935, Age: 50, Sex: "male",
	})
	require.Equal(t, assign.OutcomeAssigned, outcome)

	assert.Equal(t, 50, got.GroupTotal)
	assert.InDelta(t, 0.6, got.Base["tuberculosis"], 1e-9)
	assert.InDelta(t, 0.4, got.Base["pneumonia"], 1e-9)

	// Every base probability is scaled by the matched fraction and the
	// remainder lands on the uncertainty category.
	assert.InDelta(t, 0.36, got.Adjusted["tuberculosis"], 1e-9)
	assert.InDelta(t, 0.24, got.Adjusted["pneumonia"], 1e-9)
	assert.InDelta(t, 0.4, got.Adjusted[assign.UncertainCategory], 1e-9)

	assert.InDelta(t, 1.0, sumDist(got.Base), 1e-9)
	assert.InDelta(t, 1.0, sumDist(got.Adjusted), 1e-9)

	assert.False(t, got.Uncertain)
	assert.Equal(t, assign.ReasonNone, got.Reason)
	assert.Equal(t, assign.QualityMedium, got.Quality)
	assert.Equal(t, assign.ConfidenceMedium, got.Confidence)
}

func TestAssigner_Assign_FullCoverage(t *testing.T) {
	a := assign.NewAssigner(statTable(), []coverage.Record{
		{DistrictID: "X", Year: 1935, ActiveRows: 4, MatchedRows: 4, MatchedFraction: 1, Usable: true},
	}, nil)

	got, outcome := a.Assign(assign.Individual{
		ID: "i1", DistrictID: "X", Year: 1935, Age: 50, Sex: "M",
	})
	require.Equal(t, assign.OutcomeAssigned, outcome)

	assert.Equal(t, got.Base, got.Adjusted, "full coverage leaves the distribution untouched")
	assert.NotContains(t, got.Adjusted, assign.UncertainCategory)
	assert.Equal(t, assign.QualityHigh, got.Quality)
	assert.Equal(t, assign.ConfidenceHigh, got.Confidence)
}

func TestAssigner_Assign_ZeroMatched(t *testing.T) {
	a := assign.NewAssigner(statTable(), []coverage.Record{
		{DistrictID: "Y", Year: 1935, ActiveRows: 3, MatchedRows: 0, MatchedFraction: 0},
	}, nil)

	got, outcome := a.Assign(assign.Individual{
		ID: "i1", DistrictID: "Y", Year: 1935, Age: 50, Sex: "m",
	})
	require.Equal(t, assign.OutcomeAssigned, outcome)

	// The whole mass is uncertain; the base distribution is still reported.
	assert.InDelta(t, 1.0, got.Base["tuberculosis"], 1e-9)
	assert.InDelta(t, 1.0, got.Adjusted[assign.UncertainCategory], 1e-9)
	assert.InDelta(t, 0.0, got.Adjusted["tuberculosis"], 1e-9)
	assert.True(t, got.Uncertain)
	assert.Equal(t, assign.ReasonUnmatchedBackbone, got.Reason)
	assert.Equal(t, assign.QualityLow, got.Quality)
	assert.Equal(t, assign.ConfidenceLow, got.Confidence)
}

func TestAssigner_Assign_NoCoverageRow(t *testing.T) {
	a := assign.NewAssigner(statTable(), nil, nil)

	got, outcome := a.Assign(assign.Individual{
		ID: "i1", DistrictID: "X", Year: 1935, Age: 50, Sex: "M",
	})
	require.Equal(t, assign.OutcomeAssigned, outcome)

	assert.Zero(t, got.MatchedFraction)
	assert.True(t, got.Uncertain)
	assert.Equal(t, assign.ReasonUnmatchedBackbone, got.Reason)
	assert.Equal(t, assign.QualityMissing, got.Quality)
	assert.InDelta(t, 1.0, got.Adjusted[assign.UncertainCategory], 1e-9)
}

func TestAssigner_Assign_UnstableDistrict(t *testing.T) {
	a := assign.NewAssigner(statTable(), []coverage.Record{
		{DistrictID: "X", Year: 1935, ActiveRows: 4, MatchedRows: 4, MatchedFraction: 1, Usable: true},
	}, []coverage.Stability{
		{DistrictID: "X", MinAdjacentOverlap: 0.2, Unstable: true},
	})

	got, outcome := a.Assign(assign.Individual{
		ID: "i1", DistrictID: "X", Year: 1935, Age: 50, Sex: "M",
	})
	require.Equal(t, assign.OutcomeAssigned, outcome)

	assert.True(t, got.Uncertain)
	assert.Equal(t, assign.ReasonUnstableBoundary, got.Reason)
	assert.Equal(t, assign.ConfidenceMedium, got.Confidence)
	// Full matched fraction still means no mass is rerouted.
	assert.NotContains(t, got.Adjusted, assign.UncertainCategory)
}

func TestAssigner_Assign_FailureOutcomes(t *testing.T) {
	a := assign.NewAssigner(statTable(), nil, nil)

	tests := []struct {
		name string
		ind  assign.Individual
		want assign.Outcome
	}{
		{
			name: "unknown sex",
			ind:  assign.Individual{ID: "i1", DistrictID: "X", Year: 1935, Age: 50, Sex: "u"},
			want: assign.OutcomeNoGroupKey,
		},
		{
			name: "implausible age",
			ind:  assign.Individual{ID: "i1", DistrictID: "X", Year: 1935, Age: 140, Sex: "M"},
			want: assign.OutcomeNoGroupKey,
		},
		{
			name: "negative age",
			ind:  assign.Individual{ID: "i1", DistrictID: "X", Year: 1935, Age: -1, Sex: "M"},
			want: assign.OutcomeNoGroupKey,
		},
		{
			name: "no aggregate row",
			ind:  assign.Individual{ID: "i1", DistrictID: "Q", Year: 1935, Age: 50, Sex: "M"},
			want: assign.OutcomeNoGroupStat,
		},
		{
			name: "aggregate row with zero counts",
			ind:  assign.Individual{ID: "i1", DistrictID: "Z", Year: 1935, Age: 50, Sex: "M"},
			want: assign.OutcomeNoCauseData,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, outcome := a.Assign(tt.ind)
			assert.Equal(t, tt.want, outcome)
		})
	}
}

func TestAssigner_Assign_AggregationRoundTrip(t *testing.T) {
	a := assign.NewAssigner(statTable(), []coverage.Record{
		{DistrictID: "X", Year: 1935, ActiveRows: 4, MatchedRows: 4, MatchedFraction: 1, Usable: true},
	}, nil)

	// Averaging the assigned base distributions over a group of
	// individuals recovers the aggregate proportions.
	const n = 10
	sums := make(map[string]float64)
	for i := 0; i < n; i++ {
		got, outcome := a.Assign(assign.Individual{
			ID: "i", DistrictID: "X", Year: 1935, Age: 50, Sex: "M",
		})
		require.Equal(t, assign.OutcomeAssigned, outcome)
		for category, p := range got.Base {
			sums[category] += p
		}
	}

	assert.InDelta(t, 0.6, sums["tuberculosis"]/n, 1e-9)
	assert.InDelta(t, 0.4, sums["pneumonia"]/n, 1e-9)
}

func TestDecade(t *testing.T) {
	assert.Equal(t, 1860, assign.Decade(1866))
	assert.Equal(t, 1860, assign.Decade(1860))
	assert.Equal(t, 1930, assign.Decade(1935))
}

func TestNormalizeSex(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{in: "M", want: "M", wantOK: true},
		{in: "male", want: "M", wantOK: true},
		{in: " F ", want: "F", wantOK: true},
		{in: "Female", want: "F", wantOK: true},
		{in: "", wantOK: false},
		{in: "unknown", wantOK: false},
	}
	for _, tt := range tests {
		got, ok := assign.NormalizeSex(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		assert.Equal(t, tt.wantOK, ok, "input %q", tt.in)
	}
}

func TestAgeBucket(t *testing.T) {
	tests := []struct {
		age    int
		want   string
		wantOK bool
	}{
		{age: 0, want: "a_0", wantOK: true},
		{age: 1, want: "a_1", wantOK: true},
		{age: 3, want: "a_2_4", wantOK: true},
		{age: 19, want: "a_15_19", wantOK: true},
		{age: 50, want: "a_45_54", wantOK: true},
		{age: 75, want: "a_75_up", wantOK: true},
		{age: 105, want: "a_75_up", wantOK: true},
		{age: 106, wantOK: false},
		{age: -1, wantOK: false},
	}
	for _, tt := range tests {
		got, ok := assign.AgeBucket(tt.age)
		assert.Equal(t, tt.want, got, "age %d", tt.age)
		assert.Equal(t, tt.wantOK, ok, "age %d", tt.age)
	}
}

func TestCategories(t *testing.T) {
	dist := map[string]float64{"b": 0.2, "a": 0.5, "c": 0.3}
	assert.Equal(t, []string{"a", "b", "c"}, assign.Categories(dist))
}
