// SPDX-License-Identifier: Apache-2.0

// Package assign performs ecological inference: each individual record
// receives the cause probability distribution of its aggregate group
// (district x decade x age bucket x sex), together with an
// uncertainty-adjusted variant that makes unexplained boundary mass
// explicit. Assignment is pure: no cross-individual state, bit-identical
// output on re-runs.
package assign

import (
	"sort"
	"strings"

	"github.com/rdhproj/rdharmony/internal/coverage"
)

// UncertainCategory is the synthetic outcome category that absorbs the
// probability mass not explained by matched backbone geometry.
const UncertainCategory = "uncertain_boundary_mismatch"

// GroupKey identifies one aggregate statistics cell.
type GroupKey struct {
	DistrictID string `yaml:"district_id"`
	Decade     int    `yaml:"decade"`
	AgeBucket  string `yaml:"age_bucket"`
	Sex        string `yaml:"sex"`
}

// GroupStat is one aggregate ground-truth row: outcome-category counts
// for a group cell.
type GroupStat struct {
	Key    GroupKey       `yaml:"key"`
	Counts map[string]int `yaml:"counts"`
}

// StatTable is the immutable aggregate statistics lookup, loaded once and
// shared by all workers.
type StatTable struct {
	byKey map[GroupKey]map[string]int
}

// NewStatTable indexes group statistics. Rows sharing a key are summed.
func NewStatTable(stats []GroupStat) *StatTable {
	t := &StatTable{byKey: make(map[GroupKey]map[string]int, len(stats))}
	for _, s := range stats {
		cell := t.byKey[s.Key]
		if cell == nil {
			cell = make(map[string]int, len(s.Counts))
			t.byKey[s.Key] = cell
		}
		for category, n := range s.Counts {
			cell[category] += n
		}
	}
	return t
}

// Lookup returns the category counts for a group cell.
func (t *StatTable) Lookup(key GroupKey) (map[string]int, bool) {
	cell, ok := t.byKey[key]
	return cell, ok
}

// Len reports the number of indexed group cells.
func (t *StatTable) Len() int {
	return len(t.byKey)
}

// Individual is one input record. Year and Age are raw values; the
// assigner derives the decade and age bucket.
type Individual struct {
	ID         string `yaml:"id"`
	DistrictID string `yaml:"district_id"`
	Year       int    `yaml:"year"`
	Age        int    `yaml:"age"`
	Sex        string `yaml:"sex"`
}

// Reason explains why an assignment is flagged uncertain.
type Reason string

const (
	ReasonNone              Reason = "none"
	ReasonUnmatchedBackbone Reason = "unmatched-backbone"
	ReasonUnstableBoundary  Reason = "unstable-boundary"
)

// Quality grades the spatial linkage of an assignment from the matched
// fraction alone.
type Quality string

const (
	QualityHigh    Quality = "high"
	QualityMedium  Quality = "medium"
	QualityLow     Quality = "low"
	QualityMissing Quality = "missing"
)

// Confidence combines matched fraction and boundary stability.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Outcome reports what happened to one individual.
type Outcome string

const (
	// OutcomeAssigned means a distribution was produced.
	OutcomeAssigned Outcome = "assigned"
	// OutcomeNoGroupKey means the individual's age or sex could not be
	// mapped to an aggregate bucket.
	OutcomeNoGroupKey Outcome = "no-group-key"
	// OutcomeNoGroupStat means no aggregate row exists for the group.
	OutcomeNoGroupStat Outcome = "no-group-statistic"
	// OutcomeNoCauseData means the aggregate row exists but counts to
	// zero; distinct from zero-probability categories.
	OutcomeNoCauseData Outcome = "no-cause-data"
)

// Assignment is the output entity for one individual.
type Assignment struct {
	IndividualID    string
	Key             GroupKey
	GroupTotal      int
	Base            map[string]float64
	Adjusted        map[string]float64
	MatchedFraction float64
	Uncertain       bool
	Reason          Reason
	Quality         Quality
	Confidence      Confidence
}

// Assigner joins individuals to group statistics and coverage. All
// referenced state is immutable; Assign never mutates it.
type Assigner struct {
	stats    *StatTable
	cov      map[coverage.Key]coverage.Record
	unstable map[string]bool
}

// NewAssigner builds an Assigner over the statistics table, the coverage
// table, and per-district stability classifications.
func NewAssigner(stats *StatTable, cov []coverage.Record, stability []coverage.Stability) *Assigner {
	a := &Assigner{
		stats:    stats,
		cov:      make(map[coverage.Key]coverage.Record, len(cov)),
		unstable: make(map[string]bool, len(stability)),
	}
	for _, r := range cov {
		a.cov[coverage.Key{DistrictID: r.DistrictID, Year: r.Year}] = r
	}
	for _, s := range stability {
		if s.Unstable {
			a.unstable[s.DistrictID] = true
		}
	}
	return a
}

// Assign resolves one individual. Only OutcomeAssigned carries a usable
// Assignment.
func (a *Assigner) Assign(ind Individual) (Assignment, Outcome) {
	sex, okSex := NormalizeSex(ind.Sex)
	bucket, okAge := AgeBucket(ind.Age)
	if !okSex || !okAge {
		return Assignment{IndividualID: ind.ID}, OutcomeNoGroupKey
	}

	key := GroupKey{
		DistrictID: ind.DistrictID,
		Decade:     Decade(ind.Year),
		AgeBucket:  bucket,
		Sex:        sex,
	}
	counts, ok := a.stats.Lookup(key)
	if !ok {
		return Assignment{IndividualID: ind.ID, Key: key}, OutcomeNoGroupStat
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return Assignment{IndividualID: ind.ID, Key: key}, OutcomeNoCauseData
	}

	base := make(map[string]float64, len(counts))
	for category, n := range counts {
		base[category] = float64(n) / float64(total)
	}

	covRec, covOK := a.cov[coverage.Key{DistrictID: ind.DistrictID, Year: ind.Year}]
	m := 0.0
	if covOK {
		m = covRec.MatchedFraction
	}

	out := Assignment{
		IndividualID:    ind.ID,
		Key:             key,
		GroupTotal:      total,
		Base:            base,
		Adjusted:        adjust(base, m),
		MatchedFraction: m,
		Reason:          ReasonNone,
	}

	// Uncertain iff the backbone never matched here, or the district's
	// boundary composition is unstable across reference years.
	switch {
	case !covOK || covRec.MatchedRows == 0:
		out.Uncertain = true
		out.Reason = ReasonUnmatchedBackbone
	case a.unstable[ind.DistrictID]:
		out.Uncertain = true
		out.Reason = ReasonUnstableBoundary
	}

	out.Quality = quality(m, covOK)
	out.Confidence = confidence(m, a.unstable[ind.DistrictID])
	return out, OutcomeAssigned
}

// adjust scales every base probability by m and routes the remaining
// 1-m mass to the uncertainty category, keeping the sum at 1. With m=1
// the base distribution is returned unchanged (copied).
func adjust(base map[string]float64, m float64) map[string]float64 {
	adjusted := make(map[string]float64, len(base)+1)
	if m >= 1 {
		for category, p := range base {
			adjusted[category] = p
		}
		return adjusted
	}
	for category, p := range base {
		adjusted[category] = p * m
	}
	adjusted[UncertainCategory] = 1 - m
	return adjusted
}

func quality(m float64, linked bool) Quality {
	switch {
	case !linked:
		return QualityMissing
	case m >= 0.8:
		return QualityHigh
	case m >= 0.5:
		return QualityMedium
	default:
		return QualityLow
	}
}

func confidence(m float64, unstable bool) Confidence {
	switch {
	case m >= 0.8 && !unstable:
		return ConfidenceHigh
	case m >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Decade buckets a year to its decade (1866 -> 1860).
func Decade(year int) int {
	return (year / 10) * 10
}

// Categories lists a distribution's categories in sorted order, for
// stable iteration in reports and tests.
func Categories(dist map[string]float64) []string {
	out := make([]string, 0, len(dist))
	for c := range dist {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// NormalizeSex maps free-form sex values to the aggregate coding.
func NormalizeSex(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male":
		return "M", true
	case "f", "female":
		return "F", true
	}
	return "", false
}

// ageBand is one aggregate age bucket.
type ageBand struct {
	low, high int
	name      string
}

// ageBands mirrors the age structure of the aggregate cause tables.
var ageBands = []ageBand{
	{0, 0, "a_0"},
	{1, 1, "a_1"},
	{2, 4, "a_2_4"},
	{5, 9, "a_5_9"},
	{10, 14, "a_10_14"},
	{15, 19, "a_15_19"},
	{20, 24, "a_20_24"},
	{25, 34, "a_25_34"},
	{35, 44, "a_35_44"},
	{45, 54, "a_45_54"},
	{55, 64, "a_55_64"},
	{65, 74, "a_65_74"},
	{75, maxAge, "a_75_up"},
}

// maxAge bounds plausible recorded ages.
const maxAge = 105

// AgeBucket maps an individual age to its aggregate bucket name.
func AgeBucket(age int) (string, bool) {
	if age < 0 || age > maxAge {
		return "", false
	}
	for _, b := range ageBands {
		if age >= b.low && age <= b.high {
			return b.name, true
		}
	}
	return "", false
}
