// SPDX-License-Identifier: Apache-2.0

// Package match resolves membership rows (unit name x district x validity
// window) against the backbone catalog. Matching is deterministic and
// rule-based: no fuzzy scoring, and any stage that produces more than one
// equally valid candidate rejects the row rather than guessing.
package match

import (
	"sort"

	"github.com/rdhproj/rdharmony/internal/catalog"
	"github.com/rdhproj/rdharmony/internal/normalize"
)

// Row is a membership source row: one unit belonging to one district over
// a validity window. Zero years are open-ended.
type Row struct {
	DistrictID string `yaml:"district_id"`
	District   string `yaml:"district"`
	UnitName   string `yaml:"unit_name"`
	FromYear   int    `yaml:"from_year"`
	ToYear     int    `yaml:"to_year"`
}

// Method identifies the stage that produced a match.
type Method string

const (
	MethodExact      Method = "exact"
	MethodCompact    Method = "compact"
	MethodVariant    Method = "variant"
	MethodDescriptor Method = "descriptor"
	MethodSubstring  Method = "substring"
)

// Record is the immutable outcome of matching one row. Unmatched rows are
// retained with Matched=false; Ambiguous marks rows rejected because a
// stage found multiple equally valid candidates.
type Record struct {
	DistrictID string
	District   string
	UnitName   string
	Key        string
	FromYear   int
	ToYear     int
	Matched    bool
	UnitID     string
	Method     Method
	Ambiguous  bool
}

// ActiveIn reports whether the record's validity window covers year.
func (r Record) ActiveIn(year int) bool {
	if r.FromYear != 0 && year < r.FromYear {
		return false
	}
	if r.ToYear != 0 && year > r.ToYear {
		return false
	}
	return true
}

// minSubstringLen guards the substring stage against very short compact
// keys, which contain accidentally ("ash", "lee").
const minSubstringLen = 5

// Matcher resolves rows against a unit catalog. It is stateless apart
// from its immutable inputs and safe for concurrent use.
type Matcher struct {
	norm *normalize.Normalizer
	cat  *catalog.Catalog
}

// NewMatcher creates a Matcher over the given normalizer and catalog.
func NewMatcher(n *normalize.Normalizer, c *catalog.Catalog) *Matcher {
	return &Matcher{norm: n, cat: c}
}

// classLookup is one of the catalog's per-class lookup methods.
type classLookup func(key string, from, to int) []catalog.Unit

// Match resolves a single row. Stages, in order: exact canonical key,
// compact (space-removed) key, spelling-variant keys, descriptor-stripped
// keys, unique substring containment. Each stage consults only the key
// classes it stands for, so a derived key never shadows a canonical
// match. The first stage yielding exactly one candidate wins; a stage
// yielding several distinct candidates stops the search and marks the
// row ambiguous.
func (m *Matcher) Match(row Row) Record {
	key := m.norm.Key(row.UnitName)
	rec := Record{
		DistrictID: row.DistrictID,
		District:   row.District,
		UnitName:   row.UnitName,
		Key:        key,
		FromYear:   row.FromYear,
		ToYear:     row.ToYear,
	}

	compactKey := normalize.Compact(key)
	stages := []struct {
		method Method
		ids    func() []string
	}{
		// Exact: the row key against canonical names only.
		{MethodExact, func() []string {
			return m.collect(row.FromYear, row.ToYear,
				[]classLookup{m.cat.LookupCanonical}, key)
		}},
		// Compact: the space-removed row key against compact names.
		{MethodCompact, func() []string {
			return m.collect(row.FromYear, row.ToYear,
				[]classLookup{m.cat.LookupCompact}, compactKey)
		}},
		// Variant: the row key against catalog variants, and the row's
		// own variants against canonical, compact, and variant names.
		{MethodVariant, func() []string {
			keys := append(m.variantKeys(key), key, compactKey)
			return m.collect(row.FromYear, row.ToYear,
				[]classLookup{m.cat.LookupCanonical, m.cat.LookupCompact, m.cat.LookupVariant}, keys...)
		}},
		// Descriptor: the row key against catalog descriptor-stripped
		// forms, and the row's stripped forms against canonical, compact,
		// and descriptor names.
		{MethodDescriptor, func() []string {
			keys := append(m.descriptorKeys(key), key, compactKey)
			return m.collect(row.FromYear, row.ToYear,
				[]classLookup{m.cat.LookupCanonical, m.cat.LookupCompact, m.cat.LookupDescriptor}, keys...)
		}},
	}
	for _, stage := range stages {
		ids := stage.ids()
		switch len(ids) {
		case 0:
			continue
		case 1:
			rec.Matched = true
			rec.UnitID = ids[0]
			rec.Method = stage.method
			return rec
		default:
			rec.Ambiguous = true
			return rec
		}
	}

	needle := normalize.Compact(key)
	if len(needle) >= minSubstringLen {
		ids := m.cat.SubstringCandidates(needle, row.FromYear, row.ToYear)
		switch len(ids) {
		case 1:
			rec.Matched = true
			rec.UnitID = ids[0]
			rec.Method = MethodSubstring
			return rec
		default:
			if len(ids) > 1 {
				rec.Ambiguous = true
			}
		}
	}
	return rec
}

// MatchAll resolves every row. Output order mirrors input order; the
// matched/unmatched partition is independent of row order because each
// row is resolved in isolation against the immutable catalog.
func (m *Matcher) MatchAll(rows []Row) []Record {
	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = m.Match(row)
	}
	return records
}

// variantKeys derives spelling-variant lookup keys of both the canonical
// and compact form of key.
func (m *Matcher) variantKeys(key string) []string {
	variants := m.norm.Variants(key)
	out := make([]string, 0, 2*len(variants))
	for _, v := range variants {
		out = append(out, v, normalize.Compact(v))
	}
	return out
}

// descriptorKeys derives descriptor-stripped lookup keys and their
// compact forms.
func (m *Matcher) descriptorKeys(key string) []string {
	stripped := m.norm.DescriptorKeys(key)
	out := make([]string, 0, 2*len(stripped))
	for _, v := range stripped {
		out = append(out, v, normalize.Compact(v))
	}
	return out
}

// collect gathers the distinct unit IDs found for any of keys in any of
// the given class indexes, restricted to the validity window and sorted
// for determinism.
func (m *Matcher) collect(from, to int, lookups []classLookup, keys ...string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, lookup := range lookups {
		for _, k := range keys {
			if k == "" {
				continue
			}
			for _, u := range lookup(k, from, to) {
				if !seen[u.ID] {
					seen[u.ID] = true
					ids = append(ids, u.ID)
				}
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// ActiveAt filters records to those whose validity window covers year.
func ActiveAt(records []Record, year int) []Record {
	var out []Record
	for _, r := range records {
		if r.ActiveIn(year) {
			out = append(out, r)
		}
	}
	return out
}

// ByDistrict groups records by district ID.
func ByDistrict(records []Record) map[string][]Record {
	out := make(map[string][]Record)
	for _, r := range records {
		out[r.DistrictID] = append(out[r.DistrictID], r)
	}
	return out
}

// Districts lists the distinct district IDs present in records, sorted.
func Districts(records []Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if !seen[r.DistrictID] {
			seen[r.DistrictID] = true
			out = append(out, r.DistrictID)
		}
	}
	sort.Strings(out)
	return out
}
