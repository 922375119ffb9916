// SPDX-License-Identifier: Apache-2.0

// Package catalog holds the immutable reference data shared by all
// pipeline stages: the backbone unit (parish) catalog indexed by
// normalized name, and the sparse per-year official geometry sets.
// Catalogs are built once at startup and safe for concurrent reads.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/rdhproj/rdharmony/internal/normalize"
)

// UnitSource is a raw reference-unit row as handed over by an upstream
// loader. Geometry arrives as WKT in a projected coordinate system.
type UnitSource struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	WKT      string `yaml:"wkt"`
	FromYear int    `yaml:"from_year"`
	ToYear   int    `yaml:"to_year"`
}

// Unit is a backbone administrative unit with fixed, known geometry.
// FromYear/ToYear bound its validity; zero means open-ended.
type Unit struct {
	ID         string
	Name       string
	Key        string
	CompactKey string
	Geometry   geom.Geometry
	Area       float64
	FromYear   int
	ToYear     int
}

// OverlapsWindow reports whether the unit's validity window intersects
// [from, to]. Zero bounds are open-ended on either side.
func (u *Unit) OverlapsWindow(from, to int) bool {
	if u.FromYear != 0 && to != 0 && to < u.FromYear {
		return false
	}
	if u.ToYear != 0 && from != 0 && from > u.ToYear {
		return false
	}
	return true
}

// ActiveIn reports whether the unit's validity window covers a single year.
func (u *Unit) ActiveIn(year int) bool {
	return u.OverlapsWindow(year, year)
}

// compactEntry pairs a space-removed lookup key with the unit it indexes.
type compactEntry struct {
	key string
	idx int
}

// Catalog is the indexed backbone unit catalog. Each key class lives in
// its own index so a lookup never crosses classes: a unit's canonical
// name, its compact form, its spelling variants, and its descriptor-
// stripped forms are separate lookup namespaces.
type Catalog struct {
	units      []Unit
	byID       map[string]int
	canonical  map[string][]int
	compact    map[string][]int
	variant    map[string][]int
	descriptor map[string][]int
	substrings []compactEntry
}

// New builds a Catalog from source rows using the given normalizer.
// Source order does not influence the resulting indexes.
func New(n *normalize.Normalizer, sources []UnitSource) (*Catalog, error) {
	c := &Catalog{
		byID:       make(map[string]int, len(sources)),
		canonical:  make(map[string][]int, len(sources)),
		compact:    make(map[string][]int, len(sources)),
		variant:    make(map[string][]int),
		descriptor: make(map[string][]int),
	}

	sorted := make([]UnitSource, len(sources))
	copy(sorted, sources)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, src := range sorted {
		g, err := geom.UnmarshalWKT(src.WKT)
		if err != nil {
			return nil, fmt.Errorf("unit %q: parse geometry: %w", src.ID, err)
		}
		key := n.Key(src.Name)
		u := Unit{
			ID:         src.ID,
			Name:       src.Name,
			Key:        key,
			CompactKey: normalize.Compact(key),
			Geometry:   g,
			Area:       g.Area(),
			FromYear:   src.FromYear,
			ToYear:     src.ToYear,
		}
		if _, dup := c.byID[u.ID]; dup {
			return nil, fmt.Errorf("unit %q: duplicate id", u.ID)
		}
		idx := len(c.units)
		c.units = append(c.units, u)
		c.byID[u.ID] = idx

		c.indexKeys(n, idx, key)
	}

	sort.Slice(c.substrings, func(i, j int) bool {
		if c.substrings[i].key != c.substrings[j].key {
			return c.substrings[i].key < c.substrings[j].key
		}
		return c.units[c.substrings[i].idx].ID < c.units[c.substrings[j].idx].ID
	})
	return c, nil
}

// indexKeys registers a unit's lookup keys, each in the index of its own
// class: the canonical key, its compact form, spelling variants (spaced
// and compact), and descriptor-stripped forms together with their
// variants. Every compact form additionally feeds the substring list.
func (c *Catalog) indexKeys(n *normalize.Normalizer, idx int, key string) {
	seenCompact := make(map[string]bool)
	add := func(index map[string][]int, forms ...string) {
		seen := make(map[string]bool)
		for _, form := range forms {
			if form == "" || seen[form] {
				continue
			}
			seen[form] = true
			index[form] = append(index[form], idx)
			if form == normalize.Compact(form) && !seenCompact[form] {
				seenCompact[form] = true
				c.substrings = append(c.substrings, compactEntry{key: form, idx: idx})
			}
		}
	}

	add(c.canonical, key)
	add(c.compact, normalize.Compact(key))

	var variants []string
	for _, v := range n.Variants(key) {
		variants = append(variants, v, normalize.Compact(v))
	}
	add(c.variant, variants...)

	var stripped []string
	for _, d := range n.DescriptorKeys(key) {
		stripped = append(stripped, d, normalize.Compact(d))
		for _, v := range n.Variants(d) {
			stripped = append(stripped, v, normalize.Compact(v))
		}
	}
	add(c.descriptor, stripped...)
}

// ByID returns the unit with the given identifier.
func (c *Catalog) ByID(id string) (Unit, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Unit{}, false
	}
	return c.units[idx], true
}

// LookupCanonical returns the units whose canonical name key equals key
// and whose validity window overlaps [from, to], in ID order.
func (c *Catalog) LookupCanonical(key string, from, to int) []Unit {
	return c.lookup(c.canonical, key, from, to)
}

// LookupCompact looks key up in the compact (space-removed) name index.
func (c *Catalog) LookupCompact(key string, from, to int) []Unit {
	return c.lookup(c.compact, key, from, to)
}

// LookupVariant looks key up among the units' spelling variants.
func (c *Catalog) LookupVariant(key string, from, to int) []Unit {
	return c.lookup(c.variant, key, from, to)
}

// LookupDescriptor looks key up among the units' descriptor-stripped
// forms.
func (c *Catalog) LookupDescriptor(key string, from, to int) []Unit {
	return c.lookup(c.descriptor, key, from, to)
}

func (c *Catalog) lookup(index map[string][]int, key string, from, to int) []Unit {
	var out []Unit
	for _, idx := range index[key] {
		u := c.units[idx]
		if u.OverlapsWindow(from, to) {
			out = append(out, u)
		}
	}
	return out
}

// SubstringCandidates returns the IDs of units with an indexed compact key
// that contains needle or is contained by it (proper containment only),
// restricted to units overlapping [from, to]. The result is deduplicated
// and in deterministic order.
func (c *Catalog) SubstringCandidates(needle string, from, to int) []string {
	if needle == "" {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, e := range c.substrings {
		if e.key == needle || e.key == "" {
			continue
		}
		if !containsEither(e.key, needle) {
			continue
		}
		u := c.units[e.idx]
		if !u.OverlapsWindow(from, to) || seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		out = append(out, u.ID)
	}
	return out
}

// maxCompactLenDiff rejects containments between keys of wildly different
// lengths ("ash" inside "ashby de la zouch woodlands" is noise, not a
// spelling variant).
const maxCompactLenDiff = 15

func containsEither(a, b string) bool {
	longer, shorter := a, b
	if len(longer) < len(shorter) {
		longer, shorter = shorter, longer
	}
	if len(longer)-len(shorter) > maxCompactLenDiff {
		return false
	}
	return len(longer) > len(shorter) && strings.Contains(longer, shorter)
}

// Len reports the number of catalog units.
func (c *Catalog) Len() int {
	return len(c.units)
}

// Units returns a copy of the unit list in ID order.
func (c *Catalog) Units() []Unit {
	out := make([]Unit, len(c.units))
	copy(out, c.units)
	return out
}
