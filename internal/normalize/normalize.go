// SPDX-License-Identifier: Apache-2.0

// Package normalize turns raw administrative-unit names into canonical
// comparison keys. The pipeline is an ordered table of pure rules; later
// rules never undo the work of earlier ones, so disabling any subset of
// rules still yields a stable, idempotent key.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Rules toggles individual normalization rules. The zero value disables
// everything; use DefaultRules for the standard pipeline.
type Rules struct {
	FoldCase            bool `yaml:"fold_case"`
	StripAccents        bool `yaml:"strip_accents"`
	StripBrackets       bool `yaml:"strip_brackets"`
	CanonicalSaint      bool `yaml:"canonical_saint"`
	AmpersandToAnd      bool `yaml:"ampersand_to_and"`
	CumToWith           bool `yaml:"cum_to_with"`
	SplitHyphens        bool `yaml:"split_hyphens"`
	StripPunctuation    bool `yaml:"strip_punctuation"`
	StripDivisionSuffix bool `yaml:"strip_division_suffix"`
	CollapseWhitespace  bool `yaml:"collapse_whitespace"`
}

// DefaultRules enables the full pipeline.
func DefaultRules() Rules {
	return Rules{
		FoldCase:            true,
		StripAccents:        true,
		StripBrackets:       true,
		CanonicalSaint:      true,
		AmpersandToAnd:      true,
		CumToWith:           true,
		SplitHyphens:        true,
		StripPunctuation:    true,
		StripDivisionSuffix: true,
		CollapseWhitespace:  true,
	}
}

var (
	reSquareBrackets = regexp.MustCompile(`\[[^\]]*\]`)
	reRoundBrackets  = regexp.MustCompile(`\([^)]*\)`)
	reSaint          = regexp.MustCompile(`\bst\b\.?`)
	reCum            = regexp.MustCompile(`\bcum\b`)
	rePunctuation    = regexp.MustCompile(`[^\w\s]`)
	reDivisionSuffix = regexp.MustCompile(`\s+(upper|lower|citra|ultra)\s+(and\s+(upper|lower|citra|ultra)\s+)?divisions?\b`)

	reWithClause = regexp.MustCompile(`\s+with\s+.*$`)
	reOnClause   = regexp.MustCompile(`\s+on\s+(the\s+)?.*$`)
	reNighClause = regexp.MustCompile(`\s+nigh\s+.*$`)
)

// rule is a single step of the normalization pipeline.
type rule struct {
	name    string
	enabled func(Rules) bool
	apply   func(string) string
}

// pipeline lists every rule in application order. Ordering matters: case
// folding comes first so later rules only see lowercase input, and
// whitespace collapsing comes last so intermediate rules may leave extra
// spaces behind.
var pipeline = []rule{
	{
		name:    "fold_case",
		enabled: func(r Rules) bool { return r.FoldCase },
		apply:   strings.ToLower,
	},
	{
		name:    "strip_accents",
		enabled: func(r Rules) bool { return r.StripAccents },
		apply:   stripAccents,
	},
	{
		name:    "strip_brackets",
		enabled: func(r Rules) bool { return r.StripBrackets },
		apply: func(s string) string {
			s = reSquareBrackets.ReplaceAllString(s, " ")
			return reRoundBrackets.ReplaceAllString(s, " ")
		},
	},
	{
		name:    "canonical_saint",
		enabled: func(r Rules) bool { return r.CanonicalSaint },
		apply: func(s string) string {
			return reSaint.ReplaceAllString(s, "saint")
		},
	},
	{
		name:    "ampersand_to_and",
		enabled: func(r Rules) bool { return r.AmpersandToAnd },
		apply: func(s string) string {
			return strings.ReplaceAll(s, "&", " and ")
		},
	},
	{
		name:    "cum_to_with",
		enabled: func(r Rules) bool { return r.CumToWith },
		apply: func(s string) string {
			return reCum.ReplaceAllString(s, " with ")
		},
	},
	{
		name:    "split_hyphens",
		enabled: func(r Rules) bool { return r.SplitHyphens },
		apply: func(s string) string {
			s = strings.ReplaceAll(s, "-", " ")
			return strings.ReplaceAll(s, "/", " ")
		},
	},
	{
		name:    "strip_punctuation",
		enabled: func(r Rules) bool { return r.StripPunctuation },
		apply: func(s string) string {
			return rePunctuation.ReplaceAllString(s, " ")
		},
	},
	{
		name:    "strip_division_suffix",
		enabled: func(r Rules) bool { return r.StripDivisionSuffix },
		apply: func(s string) string {
			return reDivisionSuffix.ReplaceAllString(s, "")
		},
	},
	{
		name:    "collapse_whitespace",
		enabled: func(r Rules) bool { return r.CollapseWhitespace },
		apply: func(s string) string {
			return strings.Join(strings.Fields(s), " ")
		},
	},
}

// Normalizer applies the configured rule pipeline. It is immutable and
// safe for concurrent use.
type Normalizer struct {
	rules  Rules
	active []rule
}

// New composes the pipeline from the enabled rules at configuration time.
func New(rules Rules) *Normalizer {
	active := make([]rule, 0, len(pipeline))
	for _, r := range pipeline {
		if r.enabled(rules) {
			active = append(active, r)
		}
	}
	return &Normalizer{rules: rules, active: active}
}

// Key returns the canonical comparison key for a raw name. It is total
// (never fails) and idempotent.
func (n *Normalizer) Key(raw string) string {
	s := strings.TrimSpace(raw)
	for _, r := range n.active {
		s = r.apply(s)
	}
	return strings.TrimSpace(s)
}

// CompactKey returns the space-removed form of Key, used for substring
// comparison ("Bessels Leigh" and "Besselsleigh" share a compact key).
func (n *Normalizer) CompactKey(raw string) string {
	return Compact(n.Key(raw))
}

// Compact removes all spaces from an already-normalized key.
func Compact(key string) string {
	return strings.ReplaceAll(key, " ", "")
}

// RuleNames reports the enabled rules in application order.
func (n *Normalizer) RuleNames() []string {
	names := make([]string, len(n.active))
	for i, r := range n.active {
		names[i] = r.name
	}
	return names
}

// variantClasses are character-substitution pairs observed between the two
// source vocabularies: vowel interchange (Courtenay/Courteney,
// Tedworth/Tidworth) and Welsh orthography (Llanvair/Llanfair,
// Dihewid/Dihewyd, Clarach/Claragh).
var variantClasses = [][2]string{
	{"a", "e"},
	{"e", "i"},
	{"v", "f"},
	{"i", "y"},
	{"ch", "gh"},
}

// Variants generates spelling variants of a canonical key by applying each
// substitution class in both directions. The input key itself is excluded
// and the result order is deterministic.
func (n *Normalizer) Variants(key string) []string {
	seen := map[string]bool{key: true}
	var out []string
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, class := range variantClasses {
		if strings.Contains(key, class[0]) {
			add(strings.ReplaceAll(key, class[0], class[1]))
		}
		if strings.Contains(key, class[1]) {
			add(strings.ReplaceAll(key, class[1], class[0]))
		}
	}
	return out
}

// DescriptorKeys returns additional lookup keys with known descriptor
// clauses removed: "X with Y" -> "X", "X on [the] Y" -> "X",
// "X nigh Y" -> "X", and "lower"/"upper" prefixes stripped. The original
// key is excluded; results keep their canonical (spaced) form.
func (n *Normalizer) DescriptorKeys(key string) []string {
	seen := map[string]bool{key: true}
	var out []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	if strings.Contains(key, " with ") {
		add(reWithClause.ReplaceAllString(key, ""))
	}
	if strings.Contains(key, " on ") {
		add(reOnClause.ReplaceAllString(key, ""))
	}
	if strings.Contains(key, " nigh ") {
		add(reNighClause.ReplaceAllString(key, ""))
	}
	if rest, ok := strings.CutPrefix(key, "lower "); ok {
		add(rest)
	}
	if rest, ok := strings.CutPrefix(key, "upper "); ok {
		add(rest)
	}
	return out
}

// stripAccents removes diacritical marks (Welsh place names carry
// circumflexes: ô, â, ŵ) by NFD-decomposing and dropping combining marks.
func stripAccents(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}
