// SPDX-License-Identifier: Apache-2.0

// Package config loads the recognized pipeline options from YAML.
// Absent keys keep their defaults, so a config file only needs to name
// what it changes.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/rdhproj/rdharmony/internal/coverage"
	"github.com/rdhproj/rdharmony/internal/normalize"
)

// Span is an inclusive year range.
type Span struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// Config is the full configuration surface of the engine.
type Config struct {
	// Rules toggles individual normalization rules.
	Rules normalize.Rules `yaml:"rules"`
	// UsabilityThreshold is the matched fraction above which a
	// district-year backbone is usable.
	UsabilityThreshold float64 `yaml:"usability_threshold"`
	// Stability parametrizes the boundary-instability predicate.
	Stability coverage.StabilityParams `yaml:"stability"`
	// ReferenceYears are the census years with backbone geometry:
	// dissolution and centroid validation run only at these years.
	ReferenceYears []int `yaml:"reference_years"`
	// CoverageYears is the span scored into the dense coverage table.
	// Individuals are joined to coverage by their exact year, so the
	// span must cover the individual records, not just the census years.
	CoverageYears Span `yaml:"coverage_years"`
	// Workers caps pipeline parallelism; zero lets the pipeline decide.
	Workers int `yaml:"workers"`
}

// Default returns the standard configuration: all normalization rules
// enabled, 0.8 usability threshold, 0.5 minimum adjacent overlap, the
// 1851-1911 census reference years, and coverage scored densely for
// 1851-1990.
func Default() Config {
	return Config{
		Rules:              normalize.DefaultRules(),
		UsabilityThreshold: coverage.DefaultThreshold,
		Stability:          coverage.DefaultStabilityParams(),
		ReferenceYears:     []int{1851, 1861, 1871, 1881, 1891, 1901, 1911},
		CoverageYears:      Span{From: 1851, To: 1990},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects out-of-range options.
func (c Config) Validate() error {
	if c.UsabilityThreshold <= 0 || c.UsabilityThreshold > 1 {
		return fmt.Errorf("usability_threshold %v outside (0, 1]", c.UsabilityThreshold)
	}
	if c.Stability.MinOverlap < 0 || c.Stability.MinOverlap > 1 {
		return fmt.Errorf("stability.min_overlap %v outside [0, 1]", c.Stability.MinOverlap)
	}
	if len(c.ReferenceYears) == 0 {
		return fmt.Errorf("reference_years must not be empty")
	}
	for i := 1; i < len(c.ReferenceYears); i++ {
		if c.ReferenceYears[i] <= c.ReferenceYears[i-1] {
			return fmt.Errorf("reference_years must be strictly ascending")
		}
	}
	if c.CoverageYears.From <= 0 || c.CoverageYears.To < c.CoverageYears.From {
		return fmt.Errorf("coverage_years %d-%d is not a valid span", c.CoverageYears.From, c.CoverageYears.To)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	return nil
}
