// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/rdhproj/rdharmony/internal/assign"
	"github.com/rdhproj/rdharmony/internal/catalog"
	"github.com/rdhproj/rdharmony/internal/match"
)

// dataset is the YAML input document: the already-parsed collections the
// core consumes. Scraping, spreadsheet conversion, and geocoding happen
// upstream; this file format is only a typed hand-over point.
type dataset struct {
	Units       []catalog.UnitSource     `yaml:"units"`
	Officials   []catalog.OfficialSource `yaml:"officials"`
	Membership  []match.Row              `yaml:"membership"`
	GroupStats  []assign.GroupStat       `yaml:"group_stats"`
	Individuals []assign.Individual      `yaml:"individuals"`
}

func loadDataset(path string) (*dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var ds dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse dataset %q: %w", path, err)
	}
	if len(ds.Units) == 0 {
		return nil, fmt.Errorf("dataset %q: no units", path)
	}
	return &ds, nil
}
