// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rdhproj/rdharmony/internal/coverage"
)

// MetadataDistrictCoverage describes the district_coverage tool.
var MetadataDistrictCoverage = &mcp.Tool{
	Name: "district_coverage",
	Description: "Look up the coverage record for one (district, year): matched-membership " +
		"fraction, usable-backbone flag, centroid with provenance (validated or imputed from " +
		"the nearest valid neighbor), and the centroid diagnostic distance where official " +
		"geometry allowed validation.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"district_id", "year"},
		"properties": map[string]interface{}{
			"district_id": map[string]interface{}{
				"type":        "string",
				"description": "District identifier",
			},
			"year": map[string]interface{}{
				"type":        "integer",
				"description": "Reference year",
			},
		},
	},
}

// InputDistrictCoverage is the input for the DistrictCoverage tool.
type InputDistrictCoverage struct {
	DistrictID string `json:"district_id"`
	Year       int    `json:"year"`
}

// OutputDistrictCoverage is the output for the DistrictCoverage tool.
// Found=false means the run produced no record for the key; that is an
// answer, not an error.
type OutputDistrictCoverage struct {
	Found              bool    `json:"found"`
	District           string  `json:"district,omitempty"`
	ActiveRows         int     `json:"active_rows,omitempty"`
	MatchedRows        int     `json:"matched_rows,omitempty"`
	MatchedFraction    float64 `json:"matched_fraction,omitempty"`
	Usable             bool    `json:"usable,omitempty"`
	CentroidX          float64 `json:"centroid_x,omitempty"`
	CentroidY          float64 `json:"centroid_y,omitempty"`
	Provenance         string  `json:"provenance,omitempty"`
	Validated          bool    `json:"validated,omitempty"`
	DiagnosticDistance float64 `json:"diagnostic_distance,omitempty"`
	DominantUnitID     string  `json:"dominant_unit_id,omitempty"`
	DominantAreaShare  float64 `json:"dominant_area_share,omitempty"`
}

// DistrictCoverage looks up one coverage record from the bound run.
func (s *Service) DistrictCoverage(_ context.Context, _ *mcp.CallToolRequest, input InputDistrictCoverage) (*mcp.CallToolResult, OutputDistrictCoverage, error) {
	if input.DistrictID == "" {
		return nil, OutputDistrictCoverage{}, fmt.Errorf("district_id is required")
	}

	rec, ok := s.cover[coverage.Key{DistrictID: input.DistrictID, Year: input.Year}]
	if !ok {
		return nil, OutputDistrictCoverage{}, nil
	}
	return nil, OutputDistrictCoverage{
		Found:              true,
		District:           rec.District,
		ActiveRows:         rec.ActiveRows,
		MatchedRows:        rec.MatchedRows,
		MatchedFraction:    rec.MatchedFraction,
		Usable:             rec.Usable,
		CentroidX:          rec.Centroid.X,
		CentroidY:          rec.Centroid.Y,
		Provenance:         string(rec.Provenance),
		Validated:          rec.Validated,
		DiagnosticDistance: rec.DiagnosticDistance,
		DominantUnitID:     rec.DominantUnitID,
		DominantAreaShare:  rec.DominantAreaShare,
	}, nil
}
