// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rdhproj/rdharmony/internal/assign"
)

// MetadataAssignCauses describes the assign_causes tool.
var MetadataAssignCauses = &mcp.Tool{
	Name: "assign_causes",
	Description: "Assign a cause-of-death probability distribution to one individual by " +
		"ecological inference from the aggregate group statistics " +
		"(district x decade x age bucket x sex). Returns the base distribution, the " +
		"uncertainty-adjusted distribution (mass not explained by matched backbone geometry " +
		"goes to a synthetic uncertain category), and the uncertainty flag with its reason.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"district_id", "year", "age", "sex"},
		"properties": map[string]interface{}{
			"district_id": map[string]interface{}{
				"type":        "string",
				"description": "District identifier the individual was registered in",
			},
			"year": map[string]interface{}{
				"type":        "integer",
				"description": "Registration year; bucketed to its decade for the group key",
			},
			"age": map[string]interface{}{
				"type":        "integer",
				"description": "Age at death, 0-105",
			},
			"sex": map[string]interface{}{
				"type":        "string",
				"description": "Sex; m/male or f/female in any case",
			},
		},
	},
}

// InputAssignCauses is the input for the AssignCauses tool.
type InputAssignCauses struct {
	DistrictID string `json:"district_id"`
	Year       int    `json:"year"`
	Age        int    `json:"age"`
	Sex        string `json:"sex"`
}

// OutputAssignCauses is the output for the AssignCauses tool.
type OutputAssignCauses struct {
	Outcome         string             `json:"outcome"`
	Base            map[string]float64 `json:"base,omitempty"`
	Adjusted        map[string]float64 `json:"adjusted,omitempty"`
	MatchedFraction float64            `json:"matched_fraction"`
	Uncertain       bool               `json:"uncertain"`
	Reason          string             `json:"reason,omitempty"`
	Quality         string             `json:"quality,omitempty"`
	Confidence      string             `json:"confidence,omitempty"`
	GroupTotal      int                `json:"group_total,omitempty"`
}

// AssignCauses runs ecological inference for one ad-hoc individual using
// the bound run's coverage and stability tables.
func (s *Service) AssignCauses(_ context.Context, _ *mcp.CallToolRequest, input InputAssignCauses) (*mcp.CallToolResult, OutputAssignCauses, error) {
	if input.DistrictID == "" {
		return nil, OutputAssignCauses{}, fmt.Errorf("district_id is required")
	}
	if input.Sex == "" {
		return nil, OutputAssignCauses{}, fmt.Errorf("sex is required")
	}

	a, outcome := s.assigner.Assign(assign.Individual{
		ID:         "adhoc",
		DistrictID: input.DistrictID,
		Year:       input.Year,
		Age:        input.Age,
		Sex:        input.Sex,
	})
	out := OutputAssignCauses{Outcome: string(outcome)}
	if outcome == assign.OutcomeAssigned {
		out.Base = a.Base
		out.Adjusted = a.Adjusted
		out.MatchedFraction = a.MatchedFraction
		out.Uncertain = a.Uncertain
		out.Reason = string(a.Reason)
		out.Quality = string(a.Quality)
		out.Confidence = string(a.Confidence)
		out.GroupTotal = a.GroupTotal
	}
	return nil, out, nil
}
