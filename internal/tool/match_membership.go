// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rdhproj/rdharmony/internal/match"
)

// MetadataMatchMembership describes the match_membership tool.
var MetadataMatchMembership = &mcp.Tool{
	Name: "match_membership",
	Description: "Resolve a single membership row (unit name plus validity window) against the " +
		"backbone unit catalog. Matching is deterministic and rule-based: exact canonical key, " +
		"compact key, spelling variants, descriptor-stripped keys, then unique substring " +
		"containment. Ambiguous candidates are rejected, never guessed.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"unit_name"},
		"properties": map[string]interface{}{
			"unit_name": map[string]interface{}{
				"type":        "string",
				"description": "Raw unit (parish) name from the membership source",
			},
			"from_year": map[string]interface{}{
				"type":        "integer",
				"description": "Start of the row's validity window. Zero or omitted means open-ended.",
			},
			"to_year": map[string]interface{}{
				"type":        "integer",
				"description": "End of the row's validity window. Zero or omitted means open-ended.",
			},
		},
	},
}

// InputMatchMembership is the input for the MatchMembership tool.
type InputMatchMembership struct {
	UnitName string `json:"unit_name"`
	FromYear int    `json:"from_year"`
	ToYear   int    `json:"to_year"`
}

// OutputMatchMembership is the output for the MatchMembership tool.
type OutputMatchMembership struct {
	Matched   bool   `json:"matched"`
	UnitID    string `json:"unit_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Ambiguous bool   `json:"ambiguous"`
	Key       string `json:"key"`
}

// MatchMembership resolves one membership row against the catalog.
func (s *Service) MatchMembership(_ context.Context, _ *mcp.CallToolRequest, input InputMatchMembership) (*mcp.CallToolResult, OutputMatchMembership, error) {
	if input.UnitName == "" {
		return nil, OutputMatchMembership{}, fmt.Errorf("unit_name is required")
	}

	rec := s.pipe.Matcher().Match(match.Row{
		UnitName: input.UnitName,
		FromYear: input.FromYear,
		ToYear:   input.ToYear,
	})
	return nil, OutputMatchMembership{
		Matched:   rec.Matched,
		UnitID:    rec.UnitID,
		Method:    string(rec.Method),
		Ambiguous: rec.Ambiguous,
		Key:       rec.Key,
	}, nil
}
