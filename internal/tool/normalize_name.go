// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rdhproj/rdharmony/internal/normalize"
)

// MetadataNormalizeName describes the normalize_name tool.
var MetadataNormalizeName = &mcp.Tool{
	Name: "normalize_name",
	Description: "Normalize a raw administrative-unit name to its canonical comparison key. " +
		"Returns the canonical key, the space-removed compact key used for substring " +
		"comparison, spelling variants (vowel interchange and Welsh orthography classes), " +
		"and descriptor-stripped keys ('Appleton with Eaton' also indexes as 'Appleton').",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"name"},
		"properties": map[string]interface{}{
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Raw administrative-unit name",
			},
		},
	},
}

// InputNormalizeName is the input for the NormalizeName tool.
type InputNormalizeName struct {
	Name string `json:"name"`
}

// OutputNormalizeName is the output for the NormalizeName tool.
type OutputNormalizeName struct {
	Key            string   `json:"key"`
	CompactKey     string   `json:"compact_key"`
	Variants       []string `json:"variants,omitempty"`
	DescriptorKeys []string `json:"descriptor_keys,omitempty"`
	Rules          []string `json:"rules"`
}

// NormalizeName runs the configured normalization pipeline over a single
// raw name.
func (s *Service) NormalizeName(_ context.Context, _ *mcp.CallToolRequest, input InputNormalizeName) (*mcp.CallToolResult, OutputNormalizeName, error) {
	if input.Name == "" {
		return nil, OutputNormalizeName{}, fmt.Errorf("name is required")
	}

	n := s.pipe.Normalizer()
	key := n.Key(input.Name)
	return nil, OutputNormalizeName{
		Key:            key,
		CompactKey:     normalize.Compact(key),
		Variants:       n.Variants(key),
		DescriptorKeys: n.DescriptorKeys(key),
		Rules:          n.RuleNames(),
	}, nil
}
