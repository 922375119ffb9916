// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdhproj/rdharmony/internal/assign"
	"github.com/rdhproj/rdharmony/internal/catalog"
	"github.com/rdhproj/rdharmony/internal/config"
	"github.com/rdhproj/rdharmony/internal/match"
	"github.com/rdhproj/rdharmony/internal/pipeline"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	cfg := config.Default()
	cfg.ReferenceYears = []int{1851}
	cfg.CoverageYears = config.Span{From: 1851, To: 1851}

	units := []catalog.UnitSource{
		{ID: "P1", Name: "Appleton", WKT: "POLYGON((0 0,2 0,2 2,0 2,0 0))"},
		{ID: "P2", Name: "Besselsleigh", WKT: "POLYGON((2 0,4 0,4 2,2 2,2 0))"},
	}
	officials := []catalog.OfficialSource{
		{District: "Abingdon", Year: 1851, WKT: "POLYGON((-1 -1,5 -1,5 3,-1 3,-1 -1))"},
	}
	stats := []assign.GroupStat{
		{
			Key:    assign.GroupKey{DistrictID: "D1", Decade: 1850, AgeBucket: "a_45_54", Sex: "M"},
			Counts: map[string]int{"tuberculosis": 30, "pneumonia": 20},
		},
	}

	p, err := pipeline.New(cfg, units, officials, stats,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	res, err := p.Run(context.Background(), []match.Row{
		{DistrictID: "D1", District: "Abingdon", UnitName: "Appleton"},
		{DistrictID: "D1", District: "Abingdon", UnitName: "Bessels Leigh"},
	}, nil)
	require.NoError(t, err)

	return NewService(p, res)
}

func TestNormalizeName(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}
	s := newTestService(t)

	tests := []struct {
		name           string
		input          InputNormalizeName
		wantErr        bool
		errContains    string
		validateOutput func(t *testing.T, output OutputNormalizeName)
	}{
		{
			name:        "empty name returns error",
			input:       InputNormalizeName{Name: ""},
			wantErr:     true,
			errContains: "name is required",
		},
		{
			name:  "canonical key and compact key",
			input: InputNormalizeName{Name: "Bessels Leigh"},
			validateOutput: func(t *testing.T, output OutputNormalizeName) {
				assert.Equal(t, "bessels leigh", output.Key)
				assert.Equal(t, "besselsleigh", output.CompactKey)
				assert.NotEmpty(t, output.Rules, "enabled rules are reported")
			},
		},
		{
			name:  "descriptor clause yields extra keys",
			input: InputNormalizeName{Name: "Appleton with Eaton"},
			validateOutput: func(t *testing.T, output OutputNormalizeName) {
				assert.Equal(t, "appleton with eaton", output.Key)
				assert.Contains(t, output.DescriptorKeys, "appleton")
			},
		},
		{
			name:  "spelling variants are generated",
			input: InputNormalizeName{Name: "Llanvair"},
			validateOutput: func(t *testing.T, output OutputNormalizeName) {
				assert.Contains(t, output.Variants, "llanfair")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, output, err := s.NormalizeName(ctx, req, tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			tt.validateOutput(t, output)
		})
	}
}

func TestMatchMembership(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}
	s := newTestService(t)

	tests := []struct {
		name           string
		input          InputMatchMembership
		wantErr        bool
		errContains    string
		validateOutput func(t *testing.T, output OutputMatchMembership)
	}{
		{
			name:        "empty unit name returns error",
			input:       InputMatchMembership{UnitName: ""},
			wantErr:     true,
			errContains: "unit_name is required",
		},
		{
			name:  "exact match",
			input: InputMatchMembership{UnitName: "Appleton"},
			validateOutput: func(t *testing.T, output OutputMatchMembership) {
				assert.True(t, output.Matched)
				assert.Equal(t, "P1", output.UnitID)
				assert.Equal(t, "exact", output.Method)
				assert.False(t, output.Ambiguous)
			},
		},
		{
			name:  "compact match bridges spacing",
			input: InputMatchMembership{UnitName: "Bessels Leigh"},
			validateOutput: func(t *testing.T, output OutputMatchMembership) {
				assert.True(t, output.Matched)
				assert.Equal(t, "P2", output.UnitID)
				assert.Equal(t, "compact", output.Method)
			},
		},
		{
			name:  "unknown name stays unmatched",
			input: InputMatchMembership{UnitName: "Nonesuch Parva"},
			validateOutput: func(t *testing.T, output OutputMatchMembership) {
				assert.False(t, output.Matched)
				assert.Empty(t, output.UnitID)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, output, err := s.MatchMembership(ctx, req, tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			tt.validateOutput(t, output)
		})
	}
}

func TestDistrictCoverage(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}
	s := newTestService(t)

	tests := []struct {
		name           string
		input          InputDistrictCoverage
		wantErr        bool
		errContains    string
		validateOutput func(t *testing.T, output OutputDistrictCoverage)
	}{
		{
			name:        "empty district id returns error",
			input:       InputDistrictCoverage{DistrictID: ""},
			wantErr:     true,
			errContains: "district_id is required",
		},
		{
			name:  "existing record",
			input: InputDistrictCoverage{DistrictID: "D1", Year: 1851},
			validateOutput: func(t *testing.T, output OutputDistrictCoverage) {
				assert.True(t, output.Found)
				assert.Equal(t, "Abingdon", output.District)
				assert.Equal(t, 2, output.ActiveRows)
				assert.Equal(t, 2, output.MatchedRows)
				assert.InDelta(t, 1.0, output.MatchedFraction, 1e-9)
				assert.True(t, output.Usable)
				assert.Equal(t, "validated", output.Provenance)
				assert.True(t, output.Validated)
			},
		},
		{
			name:  "missing record is an answer not an error",
			input: InputDistrictCoverage{DistrictID: "D9", Year: 1851},
			validateOutput: func(t *testing.T, output OutputDistrictCoverage) {
				assert.False(t, output.Found)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, output, err := s.DistrictCoverage(ctx, req, tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			tt.validateOutput(t, output)
		})
	}
}

func TestAssignCauses(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}
	s := newTestService(t)

	tests := []struct {
		name           string
		input          InputAssignCauses
		wantErr        bool
		errContains    string
		validateOutput func(t *testing.T, output OutputAssignCauses)
	}{
		{
			name:        "empty district id returns error",
			input:       InputAssignCauses{Sex: "M"},
			wantErr:     true,
			errContains: "district_id is required",
		},
		{
			name:        "empty sex returns error",
			input:       InputAssignCauses{DistrictID: "D1"},
			wantErr:     true,
			errContains: "sex is required",
		},
		{
			name:  "assigned with full coverage",
			input: InputAssignCauses{DistrictID: "D1", Year: 1851, Age: 50, Sex: "M"},
			validateOutput: func(t *testing.T, output OutputAssignCauses) {
				assert.Equal(t, "assigned", output.Outcome)
				assert.InDelta(t, 0.6, output.Base["tuberculosis"], 1e-9)
				assert.InDelta(t, 0.4, output.Base["pneumonia"], 1e-9)
				assert.Equal(t, output.Base, output.Adjusted)
				assert.InDelta(t, 1.0, output.MatchedFraction, 1e-9)
				assert.False(t, output.Uncertain)
				assert.Equal(t, 50, output.GroupTotal)
			},
		},
		{
			name:  "no aggregate row",
			input: InputAssignCauses{DistrictID: "D9", Year: 1851, Age: 50, Sex: "M"},
			validateOutput: func(t *testing.T, output OutputAssignCauses) {
				assert.Equal(t, "no-group-statistic", output.Outcome)
				assert.Empty(t, output.Base)
			},
		},
		{
			name:  "implausible age",
			input: InputAssignCauses{DistrictID: "D1", Year: 1851, Age: 140, Sex: "M"},
			validateOutput: func(t *testing.T, output OutputAssignCauses) {
				assert.Equal(t, "no-group-key", output.Outcome)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, output, err := s.AssignCauses(ctx, req, tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			tt.validateOutput(t, output)
		})
	}
}
