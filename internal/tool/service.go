// SPDX-License-Identifier: Apache-2.0

// Package tool exposes the harmonization engine as MCP tools so research
// clients can probe normalization, matching, coverage, and cause
// assignment interactively.
package tool

import (
	"github.com/rdhproj/rdharmony/internal/assign"
	"github.com/rdhproj/rdharmony/internal/coverage"
	"github.com/rdhproj/rdharmony/internal/pipeline"
)

// Service binds the tool handlers to a pipeline and the result of one
// completed run. Both are immutable; handlers only read.
type Service struct {
	pipe     *pipeline.Pipeline
	res      *pipeline.Result
	cover    map[coverage.Key]coverage.Record
	assigner *assign.Assigner
}

// NewService creates the tool service over a pipeline and its run result.
func NewService(pipe *pipeline.Pipeline, res *pipeline.Result) *Service {
	return &Service{
		pipe:     pipe,
		res:      res,
		cover:    res.CoverageByKey(),
		assigner: assign.NewAssigner(pipe.Stats(), res.Coverage, res.Stability),
	}
}
