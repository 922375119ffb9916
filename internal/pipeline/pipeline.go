// SPDX-License-Identifier: Apache-2.0

// Package pipeline wires the engine stages together: match membership,
// dissolve per reference year, validate against official geometry, score
// coverage, and assign cause distributions to individuals. Stages fan
// out over parallel workers; every worker owns a disjoint partition and
// all shared inputs are immutable, so no locking is needed.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rdhproj/rdharmony/internal/assign"
	"github.com/rdhproj/rdharmony/internal/catalog"
	"github.com/rdhproj/rdharmony/internal/config"
	"github.com/rdhproj/rdharmony/internal/coverage"
	"github.com/rdhproj/rdharmony/internal/dissolve"
	"github.com/rdhproj/rdharmony/internal/match"
	"github.com/rdhproj/rdharmony/internal/normalize"
	"github.com/rdhproj/rdharmony/internal/validate"
)

// Pipeline holds the immutable reference state for a run: the catalogs,
// the group statistics, and the configured stage implementations.
type Pipeline struct {
	cfg       config.Config
	norm      *normalize.Normalizer
	cat       *catalog.Catalog
	officials *catalog.OfficialSet
	stats     *assign.StatTable
	matcher   *match.Matcher
	dissolver *dissolve.Dissolver
	scorer    *coverage.Scorer
	log       *slog.Logger
}

// New builds a Pipeline. The catalogs are parsed and indexed once here;
// everything afterwards is read-only.
func New(cfg config.Config, units []catalog.UnitSource, officials []catalog.OfficialSource, stats []assign.GroupStat, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	norm := normalize.New(cfg.Rules)
	cat, err := catalog.New(norm, units)
	if err != nil {
		return nil, fmt.Errorf("build unit catalog: %w", err)
	}
	official, err := catalog.NewOfficialSet(officials)
	if err != nil {
		return nil, fmt.Errorf("build official set: %w", err)
	}
	return &Pipeline{
		cfg:       cfg,
		norm:      norm,
		cat:       cat,
		officials: official,
		stats:     assign.NewStatTable(stats),
		matcher:   match.NewMatcher(norm, cat),
		dissolver: dissolve.NewDissolver(cat),
		scorer:    coverage.NewScorer(cfg.UsabilityThreshold),
		log:       logger,
	}, nil
}

// Normalizer exposes the pipeline's normalizer (used by the tool surface).
func (p *Pipeline) Normalizer() *normalize.Normalizer {
	return p.norm
}

// Matcher exposes the pipeline's matcher (used by the tool surface).
func (p *Pipeline) Matcher() *match.Matcher {
	return p.matcher
}

// Stats exposes the pipeline's group statistics table (used by the tool
// surface).
func (p *Pipeline) Stats() *assign.StatTable {
	return p.stats
}

// Result is the output of one run: the three output tables plus the
// intermediate records they were derived from, keyed deterministically.
type Result struct {
	RunID       uuid.UUID
	Records     []match.Record
	Constructed map[coverage.Key]dissolve.Constructed
	Diagnostics []validate.Diagnostic
	Coverage    []coverage.Record
	Stability   []coverage.Stability
	Assignments []assign.Assignment
	Outcomes    map[assign.Outcome]int
}

// CoverageByKey indexes the coverage table by its join key.
func (r *Result) CoverageByKey() map[coverage.Key]coverage.Record {
	out := make(map[coverage.Key]coverage.Record, len(r.Coverage))
	for _, c := range r.Coverage {
		out[coverage.Key{DistrictID: c.DistrictID, Year: c.Year}] = c
	}
	return out
}

// Run executes the full pipeline over membership rows and individual
// records. The result is deterministic: re-running on the same inputs
// yields the same tables (the run ID alone differs).
func (p *Pipeline) Run(ctx context.Context, rows []match.Row, individuals []assign.Individual) (*Result, error) {
	res := &Result{
		RunID:       uuid.New(),
		Constructed: make(map[coverage.Key]dissolve.Constructed),
		Outcomes:    make(map[assign.Outcome]int),
	}
	log := p.log.With("run_id", res.RunID.String())

	res.Records = p.matchRows(ctx, rows)
	matched := 0
	for _, r := range res.Records {
		if r.Matched {
			matched++
		}
	}
	log.Info("membership matched",
		"rows", len(res.Records),
		"matched", matched,
		"unmatched", len(res.Records)-matched)

	if err := p.buildCoverage(ctx, res); err != nil {
		return nil, err
	}
	log.Info("coverage built",
		"district_years", len(res.Coverage),
		"constructed", len(res.Constructed),
		"diagnostics", len(res.Diagnostics))

	if err := p.assignIndividuals(ctx, res, individuals); err != nil {
		return nil, err
	}
	log.Info("individuals assigned",
		"individuals", len(individuals),
		"assigned", res.Outcomes[assign.OutcomeAssigned],
		"unassigned", len(individuals)-res.Outcomes[assign.OutcomeAssigned])
	return res, nil
}

// matchRows resolves membership rows across parallel workers. Workers
// write disjoint ranges of the output slice, so order is preserved and
// the partition is independent of scheduling.
func (p *Pipeline) matchRows(ctx context.Context, rows []match.Row) []match.Record {
	records := make([]match.Record, len(rows))
	workers := p.workers()
	chunk := (len(rows) + workers - 1) / workers
	if chunk == 0 {
		return records
	}

	g, _ := errgroup.WithContext(ctx)
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		g.Go(func() error {
			for i := start; i < end; i++ {
				records[i] = p.matcher.Match(rows[i])
			}
			return nil
		})
	}
	// Workers are pure and never fail.
	_ = g.Wait()
	return records
}

// districtYearOutput is the per-worker result for one (district, year).
type districtYearOutput struct {
	key         coverage.Key
	constructed *dissolve.Constructed
	diagnostic  *validate.Diagnostic
	cover       coverage.Record
}

// buildCoverage scores every district at every year of the coverage
// span (membership fractions need no geometry), dissolving and
// validating only at the reference years, then imputes centroids and
// classifies stability. The dense table lets downstream assignment join
// by an individual's exact year.
func (p *Pipeline) buildCoverage(ctx context.Context, res *Result) error {
	byDistrict := match.ByDistrict(res.Records)
	districts := match.Districts(res.Records)
	names := districtNames(res.Records)

	years := p.coverageYears()
	reference := make(map[int]bool, len(p.cfg.ReferenceYears))
	for _, y := range p.cfg.ReferenceYears {
		reference[y] = true
	}

	outputs := make([][]districtYearOutput, len(years))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for yi, year := range years {
		g.Go(func() error {
			var out []districtYearOutput
			officials := p.officials.Year(year)
			for _, id := range districts {
				records := byDistrict[id]
				o := districtYearOutput{key: coverage.Key{DistrictID: id, Year: year}}

				if reference[year] {
					constructed, ok, err := p.dissolver.Dissolve(id, names[id], year, records)
					if err != nil {
						return err
					}
					if ok {
						o.constructed = &constructed
						if diag, ok := validate.Validate(constructed, officials); ok {
							o.diagnostic = &diag
						}
					}
				}
				o.cover = p.scorer.Score(id, names[id], year, records, o.constructed, o.diagnostic)
				out = append(out, o)
			}
			outputs[yi] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("build coverage: %w", err)
	}

	for _, yearOut := range outputs {
		for _, o := range yearOut {
			if o.constructed != nil {
				res.Constructed[o.key] = *o.constructed
			}
			if o.diagnostic != nil {
				res.Diagnostics = append(res.Diagnostics, *o.diagnostic)
			}
			res.Coverage = append(res.Coverage, o.cover)
		}
	}
	res.Coverage = coverage.ImputeCentroids(res.Coverage, p.officials)
	sortCoverage(res.Coverage)
	sortDiagnostics(res.Diagnostics)

	for _, id := range districts {
		sets := coverage.MatchedSets(byDistrict[id], p.cfg.ReferenceYears)
		res.Stability = append(res.Stability, coverage.ClassifyStability(id, sets, p.cfg.Stability))
	}
	return nil
}

// assignIndividuals fans individual records out over disjoint worker
// partitions.
func (p *Pipeline) assignIndividuals(ctx context.Context, res *Result, individuals []assign.Individual) error {
	assigner := assign.NewAssigner(p.stats, res.Coverage, res.Stability)

	assignments := make([]assign.Assignment, len(individuals))
	outcomes := make([]assign.Outcome, len(individuals))
	workers := p.workers()
	chunk := (len(individuals) + workers - 1) / workers
	if chunk > 0 {
		g, _ := errgroup.WithContext(ctx)
		for start := 0; start < len(individuals); start += chunk {
			end := min(start+chunk, len(individuals))
			g.Go(func() error {
				for i := start; i < end; i++ {
					assignments[i], outcomes[i] = assigner.Assign(individuals[i])
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	for i, outcome := range outcomes {
		res.Outcomes[outcome]++
		if outcome == assign.OutcomeAssigned {
			res.Assignments = append(res.Assignments, assignments[i])
		}
	}
	return nil
}

// coverageYears lists every year scored into the coverage table: the
// configured span plus any reference year falling outside it, ascending.
func (p *Pipeline) coverageYears() []int {
	seen := make(map[int]bool)
	var years []int
	for y := p.cfg.CoverageYears.From; y <= p.cfg.CoverageYears.To; y++ {
		seen[y] = true
		years = append(years, y)
	}
	for _, y := range p.cfg.ReferenceYears {
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years
}

func (p *Pipeline) workers() int {
	if p.cfg.Workers > 0 {
		return p.cfg.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// districtNames picks a display name per district ID; rows for the same
// district always carry the same name in practice, the first sorted
// record wins otherwise.
func districtNames(records []match.Record) map[string]string {
	names := make(map[string]string)
	for _, r := range records {
		if existing, ok := names[r.DistrictID]; !ok || r.District < existing {
			names[r.DistrictID] = r.District
		}
	}
	return names
}

func sortCoverage(records []coverage.Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].DistrictID != records[j].DistrictID {
			return records[i].DistrictID < records[j].DistrictID
		}
		return records[i].Year < records[j].Year
	})
}

func sortDiagnostics(diags []validate.Diagnostic) {
	sort.Slice(diags, func(i, j int) bool {
		if diags[i].DistrictID != diags[j].DistrictID {
			return diags[i].DistrictID < diags[j].DistrictID
		}
		return diags[i].Year < diags[j].Year
	})
}
