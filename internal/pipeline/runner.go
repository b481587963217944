// Package pipeline drives a generation run over every cell of a product
// and test mode.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/quotagen/internal/curriculum"
	"github.com/abhisek/quotagen/internal/inventory"
	"github.com/abhisek/quotagen/internal/orchestrator"
	"github.com/abhisek/quotagen/internal/pruner"
	"github.com/abhisek/quotagen/internal/report"
	"github.com/abhisek/quotagen/internal/store"
)

// Options selects what a run does.
type Options struct {
	RunID    string
	Product  string
	TestMode string

	// Sections restricts the run to these sections; empty means all.
	Sections []string

	// Fill generates candidates for deficit cells.
	Fill bool

	// Prune trims each section before filling it.
	Prune  bool
	Policy pruner.Policy
}

// Runner wires the accountant, pruner and orchestrator together.
type Runner struct {
	catalog     *curriculum.Catalog
	accountant  *inventory.Accountant
	orch        *orchestrator.Orchestrator
	pruner      *pruner.Pruner
	concurrency int
}

// NewRunner creates a Runner. pr may be nil when pruning is never requested.
func NewRunner(catalog *curriculum.Catalog, acct *inventory.Accountant, orch *orchestrator.Orchestrator, pr *pruner.Pruner, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		catalog:     catalog,
		accountant:  acct,
		orch:        orch,
		pruner:      pr,
		concurrency: concurrency,
	}
}

// sectionWork is the cells of one section in curriculum order.
type sectionWork struct {
	ref   store.SectionRef
	class curriculum.Classification
	cells []curriculum.QuotaCell
}

// Run audits, optionally prunes, and fills every selected cell. Sections run
// concurrently up to the configured limit; cells within a section run one
// after another. Counts are re-read per cell. A cancelled run stops before
// the next cell and returns the context error after in-flight slots finish.
func (r *Runner) Run(ctx context.Context, opts Options, stats *report.Stats) error {
	cur, err := r.catalog.Get(opts.Product)
	if err != nil {
		return err
	}
	cells, err := cur.Cells(opts.TestMode)
	if err != nil {
		return err
	}
	cells = filterSections(cells, opts.Sections)
	if len(cells) == 0 {
		return eris.Errorf("no cells selected for %s/%s", opts.Product, opts.TestMode)
	}
	if opts.Prune && r.pruner == nil {
		return eris.New("prune requested but no pruner configured")
	}

	audit, err := r.accountant.ComputeDeltas(ctx, cells)
	if err != nil {
		return err
	}
	stats.AddUnassigned(audit.Unassigned...)

	required, actual := audit.Totals()
	zap.L().Info("Run started",
		zap.String("run_id", opts.RunID),
		zap.String("product", opts.Product),
		zap.String("test_mode", opts.TestMode),
		zap.Int("cells", len(cells)),
		zap.Int("required", required),
		zap.Int("actual", actual),
		zap.Int("deficit_cells", len(audit.Deficits())),
		zap.Int("surplus_cells", len(audit.Surpluses())))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, w := range groupBySection(cells) {
		g.Go(func() error {
			return r.runSection(gctx, cur, w, opts, stats)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (r *Runner) runSection(ctx context.Context, cur *curriculum.Curriculum, w sectionWork, opts Options, stats *report.Stats) error {
	logger := zap.L().With(
		zap.String("product", w.ref.Product),
		zap.String("section", w.ref.Section),
		zap.String("category", string(w.class.Category)))

	if opts.Prune && ctx.Err() == nil {
		plan, err := r.pruner.PlanSection(ctx, w.ref, opts.Policy)
		if err != nil {
			return err
		}
		res, err := r.pruner.Apply(ctx, plan)
		if err != nil {
			return err
		}
		stats.AddPrune(plan.Findings, res.Deleted)
		logger.Info("Section pruned", zap.Int("planned", res.Planned), zap.Int("deleted", res.Deleted), zap.Bool("dry_run", res.DryRun))
	}

	for _, cell := range w.cells {
		if ctx.Err() != nil {
			logger.Warn("Section stopped by cancellation")
			return nil
		}

		d, err := r.accountant.CellDelta(ctx, cell)
		if err != nil {
			return err
		}
		stats.ObserveCell(d)

		if !opts.Fill || !d.Deficit() {
			continue
		}

		sk, ok := cur.SubSkill(cell.CellKey)
		if !ok {
			return eris.Errorf("sub-skill %s missing from curriculum", cell.CellKey)
		}

		res, err := r.orch.FillDeficit(ctx, orchestrator.Target{
			Cell:     cell.CellKey,
			SubSkill: sk,
			Band:     cur.Band(cell.Difficulty),
			Category: w.class.Category,
			RunID:    opts.RunID,
		}, d.Delta)
		if err != nil {
			return err
		}

		logger.Info("Cell filled",
			zap.String("sub_skill", cell.SubSkill),
			zap.Int("difficulty", int(cell.Difficulty)),
			zap.Int("deficit", d.Delta),
			zap.Int("accepted", len(res.Accepted)),
			zap.Int("failed_slots", len(res.Failures)))
	}
	return nil
}

func filterSections(cells []curriculum.QuotaCell, sections []string) []curriculum.QuotaCell {
	if len(sections) == 0 {
		return cells
	}
	keep := make(map[string]bool, len(sections))
	for _, s := range sections {
		keep[s] = true
	}
	var out []curriculum.QuotaCell
	for _, c := range cells {
		if keep[c.Section] {
			out = append(out, c)
		}
	}
	return out
}

// groupBySection splits cells into per-section work, keeping both section
// and cell order.
func groupBySection(cells []curriculum.QuotaCell) []sectionWork {
	var out []sectionWork
	index := make(map[store.SectionRef]int)
	for _, c := range cells {
		ref := c.SectionRef()
		i, ok := index[ref]
		if !ok {
			i = len(out)
			index[ref] = i
			out = append(out, sectionWork{ref: ref, class: curriculum.Classify(c.Section)})
		}
		out[i].cells = append(out[i].cells, c)
	}
	return out
}
