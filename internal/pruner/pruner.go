package pruner

import (
	"context"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/abhisek/quotagen/internal/curriculum"
	"github.com/abhisek/quotagen/internal/inventory"
	"github.com/abhisek/quotagen/internal/store"
)

// Pruner plans and applies deletions. It never touches unassigned records.
type Pruner struct {
	catalog   *curriculum.Catalog
	questions store.QuestionRepo
	events    store.EventRepo
	dryRun    bool
	runID     string
}

// Option configures a Pruner.
type Option func(*Pruner)

// WithDryRun makes Apply report instead of delete.
func WithDryRun(dryRun bool) Option {
	return func(p *Pruner) { p.dryRun = dryRun }
}

// WithRunID tags prune events with the run that produced them.
func WithRunID(id string) Option {
	return func(p *Pruner) { p.runID = id }
}

// New creates a Pruner. events may be nil.
func New(catalog *curriculum.Catalog, questions store.QuestionRepo, events store.EventRepo, opts ...Option) *Pruner {
	p := &Pruner{catalog: catalog, questions: questions, events: events}
	for _, o := range opts {
		o(p)
	}
	return p
}

// DryRun reports whether Apply leaves the store untouched.
func (p *Pruner) DryRun() bool { return p.dryRun }

func (p *Pruner) section(ref store.SectionRef) (*curriculum.Section, error) {
	c, err := p.catalog.Get(ref.Product)
	if err != nil {
		return nil, err
	}
	sec, ok := c.Section(ref.TestMode, ref.Section)
	if !ok {
		return nil, eris.Errorf("section %q not found in %s/%s", ref.Section, ref.Product, ref.TestMode)
	}
	return sec, nil
}

// PlanSection computes the deletions that bring every sub-skill of the
// section down to its even share of the section target, and within each
// sub-skill every difficulty toward its even share.
func (p *Pruner) PlanSection(ctx context.Context, ref store.SectionRef, policy Policy) (*Plan, error) {
	sec, err := p.section(ref)
	if err != nil {
		return nil, err
	}

	recs, err := p.questions.ListSection(ctx, ref)
	if err != nil {
		return nil, eris.Wrapf(err, "list section %s", ref.Section)
	}

	plan := &Plan{
		Section:         ref,
		Policy:          policy,
		SectionTarget:   sec.Target(),
		SubSkillTargets: make(map[string]int, len(sec.SubSkills)),
	}

	// sub-skill -> difficulty -> records, created_at ascending.
	grouped := make(map[string]map[curriculum.Difficulty][]store.QuestionRecord)
	unassigned := 0
	for _, r := range recs {
		if !r.Assigned() {
			unassigned++
			continue
		}
		if grouped[r.SubSkill] == nil {
			grouped[r.SubSkill] = make(map[curriculum.Difficulty][]store.QuestionRecord)
		}
		d := curriculum.Difficulty(r.Difficulty)
		grouped[r.SubSkill][d] = append(grouped[r.SubSkill][d], r)
	}

	if unassigned > 0 {
		plan.Findings = append(plan.Findings, Finding{
			Level:   LevelWarn,
			Section: ref,
			Actual:  unassigned,
			Message: fmt.Sprintf("%d unassigned records are never pruned", unassigned),
		})
	}
	for _, name := range unknownSubSkills(grouped, sec) {
		plan.Findings = append(plan.Findings, Finding{
			Level:    LevelWarn,
			Section:  ref,
			SubSkill: name,
			Message:  "sub-skill is not in the curriculum; records left alone",
		})
	}

	difficulties := curriculum.Difficulties()
	targets := EvenSplit(plan.SectionTarget, len(sec.SubSkills))

	for i, sk := range sec.SubSkills {
		target := targets[i]
		plan.SubSkillTargets[sk.Name] = target

		byDiff := grouped[sk.Name]
		counts := make([]int, len(difficulties))
		actual := 0
		for j, d := range difficulties {
			counts[j] = len(byDiff[d])
			actual += counts[j]
		}

		dTargets := EvenSplit(target, len(difficulties))
		before := append([]int(nil), counts...)

		switch {
		case actual < target:
			plan.Findings = append(plan.Findings, Finding{
				Level:    LevelError,
				Section:  ref,
				SubSkill: sk.Name,
				Target:   target,
				Actual:   actual,
				Message:  belowTargetMessage(target, actual),
			})
		case actual > target:
			taken := make([]int, len(difficulties))
			for excess := actual - target; excess > 0; excess-- {
				j := largestExcess(counts, dTargets)
				if j < 0 {
					break
				}
				counts[j]--
				taken[j]++
			}
			for j, d := range difficulties {
				for _, r := range pick(byDiff[d], taken[j], policy) {
					plan.Removals = append(plan.Removals, Removal{
						ID:        r.ID,
						Cell:      curriculum.CellKey{Product: ref.Product, TestMode: ref.TestMode, Section: ref.Section, SubSkill: sk.Name, Difficulty: d},
						CreatedAt: r.CreatedAt,
						Reason:    fmt.Sprintf("sub-skill %d over target %d; difficulty %d over target %d", actual-target, target, before[j]-dTargets[j], dTargets[j]),
					})
				}
			}
		}

		// Pruning never fills a difficulty; a shortfall left once the
		// sub-skill is at target is reported instead.
		if actual >= target {
			for j, d := range difficulties {
				if counts[j] >= dTargets[j] {
					continue
				}
				plan.Findings = append(plan.Findings, Finding{
					Level:      LevelWarn,
					Section:    ref,
					SubSkill:   sk.Name,
					Difficulty: d,
					Target:     dTargets[j],
					Actual:     counts[j],
					Message:    "difficulty " + belowTargetMessage(dTargets[j], counts[j]),
				})
			}
		}

		for j, d := range difficulties {
			plan.Counts = append(plan.Counts, CellCount{
				SubSkill:   sk.Name,
				Difficulty: d,
				Target:     dTargets[j],
				Before:     before[j],
				After:      counts[j],
			})
		}
	}

	return plan, nil
}

func unknownSubSkills(grouped map[string]map[curriculum.Difficulty][]store.QuestionRecord, sec *curriculum.Section) []string {
	var out []string
	for name := range grouped {
		if _, ok := sec.SubSkill(name); !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// PruneSurplus selects surplus record ids from one cell according to policy.
// It does not delete anything.
func (p *Pruner) PruneSurplus(ctx context.Context, cell curriculum.CellKey, surplus int, policy Policy) ([]string, error) {
	if surplus <= 0 {
		return nil, nil
	}
	recs, err := p.questions.ListCell(ctx, cell.Ref())
	if err != nil {
		return nil, eris.Wrapf(err, "list cell %s", cell)
	}
	picked := pick(recs, surplus, policy)
	ids := make([]string, len(picked))
	for i, r := range picked {
		ids[i] = r.ID
	}
	return ids, nil
}

// PlanSurplus builds a plan that trims every surplus cell of an audit back
// to its required count.
func (p *Pruner) PlanSurplus(ctx context.Context, ref store.SectionRef, deltas []inventory.Delta, policy Policy) (*Plan, error) {
	plan := &Plan{Section: ref, Policy: policy, SubSkillTargets: map[string]int{}}
	for _, d := range deltas {
		if d.Cell.SectionRef() != ref {
			continue
		}
		plan.SectionTarget += d.Cell.Required
		plan.SubSkillTargets[d.Cell.SubSkill] += d.Cell.Required
		after := d.Actual

		if d.Surplus() {
			recs, err := p.questions.ListCell(ctx, d.Cell.Ref())
			if err != nil {
				return nil, eris.Wrapf(err, "list cell %s", d.Cell.CellKey)
			}
			for _, r := range pick(recs, -d.Delta, policy) {
				plan.Removals = append(plan.Removals, Removal{
					ID:        r.ID,
					Cell:      d.Cell.CellKey,
					CreatedAt: r.CreatedAt,
					Reason:    fmt.Sprintf("cell %d over quota %d", -d.Delta, d.Cell.Required),
				})
				after--
			}
		}

		plan.Counts = append(plan.Counts, CellCount{
			SubSkill:   d.Cell.SubSkill,
			Difficulty: d.Cell.Difficulty,
			Target:     d.Cell.Required,
			Before:     d.Actual,
			After:      after,
		})
	}
	return plan, nil
}

// ApplyResult summarizes what Apply did.
type ApplyResult struct {
	Planned int
	Deleted int
	DryRun  bool
}

// Apply executes a plan. Each deletion is logged with its reason and the
// cell's counts and recorded as a prune event. In dry-run mode the store
// is left untouched.
func (p *Pruner) Apply(ctx context.Context, plan *Plan) (*ApplyResult, error) {
	res := &ApplyResult{Planned: len(plan.Removals), DryRun: p.dryRun}
	if len(plan.Removals) == 0 {
		return res, nil
	}

	logger := zap.L().With(
		zap.String("product", plan.Section.Product),
		zap.String("test_mode", plan.Section.TestMode),
		zap.String("section", plan.Section.Section),
		zap.String("policy", string(plan.Policy)))

	if p.dryRun {
		for _, r := range plan.Removals {
			logger.Info("Would prune record",
				zap.String("id", r.ID),
				zap.String("sub_skill", r.Cell.SubSkill),
				zap.Int("difficulty", int(r.Cell.Difficulty)),
				zap.String("reason", r.Reason))
		}
		return res, nil
	}

	ids := make([]string, len(plan.Removals))
	for i, r := range plan.Removals {
		ids[i] = r.ID
	}
	n, err := p.questions.Delete(ctx, ids...)
	if err != nil {
		return res, eris.Wrapf(err, "delete %d records", len(ids))
	}
	res.Deleted = n

	for _, r := range plan.Removals {
		counts, _ := plan.count(r.Cell.SubSkill, r.Cell.Difficulty)
		after, err := p.questions.CountCell(ctx, r.Cell.Ref())
		if err != nil {
			return res, eris.Wrapf(err, "recount %s", r.Cell)
		}

		logger.Info("Pruned record",
			zap.String("id", r.ID),
			zap.String("sub_skill", r.Cell.SubSkill),
			zap.Int("difficulty", int(r.Cell.Difficulty)),
			zap.String("reason", r.Reason),
			zap.Int("count_before", counts.Before),
			zap.Int("count_after", after))

		if p.events == nil {
			continue
		}
		err = p.events.AppendPruneEvent(ctx, store.PruneEventData{
			RunID:       p.runID,
			QuestionID:  r.ID,
			Product:     r.Cell.Product,
			TestMode:    r.Cell.TestMode,
			Section:     r.Cell.Section,
			SubSkill:    r.Cell.SubSkill,
			Difficulty:  int(r.Cell.Difficulty),
			Policy:      string(plan.Policy),
			Reason:      r.Reason,
			CountBefore: counts.Before,
			CountAfter:  after,
		})
		if err != nil {
			logger.Warn("Failed to record prune event", zap.String("id", r.ID), zap.Error(err))
		}
	}

	for _, c := range plan.Counts {
		if c.Before == c.After {
			continue
		}
		logger.Info("Cell pruned",
			zap.String("sub_skill", c.SubSkill),
			zap.Int("difficulty", int(c.Difficulty)),
			zap.Int("target", c.Target),
			zap.Int("count_before", c.Before),
			zap.Int("count_after", c.After))
	}

	return res, nil
}
