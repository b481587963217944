// Package orchestrator fills cell deficits by generating, validating and
// persisting candidates one slot at a time.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/abhisek/quotagen/internal/curriculum"
	"github.com/abhisek/quotagen/internal/diversity"
	"github.com/abhisek/quotagen/internal/generator"
	"github.com/abhisek/quotagen/internal/llm"
	"github.com/abhisek/quotagen/internal/store"
	"github.com/abhisek/quotagen/internal/validation"
)

// ReasonAborted marks slots that were not finished because the run was
// cancelled.
const ReasonAborted = "aborted"

// Target is the cell a fill operation works on, with the curriculum context
// the generator needs.
type Target struct {
	Cell     curriculum.CellKey
	SubSkill curriculum.SubSkill
	Band     string
	Category curriculum.Category
	RunID    string
}

// Kind returns the fingerprint kind of the target's sub-skill.
func (t Target) Kind() diversity.Kind {
	return diversity.Kind{Category: t.Category, Vocabulary: curriculum.IsVocabulary(t.SubSkill)}
}

// SlotFailure records a slot that ended without an accepted candidate.
type SlotFailure struct {
	Cell     curriculum.CellKey `json:"cell"`
	Slot     int                `json:"slot"`
	Attempts int                `json:"attempts"`
	Reasons  []string           `json:"reasons"`
}

// FillResult is the outcome of one FillDeficit call.
type FillResult struct {
	// Accepted holds the ids of the persisted records in slot order.
	Accepted []string
	Failures []SlotFailure
}

// Recorder observes the generation loop. Implementations must be safe for
// concurrent use.
type Recorder interface {
	RecordAttempt(cell curriculum.CellKey, attempt int, res validation.Result)
	RecordUnavailable(cell curriculum.CellKey, attempt int)
	RecordSlotFailure(f SlotFailure)
}

type nopRecorder struct{}

func (nopRecorder) RecordAttempt(curriculum.CellKey, int, validation.Result) {}
func (nopRecorder) RecordUnavailable(curriculum.CellKey, int)                {}
func (nopRecorder) RecordSlotFailure(SlotFailure)                            {}

// Config bounds the per-slot loop.
type Config struct {
	MaxAttempts   int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// DefaultConfig returns the default loop bounds.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   5,
		RetryDelay:    500 * time.Millisecond,
		MaxRetryDelay: 8 * time.Second,
	}
}

// Orchestrator runs the generate, validate, persist loop.
type Orchestrator struct {
	gen       generator.Generator
	validator *validation.Pipeline
	questions store.QuestionRepo
	recorder  Recorder
	config    Config
	now       func() time.Time
}

// New creates an Orchestrator. recorder may be nil.
func New(gen generator.Generator, validator *validation.Pipeline, questions store.QuestionRepo, recorder Recorder, cfg Config) *Orchestrator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Orchestrator{
		gen:       gen,
		validator: validator,
		questions: questions,
		recorder:  recorder,
		config:    cfg,
		now:       time.Now,
	}
}

// FillDeficit generates deficit new records for the target cell. Per-slot
// problems end up in FillResult.Failures; the error is reserved for store
// failures that make the whole operation meaningless.
func (o *Orchestrator) FillDeficit(ctx context.Context, t Target, deficit int) (*FillResult, error) {
	res := &FillResult{}
	if deficit <= 0 {
		return res, nil
	}

	set, err := o.exclusions(ctx, t)
	if err != nil {
		return nil, err
	}

	logger := zap.L().With(
		zap.String("product", t.Cell.Product),
		zap.String("section", t.Cell.Section),
		zap.String("sub_skill", t.Cell.SubSkill),
		zap.Int("difficulty", int(t.Cell.Difficulty)))
	logger.Info("Filling deficit", zap.Int("deficit", deficit), zap.Int("exclusions", set.Len()))

	for slot := 1; slot <= deficit; slot++ {
		if ctx.Err() != nil {
			for s := slot; s <= deficit; s++ {
				res.Failures = append(res.Failures, o.failSlot(t, s, 0, []string{ReasonAborted}))
			}
			logger.Warn("Fill aborted", zap.Int("unstarted_slots", deficit-slot+1))
			break
		}

		id, failure, err := o.fillSlot(ctx, t, set, slot)
		if err != nil {
			return res, err
		}
		if failure != nil {
			res.Failures = append(res.Failures, *failure)
			continue
		}
		res.Accepted = append(res.Accepted, id)
	}

	return res, nil
}

// exclusions builds the task's set from every stored record of the
// sub-skill across difficulties.
func (o *Orchestrator) exclusions(ctx context.Context, t Target) (*diversity.Set, error) {
	recs, err := o.questions.ListSubSkill(ctx, t.Cell.SectionRef(), t.Cell.SubSkill)
	if err != nil {
		return nil, eris.Wrapf(err, "load exclusions for %s", t.Cell)
	}
	set := diversity.NewSet(t.Kind())
	for _, r := range recs {
		set.Add(r.QuestionText)
	}
	return set, nil
}

func (o *Orchestrator) fillSlot(ctx context.Context, t Target, set *diversity.Set, slot int) (string, *SlotFailure, error) {
	var (
		reasons []string
		prior   []string
	)

	for attempt := 1; attempt <= o.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, o.delay(attempt-1)); err != nil {
				reasons = append(reasons, ReasonAborted)
				f := o.failSlot(t, slot, attempt-1, reasons)
				return "", &f, nil
			}
		}

		cand, err := o.gen.Generate(ctx, generator.Input{
			Cell:           t.Cell,
			SubSkill:       t.SubSkill,
			DifficultyBand: t.Band,
			Category:       t.Category,
			Exclusions:     set,
			PriorTexts:     prior,
			Attempt:        attempt,
		})
		if err != nil {
			reason := o.generationFailed(t, attempt, err)
			reasons = append(reasons, reason)
			if reason == ReasonAborted {
				f := o.failSlot(t, slot, attempt, reasons)
				return "", &f, nil
			}
			continue
		}

		vr := o.validator.Run(ctx, validation.Subject{Candidate: cand, Exclusions: set})
		o.recorder.RecordAttempt(t.Cell, attempt, vr)

		if !vr.Accepted() {
			zap.L().Debug("Candidate rejected",
				zap.String("cell", t.Cell.String()),
				zap.Int("slot", slot),
				zap.Int("attempt", attempt),
				zap.String("state", string(vr.State)))
			reasons = append(reasons, string(vr.State))
			prior = append(prior, cand.QuestionText)
			continue
		}

		id, err := o.persist(ctx, t, cand)
		if err != nil {
			return "", nil, err
		}
		set.Add(cand.QuestionText)

		fields := []zap.Field{
			zap.String("cell", t.Cell.String()),
			zap.Int("slot", slot),
			zap.Int("attempt", attempt),
			zap.String("id", id),
		}
		if vr.Review {
			fields = append(fields, zap.String("review", vr.ReviewReason))
		}
		zap.L().Info("Candidate accepted", fields...)
		return id, nil, nil
	}

	f := o.failSlot(t, slot, o.config.MaxAttempts, reasons)
	return "", &f, nil
}

// generationFailed records a generator error and returns the slot reason.
func (o *Orchestrator) generationFailed(t Target, attempt int, err error) string {
	if llm.IsCanceled(err) {
		return ReasonAborted
	}

	var gf *generator.GenerationFailure
	if !errors.As(err, &gf) {
		gf = &generator.GenerationFailure{Reason: generator.ReasonUnavailable, Err: err}
	}

	zap.L().Debug("Generation failed",
		zap.String("cell", t.Cell.String()),
		zap.Int("attempt", attempt),
		zap.String("reason", gf.Reason),
		zap.Error(err))

	if gf.Reason == generator.ReasonMalformed {
		res := validation.Malformed(gf.Error())
		o.recorder.RecordAttempt(t.Cell, attempt, res)
		return string(res.State)
	}
	o.recorder.RecordUnavailable(t.Cell, attempt)
	return gf.Reason
}

// persist stores an accepted candidate. The insert is detached from
// cancellation so an accepted candidate is never lost.
func (o *Orchestrator) persist(ctx context.Context, t Target, c *generator.Candidate) (string, error) {
	rec := &store.QuestionRecord{
		ID:            uuid.NewString(),
		Product:       t.Cell.Product,
		TestMode:      t.Cell.TestMode,
		Section:       t.Cell.Section,
		SubSkill:      t.Cell.SubSkill,
		Difficulty:    int(t.Cell.Difficulty),
		QuestionText:  c.QuestionText,
		Options:       c.Options,
		CorrectAnswer: c.CorrectAnswer,
		SolutionText:  c.Solution,
		Visual:        c.Visual,
		RunID:         t.RunID,
		CreatedAt:     o.now().UTC(),
	}
	if err := o.questions.Insert(context.WithoutCancel(ctx), rec); err != nil {
		return "", eris.Wrapf(err, "persist question for %s", t.Cell)
	}
	return rec.ID, nil
}

func (o *Orchestrator) failSlot(t Target, slot, attempts int, reasons []string) SlotFailure {
	f := SlotFailure{Cell: t.Cell, Slot: slot, Attempts: attempts, Reasons: reasons}
	if len(reasons) != 1 || reasons[0] != ReasonAborted {
		zap.L().Warn("Slot exhausted",
			zap.String("cell", t.Cell.String()),
			zap.Int("slot", slot),
			zap.Int("attempts", attempts),
			zap.Strings("reasons", reasons))
	}
	o.recorder.RecordSlotFailure(f)
	return f
}

// delay returns the wait before retry n (1-based): RetryDelay doubled per
// retry, capped at MaxRetryDelay.
func (o *Orchestrator) delay(n int) time.Duration {
	d := o.config.RetryDelay
	if d <= 0 {
		return 0
	}
	for i := 1; i < n; i++ {
		d *= 2
		if o.config.MaxRetryDelay > 0 && d >= o.config.MaxRetryDelay {
			return o.config.MaxRetryDelay
		}
	}
	if o.config.MaxRetryDelay > 0 && d > o.config.MaxRetryDelay {
		return o.config.MaxRetryDelay
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
