package validation

import (
	"context"

	"go.uber.org/zap"

	"github.com/abhisek/quotagen/internal/diversity"
	"github.com/abhisek/quotagen/internal/generator"
)

// Severity of an artifact finding.
const (
	SeverityLow  = "low"
	SeverityHigh = "high"
)

// Finding is one observation a stage made about a candidate.
type Finding struct {
	Stage    State  `json:"stage"`
	Code     string `json:"code"`
	Severity string `json:"severity,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Subject is what a stage inspects: the candidate and the exclusion set of
// the task that produced it.
type Subject struct {
	Candidate  *generator.Candidate
	Exclusions *diversity.Set
}

// StageResult is the outcome of one stage.
type StageResult struct {
	Outcome  Outcome
	Findings []Finding

	// Review flags a passing candidate for human review.
	Review       bool
	ReviewReason string
}

// Stage is one validation step.
type Stage interface {
	// State is the non-terminal state this stage implements.
	State() State
	Check(ctx context.Context, s Subject) StageResult
}

// Result is the terminal outcome of a validation sequence.
type Result struct {
	State    State
	Action   Action
	Findings []Finding
	Visited  []State

	Review       bool
	ReviewReason string
}

// Accepted reports whether the candidate was accepted.
func (r Result) Accepted() bool {
	return r.Action == ActionAccept
}

// Pipeline drives candidates through the stages.
type Pipeline struct {
	stages map[State]Stage
}

// New builds a pipeline from its stages. Each stage is keyed by its State.
func New(stages ...Stage) *Pipeline {
	p := &Pipeline{stages: make(map[State]Stage, len(stages))}
	for _, s := range stages {
		p.stages[s.State()] = s
	}
	return p
}

// Run validates one candidate. Stages get a context detached from
// cancellation so a started sequence always reaches a terminal state.
func (p *Pipeline) Run(ctx context.Context, subject Subject) Result {
	ctx = context.WithoutCancel(ctx)

	var res Result
	state := Start
	for !state.Terminal() {
		res.Visited = append(res.Visited, state)

		stage, ok := p.stages[state]
		if !ok {
			zap.L().Error("No stage registered for state", zap.String("state", string(state)))
			res.Findings = append(res.Findings, Finding{Stage: state, Code: "stage_missing"})
			state = failState(state)
			break
		}

		sr := stage.Check(ctx, subject)
		res.Findings = append(res.Findings, sr.Findings...)
		if sr.Review && sr.Outcome == OutcomePass {
			res.Review = true
			res.ReviewReason = sr.ReviewReason
		}

		next, err := Next(state, sr.Outcome)
		if err != nil {
			zap.L().Error("Invalid stage outcome", zap.String("state", string(state)), zap.Error(err))
			next = failState(state)
		}

		zap.L().Debug("Validation transition",
			zap.String("cell", subject.Candidate.Cell.String()),
			zap.Int("attempt", subject.Candidate.Attempt),
			zap.String("state", string(state)),
			zap.String("outcome", string(sr.Outcome)),
			zap.String("next", string(next)))

		state = next
	}

	res.State = state
	res.Action, _ = ActionFor(state)
	return res
}

func failState(s State) State {
	next, err := Next(s, OutcomeFail)
	if err != nil {
		return StateRejectedMalformed
	}
	return next
}

// Malformed builds the terminal result for a candidate that never reached
// the stages because the response was unusable.
func Malformed(detail string) Result {
	return Result{
		State:  StateRejectedMalformed,
		Action: ActionRegenerate,
		Findings: []Finding{{
			Stage:  StateRejectedMalformed,
			Code:   generator.ReasonMalformed,
			Detail: detail,
		}},
	}
}
