package validation

import (
	"context"

	"go.uber.org/zap"

	"github.com/abhisek/quotagen/internal/generator"
	"github.com/abhisek/quotagen/internal/store"
)

// Disagreement is a persisted record whose stored answer the oracle did not
// confirm.
type Disagreement struct {
	ID       string
	Question string
	Stored   string
	Findings []Finding
}

// Reverify re-runs answer verification on persisted records. Records the
// oracle could not be asked about are reported with the
// verification_unavailable finding. It stops early when ctx is cancelled.
func Reverify(ctx context.Context, verifier *AnswerVerifier, recs []store.QuestionRecord) []Disagreement {
	var out []Disagreement
	for _, rec := range recs {
		if ctx.Err() != nil {
			break
		}
		c := &generator.Candidate{
			QuestionText:  rec.QuestionText,
			Options:       rec.Options,
			CorrectAnswer: rec.CorrectAnswer,
			Solution:      rec.SolutionText,
			Visual:        rec.Visual,
		}
		res := verifier.Check(ctx, Subject{Candidate: c})
		if res.Outcome == OutcomePass {
			continue
		}
		zap.L().Info("Stored answer not confirmed",
			zap.String("id", rec.ID),
			zap.String("sub_skill", rec.SubSkill),
			zap.Int("difficulty", rec.Difficulty))
		out = append(out, Disagreement{
			ID:       rec.ID,
			Question: rec.QuestionText,
			Stored:   rec.CorrectAnswer,
			Findings: res.Findings,
		})
	}
	return out
}
