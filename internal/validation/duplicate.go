package validation

import (
	"context"
	"fmt"

	"github.com/abhisek/quotagen/internal/diversity"
)

// DuplicateChecker rejects candidates the guard considers duplicates of the
// task's exclusion set. Review verdicts pass with a flag.
type DuplicateChecker struct {
	guard *diversity.Guard
}

// NewDuplicateChecker returns a checker using guard.
func NewDuplicateChecker(guard *diversity.Guard) *DuplicateChecker {
	return &DuplicateChecker{guard: guard}
}

func (d *DuplicateChecker) State() State { return StateDuplicateCheck }

// Check compares the candidate with every fingerprint in the subject's set.
func (d *DuplicateChecker) Check(_ context.Context, s Subject) StageResult {
	if s.Exclusions == nil || s.Exclusions.Len() == 0 {
		return StageResult{Outcome: OutcomePass}
	}

	kind := s.Exclusions.Kind()
	fp := diversity.Compute(s.Candidate.QuestionText, kind)
	v := d.guard.IsDuplicate(fp, s.Exclusions.All(), kind)

	switch {
	case v.Duplicate:
		return StageResult{
			Outcome: OutcomeFail,
			Findings: []Finding{{
				Stage:  StateDuplicateCheck,
				Code:   "duplicate",
				Detail: fmt.Sprintf("%s (match #%d)", v.Reason, v.MatchIndex),
			}},
		}
	case v.Review:
		return StageResult{
			Outcome:      OutcomePass,
			Review:       true,
			ReviewReason: v.Reason,
			Findings: []Finding{{
				Stage:  StateDuplicateCheck,
				Code:   "review",
				Detail: fmt.Sprintf("%s (match #%d)", v.Reason, v.MatchIndex),
			}},
		}
	default:
		return StageResult{Outcome: OutcomePass}
	}
}
