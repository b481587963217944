package pruner

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/abhisek/quotagen/internal/curriculum"
	"github.com/abhisek/quotagen/internal/store"
)

// Policy orders the records of one difficulty for removal.
type Policy string

const (
	PolicyNewest Policy = "newest"
	PolicyOldest Policy = "oldest"
)

// ParsePolicy validates a policy name. Empty means newest.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyNewest:
		return PolicyNewest, nil
	case PolicyOldest:
		return PolicyOldest, nil
	default:
		return "", eris.Errorf("unknown prune policy %q (want newest or oldest)", s)
	}
}

// Finding levels.
const (
	LevelError = "error"
	LevelWarn  = "warn"
)

// Finding reports a condition the pruner will not fix by deleting.
type Finding struct {
	Level      string                `json:"level"`
	Section    store.SectionRef      `json:"section"`
	SubSkill   string                `json:"sub_skill,omitempty"`
	Difficulty curriculum.Difficulty `json:"difficulty,omitempty"`
	Target     int                   `json:"target"`
	Actual     int                   `json:"actual"`
	Message    string                `json:"message"`
}

// Removal is one record selected for deletion.
type Removal struct {
	ID        string
	Cell      curriculum.CellKey
	CreatedAt time.Time
	Reason    string
}

// CellCount is the planned before/after count of one sub-skill and
// difficulty.
type CellCount struct {
	SubSkill   string
	Difficulty curriculum.Difficulty
	Target     int
	Before     int
	After      int
}

// Plan is the set of deletions for one section.
type Plan struct {
	Section       store.SectionRef
	Policy        Policy
	SectionTarget int

	// SubSkillTargets is the even split of SectionTarget in curriculum order.
	SubSkillTargets map[string]int

	Removals []Removal
	Findings []Finding
	Counts   []CellCount
}

// count returns the planned counts of a cell.
func (p *Plan) count(subSkill string, d curriculum.Difficulty) (CellCount, bool) {
	for _, c := range p.Counts {
		if c.SubSkill == subSkill && c.Difficulty == d {
			return c, true
		}
	}
	return CellCount{}, false
}

// pick returns n records from recs (ordered by created_at ascending)
// according to policy.
func pick(recs []store.QuestionRecord, n int, policy Policy) []store.QuestionRecord {
	if n > len(recs) {
		n = len(recs)
	}
	if n <= 0 {
		return nil
	}
	out := make([]store.QuestionRecord, 0, n)
	if policy == PolicyOldest {
		return append(out, recs[:n]...)
	}
	for i := len(recs) - 1; i >= len(recs)-n; i-- {
		out = append(out, recs[i])
	}
	return out
}

// largestExcess returns the index of the difficulty with the largest count
// over its target, the lower difficulty winning ties. It returns -1 when no
// difficulty is above target.
func largestExcess(counts, targets []int) int {
	best, bestExcess := -1, 0
	for i := range counts {
		if excess := counts[i] - targets[i]; excess > bestExcess {
			best, bestExcess = i, excess
		}
	}
	return best
}

func belowTargetMessage(target, actual int) string {
	return fmt.Sprintf("below target: %d of %d, generate %d more", actual, target, target-actual)
}
