package diversity

import (
	"github.com/agext/levenshtein"

	"github.com/abhisek/quotagen/internal/curriculum"
)

// Duplicate reasons.
const (
	ReasonVerbatim        = "verbatim"
	ReasonSameWord        = "same word + same polarity"
	ReasonSameOperands    = "same operands + similar structure"
	ReasonSimilarPassage  = "similar passage structure"
	DefaultSimilarity     = 0.8
	DefaultReadingSimilar = 0.85
)

// Verdict is the outcome of a duplicate check. Review verdicts are not
// duplicates; they flag the candidate for a human to look at.
type Verdict struct {
	Duplicate bool
	Review    bool
	Reason    string
	// MatchIndex is the index of the matching fingerprint, -1 when none.
	MatchIndex int
}

// Guard applies the duplicate rules.
type Guard struct {
	SimilarityThreshold float64
	ReadingThreshold    float64
}

// NewGuard returns a Guard with the given thresholds; zero values fall back
// to the defaults.
func NewGuard(similarity, reading float64) *Guard {
	if similarity <= 0 {
		similarity = DefaultSimilarity
	}
	if reading <= 0 {
		reading = DefaultReadingSimilar
	}
	return &Guard{SimilarityThreshold: similarity, ReadingThreshold: reading}
}

// categoryRule is the category specific duplicate test applied after the
// verbatim check.
type categoryRule interface {
	match(g *Guard, kind Kind, a, b Fingerprint) (Verdict, bool)
}

type quantitativeRule struct{}

func (quantitativeRule) match(g *Guard, _ Kind, a, b Fingerprint) (Verdict, bool) {
	if len(a.Numbers) < 2 || len(b.Numbers) < 2 || !sameMultiset(a.Numbers, b.Numbers) {
		return Verdict{}, false
	}
	if similarity(a.Stem, b.Stem) <= g.SimilarityThreshold {
		return Verdict{}, false
	}
	return Verdict{Duplicate: true, Reason: ReasonSameOperands}, true
}

type verbalRule struct{}

func (verbalRule) match(_ *Guard, kind Kind, a, b Fingerprint) (Verdict, bool) {
	if !kind.Vocabulary || a.TargetWord == "" || a.TargetWord != b.TargetWord || a.Polarity != b.Polarity {
		return Verdict{}, false
	}
	return Verdict{Duplicate: true, Reason: ReasonSameWord}, true
}

type readingRule struct{}

func (readingRule) match(g *Guard, _ Kind, a, b Fingerprint) (Verdict, bool) {
	if similarity(a.Stem, b.Stem) <= g.ReadingThreshold {
		return Verdict{}, false
	}
	return Verdict{Review: true, Reason: ReasonSimilarPassage}, true
}

type writingRule struct{}

func (writingRule) match(*Guard, Kind, Fingerprint, Fingerprint) (Verdict, bool) {
	return Verdict{}, false
}

var categoryRules = map[curriculum.Category]categoryRule{
	curriculum.CategoryQuantitative: quantitativeRule{},
	curriculum.CategoryVerbal:       verbalRule{},
	curriculum.CategoryReading:      readingRule{},
	curriculum.CategoryWriting:      writingRule{},
}

// IsDuplicate checks candidate against existing. The verbatim rule is
// evaluated against every fingerprint before the category rule, and the
// first match wins. A review verdict is only returned when no duplicate
// was found.
func (g *Guard) IsDuplicate(candidate Fingerprint, existing []Fingerprint, kind Kind) Verdict {
	if candidate.Normalized != "" {
		for i, e := range existing {
			if e.Normalized == candidate.Normalized {
				return Verdict{Duplicate: true, Reason: ReasonVerbatim, MatchIndex: i}
			}
		}
	}

	rule, ok := categoryRules[kind.Category]
	if !ok {
		return Verdict{MatchIndex: -1}
	}

	review := Verdict{MatchIndex: -1}
	for i, e := range existing {
		v, ok := rule.match(g, kind, candidate, e)
		if !ok {
			continue
		}
		v.MatchIndex = i
		if v.Duplicate {
			return v
		}
		if !review.Review {
			review = v
		}
	}
	return review
}

// similarity is the normalized Levenshtein similarity in [0, 1].
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	return levenshtein.Similarity(a, b, nil)
}
