package generator

import (
	"fmt"
	"strings"

	"github.com/abhisek/quotagen/internal/curriculum"
)

const (
	minOptions      = 4
	maxOptions      = 5
	maxQuestionLen  = 4000
	maxSolutionLen  = 4000
	maxOptionLength = 400
)

// checkShape verifies the structural contract of a response. It returns a
// description of the first problem found, or "" when the response is usable.
func checkShape(out *candidateOutput, sk curriculum.SubSkill) string {
	if strings.TrimSpace(out.QuestionText) == "" {
		return "question_text is empty"
	}
	if len(out.QuestionText) > maxQuestionLen {
		return fmt.Sprintf("question_text exceeds %d characters", maxQuestionLen)
	}
	if strings.TrimSpace(out.SolutionText) == "" {
		return "solution_text is empty"
	}
	if len(out.SolutionText) > maxSolutionLen {
		return fmt.Sprintf("solution_text exceeds %d characters", maxSolutionLen)
	}

	if len(out.Options) < minOptions || len(out.Options) > maxOptions {
		return fmt.Sprintf("expected %d-%d options, got %d", minOptions, maxOptions, len(out.Options))
	}
	seen := make(map[string]bool, len(out.Options))
	for i, o := range out.Options {
		key := strings.ToLower(strings.TrimSpace(o))
		if key == "" {
			return fmt.Sprintf("option %s is empty", OptionLetter(i))
		}
		if len(o) > maxOptionLength {
			return fmt.Sprintf("option %s exceeds %d characters", OptionLetter(i), maxOptionLength)
		}
		if seen[key] {
			return fmt.Sprintf("option %s duplicates another option", OptionLetter(i))
		}
		seen[key] = true
	}

	if _, ok := ResolveAnswer(out.Options, out.CorrectAnswer); !ok {
		return fmt.Sprintf("correct_answer %q does not resolve to exactly one option", out.CorrectAnswer)
	}

	kind := strings.ToLower(strings.TrimSpace(out.Visual.Kind))
	hasVisual := kind != "" && kind != VisualNone
	if sk.Visual.Required {
		if !hasVisual {
			return "visual is required but missing"
		}
		if sk.Visual.Kind != "" && kind != sk.Visual.Kind {
			return fmt.Sprintf("visual kind %q, expected %q", kind, sk.Visual.Kind)
		}
	}
	if hasVisual && strings.TrimSpace(out.Visual.Description) == "" {
		return "visual description is empty"
	}

	return ""
}
