// Package generator asks the external service for one candidate question
// per call and checks the shape of what comes back.
package generator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/abhisek/quotagen/internal/curriculum"
	"github.com/abhisek/quotagen/internal/diversity"
	"github.com/abhisek/quotagen/internal/llm"
)

// Generator produces candidate questions for a quota cell.
type Generator interface {
	// Generate produces one candidate. Failures are returned as
	// *GenerationFailure and are always transient.
	Generate(ctx context.Context, input Input) (*Candidate, error)
}

// Input holds everything one generation request needs.
type Input struct {
	Cell     curriculum.CellKey
	SubSkill curriculum.SubSkill

	// DifficultyBand describes the target difficulty in words.
	DifficultyBand string

	Category curriculum.Category

	// Exclusions is the task's exclusion set, described to the service so it
	// avoids topics, operands and target words already covered.
	Exclusions *diversity.Set

	// PriorTexts are question texts rejected earlier for the same slot.
	PriorTexts []string

	// Attempt is the 1-based attempt number within the slot.
	Attempt int
}

// Candidate is a generated, shape-checked question that has not been
// validated yet.
type Candidate struct {
	QuestionText  string
	Options       []string
	CorrectAnswer string
	Solution      string

	// Visual is the structured visual description; nil when the question has none.
	Visual json.RawMessage

	Attempt int
	Cell    curriculum.CellKey

	Model string
	Usage llm.Usage
}

// CorrectIndex returns the option index the correct answer resolves to.
func (c *Candidate) CorrectIndex() (int, bool) {
	return ResolveAnswer(c.Options, c.CorrectAnswer)
}

// Failure reasons.
const (
	ReasonMalformed   = "malformed_response"
	ReasonUnavailable = "service_unavailable"
)

// GenerationFailure reports why no usable candidate was produced.
type GenerationFailure struct {
	Reason string
	Detail string
	Err    error
}

func (e *GenerationFailure) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("generation failed (%s): %s: %v", e.Reason, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("generation failed (%s): %s", e.Reason, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("generation failed (%s): %v", e.Reason, e.Err)
	default:
		return fmt.Sprintf("generation failed (%s)", e.Reason)
	}
}

func (e *GenerationFailure) Unwrap() error { return e.Err }

func malformed(detail string, err error) *GenerationFailure {
	return &GenerationFailure{Reason: ReasonMalformed, Detail: detail, Err: err}
}

// classify maps a provider error to a generation failure.
func classify(err error) *GenerationFailure {
	if llm.IsMalformed(err) {
		return malformed("", err)
	}
	return &GenerationFailure{Reason: ReasonUnavailable, Err: err}
}
