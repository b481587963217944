package generator

import "github.com/abhisek/quotagen/internal/llm"

// VisualNone marks a question without a visual.
const VisualNone = "none"

// CandidateSchema defines the JSON schema for generation responses.
var CandidateSchema = &llm.Schema{
	Name:        "candidate-question",
	Description: "One multiple-choice exam question with answer, worked solution and optional visual",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question_text": map[string]any{
				"type":        "string",
				"description": "The question stem shown to the student, without the answer options",
			},
			"options": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"minItems":    4,
				"maxItems":    5,
				"description": "4 or 5 distinct answer options without letter prefixes",
			},
			"correct_answer": map[string]any{
				"type":        "string",
				"description": "The option letter (A-E) of the single correct option",
			},
			"solution_text": map[string]any{
				"type":        "string",
				"description": "Final worked solution. State the reasoning once; no self-corrections.",
			},
			"visual": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"kind": map[string]any{
						"type":        "string",
						"enum":        []any{VisualNone, "diagram", "chart", "pattern"},
						"description": "The kind of visual, or none",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Precise description an illustrator can draw from; empty when kind is none",
					},
				},
				"required":             []any{"kind", "description"},
				"additionalProperties": false,
			},
		},
		"required":             []any{"question_text", "options", "correct_answer", "solution_text", "visual"},
		"additionalProperties": false,
	},
}

// candidateOutput is the raw response before the shape check.
type candidateOutput struct {
	QuestionText  string       `json:"question_text"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correct_answer"`
	SolutionText  string       `json:"solution_text"`
	Visual        visualOutput `json:"visual"`
}

type visualOutput struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
}
