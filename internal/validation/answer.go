package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/quotagen/internal/generator"
	"github.com/abhisek/quotagen/internal/llm"
)

// Finding codes of the answer stage.
const (
	CodeAnswerMismatch          = "answer_mismatch"
	CodeVerificationUnavailable = "verification_unavailable"
)

// Question is what the oracle is shown: the stem, the options and the
// visual description when the question has one. The solution and the
// expected answer are never part of it.
type Question struct {
	Text    string
	Options []string
	Visual  json.RawMessage
}

// Oracle solves a question independently.
type Oracle interface {
	Answer(ctx context.Context, q Question) (string, error)
}

// AnswerVerifier compares the candidate's answer with the oracle's.
type AnswerVerifier struct {
	oracle Oracle
}

// NewAnswerVerifier returns a verifier backed by oracle.
func NewAnswerVerifier(oracle Oracle) *AnswerVerifier {
	return &AnswerVerifier{oracle: oracle}
}

func (v *AnswerVerifier) State() State { return StateAnswerVerification }

// Check fails when the oracle disagrees or cannot be reached.
func (v *AnswerVerifier) Check(ctx context.Context, s Subject) StageResult {
	c := s.Candidate

	expected, ok := c.CorrectIndex()
	if !ok {
		return fail(CodeAnswerMismatch, fmt.Sprintf("correct answer %q matches no option", c.CorrectAnswer))
	}

	got, err := v.oracle.Answer(ctx, Question{Text: c.QuestionText, Options: c.Options, Visual: c.Visual})
	if err != nil {
		return fail(CodeVerificationUnavailable, err.Error())
	}

	idx, ok := generator.ResolveAnswer(c.Options, got)
	if !ok {
		return fail(CodeAnswerMismatch, fmt.Sprintf("oracle answer %q matches no option", got))
	}
	if idx != expected {
		return fail(CodeAnswerMismatch, fmt.Sprintf("oracle chose %s, expected %s",
			generator.OptionLetter(idx), generator.OptionLetter(expected)))
	}

	return StageResult{Outcome: OutcomePass}
}

func fail(code, detail string) StageResult {
	return StageResult{
		Outcome:  OutcomeFail,
		Findings: []Finding{{Stage: StateAnswerVerification, Code: code, Detail: detail}},
	}
}

const oracleSystemPrompt = `You are an expert test taker. Solve the multiple-choice question yourself, carefully and independently.
Reply with the letter of the single best option.`

// oracleSchema is the response schema of the verification request.
var oracleSchema = &llm.Schema{
	Name:        "oracle-answer",
	Description: "The letter of the option the solver picked",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"answer": map[string]any{
				"type":        "string",
				"description": "The option letter, A-E",
			},
		},
		"required":             []any{"answer"},
		"additionalProperties": false,
	},
}

// LLMOracle answers questions through a provider that is configured apart
// from the generation provider.
type LLMOracle struct {
	provider    llm.Provider
	maxTokens   int
	temperature float64
}

// NewLLMOracle returns an oracle backed by provider.
func NewLLMOracle(provider llm.Provider, maxTokens int, temperature float64) *LLMOracle {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &LLMOracle{provider: provider, maxTokens: maxTokens, temperature: temperature}
}

// Answer asks the provider to solve the question.
func (o *LLMOracle) Answer(ctx context.Context, q Question) (string, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeAnswerVerify)

	resp, err := o.provider.Generate(ctx, llm.Request{
		System:      oracleSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: oraclePrompt(q)}},
		Schema:      oracleSchema,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	})
	if err != nil {
		return "", err
	}

	var out struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", &llm.ErrInvalidResponse{Content: resp.Content, Err: err}
	}
	if strings.TrimSpace(out.Answer) == "" {
		return "", &llm.ErrInvalidResponse{Content: resp.Content, Err: fmt.Errorf("empty answer")}
	}
	return out.Answer, nil
}

func oraclePrompt(q Question) string {
	var b strings.Builder
	b.WriteString(q.Text)
	b.WriteString("\n\n")
	if v := describeVisual(q.Visual); v != "" {
		fmt.Fprintf(&b, "The question comes with this visual:\n%s\n\n", v)
	}
	for i, opt := range q.Options {
		fmt.Fprintf(&b, "%s) %s\n", generator.OptionLetter(i), opt)
	}
	return b.String()
}

// describeVisual renders a stored visual object as "kind: description".
// Unknown shapes are passed on verbatim.
func describeVisual(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var v struct {
		Kind        string `json:"kind"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &v); err != nil || v.Description == "" {
		return string(raw)
	}
	if v.Kind == "" || v.Kind == generator.VisualNone {
		return v.Description
	}
	return v.Kind + ": " + v.Description
}
