package generator

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/quotagen/internal/llm"
)

// LLMGenerator implements Generator using the llm provider.
type LLMGenerator struct {
	provider llm.Provider
	config   Config
}

// New creates a new LLMGenerator with the given provider and config.
func New(provider llm.Provider, cfg Config) *LLMGenerator {
	return &LLMGenerator{provider: provider, config: cfg}
}

// Generate produces one shape-checked candidate for the input's cell.
func (g *LLMGenerator) Generate(ctx context.Context, input Input) (*Candidate, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeQuestionGen)

	userMsg, err := buildUserMessage(input, g.config)
	if err != nil {
		return nil, malformed("render prompt", err)
	}

	req := llm.Request{
		System: systemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: userMsg},
		},
		Schema:      CandidateSchema,
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	}

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		return nil, classify(err)
	}

	if len(strings.TrimSpace(string(resp.Content))) == 0 {
		return nil, malformed("empty response", nil)
	}

	var raw candidateOutput
	if err := json.Unmarshal(resp.Content, &raw); err != nil {
		return nil, malformed("parse response", err)
	}

	if problem := checkShape(&raw, input.SubSkill); problem != "" {
		zap.L().Debug("Candidate failed shape check",
			zap.String("cell", input.Cell.String()),
			zap.Int("attempt", input.Attempt),
			zap.String("problem", problem))
		return nil, malformed(problem, nil)
	}

	c := &Candidate{
		QuestionText:  strings.TrimSpace(raw.QuestionText),
		Options:       trimAll(raw.Options),
		CorrectAnswer: strings.TrimSpace(raw.CorrectAnswer),
		Solution:      strings.TrimSpace(raw.SolutionText),
		Attempt:       input.Attempt,
		Cell:          input.Cell,
		Model:         resp.Model,
		Usage:         resp.Usage,
	}

	if kind := strings.ToLower(strings.TrimSpace(raw.Visual.Kind)); kind != "" && kind != VisualNone {
		raw.Visual.Kind = kind
		visual, err := json.Marshal(raw.Visual)
		if err != nil {
			return nil, malformed("encode visual", err)
		}
		c.Visual = visual
	}

	return c, nil
}

func trimAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
