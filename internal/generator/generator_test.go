package generator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/quotagen/internal/curriculum"
	"github.com/abhisek/quotagen/internal/diversity"
	"github.com/abhisek/quotagen/internal/llm"
)

func testInput() Input {
	return Input{
		Cell: curriculum.CellKey{
			Product:    "productx",
			TestMode:   "practice_1",
			Section:    "Mathematics",
			SubSkill:   "Algebra",
			Difficulty: curriculum.DifficultyStandard,
		},
		SubSkill: curriculum.SubSkill{
			Name:        "Algebra",
			Description: "Solve linear equations in one unknown",
			Examples:    []string{"If 3x + 4 = 19, what is x?"},
		},
		DifficultyBand: "Two or three steps",
		Category:       curriculum.CategoryQuantitative,
		Attempt:        1,
	}
}

func validCandidateJSON() json.RawMessage {
	return json.RawMessage(`{
		"question_text": "If 2x + 6 = 20, what is the value of x?",
		"options": ["5", "7", "8", "13"],
		"correct_answer": "B",
		"solution_text": "Subtract 6 from both sides to get 2x = 14, then divide by 2: x = 7.",
		"visual": {"kind": "none", "description": ""}
	}`)
}

func TestGenerate_Valid(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: validCandidateJSON()})
	gen := New(mock, DefaultConfig())

	c, err := gen.Generate(context.Background(), testInput())
	require.NoError(t, err)

	assert.Equal(t, "If 2x + 6 = 20, what is the value of x?", c.QuestionText)
	assert.Equal(t, []string{"5", "7", "8", "13"}, c.Options)
	assert.Equal(t, "B", c.CorrectAnswer)
	assert.Nil(t, c.Visual)
	assert.Equal(t, 1, c.Attempt)
	assert.Equal(t, "Algebra", c.Cell.SubSkill)

	idx, ok := c.CorrectIndex()
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestGenerate_RequestContents(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: validCandidateJSON()})
	gen := New(mock, DefaultConfig())

	set := diversity.NewSet(diversity.Kind{Category: curriculum.CategoryQuantitative})
	set.Add("A shop sells 12 apples for $5 each. What is the total cost?")

	in := testInput()
	in.Exclusions = set
	in.PriorTexts = []string{"If x + 1 = 2, what is x?"}
	in.Attempt = 2

	_, err := gen.Generate(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, mock.Calls, 1)

	req := mock.Calls[0]
	assert.Equal(t, CandidateSchema, req.Schema)
	require.Len(t, req.Messages, 1)

	msg := req.Messages[0].Content
	assert.Contains(t, msg, "Sub-skill: Algebra")
	assert.Contains(t, msg, "Solve linear equations in one unknown")
	assert.Contains(t, msg, "1. If 3x + 4 = 19, what is x?")
	assert.Contains(t, msg, "Difficulty: 2 (standard) - Two or three steps")
	assert.Contains(t, msg, "Visual required: no")
	assert.Contains(t, msg, "operands 12, 5")
	assert.Contains(t, msg, "If x + 1 = 2, what is x?")
}

func TestGenerate_VisualRequired(t *testing.T) {
	in := testInput()
	in.SubSkill.Visual = curriculum.Visual{Required: true, Kind: "diagram"}

	t.Run("missing", func(t *testing.T) {
		mock := llm.NewMockProvider(llm.MockResponse{Content: validCandidateJSON()})
		_, err := New(mock, DefaultConfig()).Generate(context.Background(), in)

		var gf *GenerationFailure
		require.ErrorAs(t, err, &gf)
		assert.Equal(t, ReasonMalformed, gf.Reason)
		assert.Contains(t, gf.Detail, "visual is required")
		assert.Contains(t, mock.Calls[0].Messages[0].Content, "Visual required: yes (diagram)")
	})

	t.Run("present", func(t *testing.T) {
		raw := json.RawMessage(`{
			"question_text": "The triangle shown has angles 50 and 60 degrees. What is the third angle?",
			"options": ["60", "70", "80", "90"],
			"correct_answer": "70",
			"solution_text": "Angles sum to 180, so 180 - 50 - 60 = 70.",
			"visual": {"kind": "Diagram", "description": "Triangle ABC with angle A = 50 and angle B = 60"}
		}`)
		mock := llm.NewMockProvider(llm.MockResponse{Content: raw})
		c, err := New(mock, DefaultConfig()).Generate(context.Background(), in)
		require.NoError(t, err)

		var v visualOutput
		require.NoError(t, json.Unmarshal(c.Visual, &v))
		assert.Equal(t, "diagram", v.Kind)
		assert.Contains(t, v.Description, "Triangle ABC")
	})
}

func TestGenerate_ShapeFailures(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		detail string
	}{
		{
			name:   "empty question",
			raw:    `{"question_text": " ", "options": ["a","b","c","d"], "correct_answer": "A", "solution_text": "s", "visual": {"kind": "none", "description": ""}}`,
			detail: "question_text is empty",
		},
		{
			name:   "empty solution",
			raw:    `{"question_text": "q", "options": ["a","b","c","d"], "correct_answer": "A", "solution_text": "", "visual": {"kind": "none", "description": ""}}`,
			detail: "solution_text is empty",
		},
		{
			name:   "three options",
			raw:    `{"question_text": "q", "options": ["a","b","c"], "correct_answer": "A", "solution_text": "s", "visual": {"kind": "none", "description": ""}}`,
			detail: "expected 4-5 options, got 3",
		},
		{
			name:   "duplicate options",
			raw:    `{"question_text": "q", "options": ["a","b","B","d"], "correct_answer": "A", "solution_text": "s", "visual": {"kind": "none", "description": ""}}`,
			detail: "option C duplicates another option",
		},
		{
			name:   "letter out of range",
			raw:    `{"question_text": "q", "options": ["a","b","c","d"], "correct_answer": "E", "solution_text": "s", "visual": {"kind": "none", "description": ""}}`,
			detail: "does not resolve",
		},
		{
			name:   "answer not an option",
			raw:    `{"question_text": "q", "options": ["10","20","30","40"], "correct_answer": "25", "solution_text": "s", "visual": {"kind": "none", "description": ""}}`,
			detail: "does not resolve",
		},
		{
			name:   "visual without description",
			raw:    `{"question_text": "q", "options": ["a","b","c","d"], "correct_answer": "A", "solution_text": "s", "visual": {"kind": "chart", "description": ""}}`,
			detail: "visual description is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(tt.raw)})
			_, err := New(mock, DefaultConfig()).Generate(context.Background(), testInput())

			var gf *GenerationFailure
			require.ErrorAs(t, err, &gf)
			assert.Equal(t, ReasonMalformed, gf.Reason)
			assert.Contains(t, gf.Detail, tt.detail)
		})
	}
}

func TestGenerate_UnparseableResponse(t *testing.T) {
	for _, raw := range []string{`not json`, ``} {
		mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(raw)})
		_, err := New(mock, DefaultConfig()).Generate(context.Background(), testInput())

		var gf *GenerationFailure
		require.ErrorAs(t, err, &gf)
		assert.Equal(t, ReasonMalformed, gf.Reason)
	}
}

func TestGenerate_ProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{"invalid response", &llm.ErrInvalidResponse{Err: errors.New("schema")}, ReasonMalformed},
		{"max tokens", &llm.ErrMaxTokensExceeded{}, ReasonMalformed},
		{"unavailable", &llm.ErrProviderUnavailable{Err: errors.New("503")}, ReasonUnavailable},
		{"rate limit", &llm.ErrRateLimit{Err: errors.New("429")}, ReasonUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := llm.NewMockProvider(llm.MockResponse{Err: tt.err})
			_, err := New(mock, DefaultConfig()).Generate(context.Background(), testInput())

			var gf *GenerationFailure
			require.ErrorAs(t, err, &gf)
			assert.Equal(t, tt.reason, gf.Reason)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestGenerate_SetsPurpose(t *testing.T) {
	var purpose string
	p := providerFunc(func(ctx context.Context, _ llm.Request) (*llm.Response, error) {
		purpose = llm.PurposeFrom(ctx)
		return &llm.Response{Content: validCandidateJSON()}, nil
	})

	_, err := New(p, DefaultConfig()).Generate(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, llm.PurposeQuestionGen, purpose)
}

func TestGenerate_PriorTextsCapped(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: validCandidateJSON()})
	cfg := DefaultConfig()
	cfg.MaxPriorTexts = 1

	in := testInput()
	in.PriorTexts = []string{"first draft", "second draft"}

	_, err := New(mock, cfg).Generate(context.Background(), in)
	require.NoError(t, err)

	msg := mock.Calls[0].Messages[0].Content
	assert.NotContains(t, msg, "first draft")
	assert.Contains(t, msg, "1. second draft")
}

func TestResolveAnswer(t *testing.T) {
	options := []string{"slow", "quick", "late", "early"}

	tests := []struct {
		answer string
		want   int
		ok     bool
	}{
		{"A", 0, true},
		{"b", 1, true},
		{"(C)", 2, true},
		{"D)", 3, true},
		{"D.", 3, true},
		{"early", 3, true},
		{" Quick ", 1, true},
		{"E", -1, false},
		{"fast", -1, false},
		{"", -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			got, ok := ResolveAnswer(options, tt.answer)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerationFailure_Error(t *testing.T) {
	err := &GenerationFailure{Reason: ReasonUnavailable, Err: errors.New("timeout")}
	assert.Equal(t, "generation failed (service_unavailable): timeout", err.Error())

	err = &GenerationFailure{Reason: ReasonMalformed, Detail: "question_text is empty"}
	assert.Equal(t, "generation failed (malformed_response): question_text is empty", err.Error())
}

type providerFunc func(ctx context.Context, req llm.Request) (*llm.Response, error)

func (f providerFunc) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return f(ctx, req)
}

func (f providerFunc) ModelID() string { return "func" }
