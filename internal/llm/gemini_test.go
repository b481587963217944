package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestGeminiModelMapping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"gemini-flash", "gemini-2.0-flash"},
		{"gemini-pro", "gemini-2.0-pro"},
		{"gemini-2.5-flash", "gemini-2.5-flash"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, resolveModel(tt.input, geminiModels), tt.input)
	}
}

func TestBuildGeminiSchema(t *testing.T) {
	def := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question_text":  map[string]any{"type": "string"},
			"correct_answer": map[string]any{"type": "string", "enum": []any{"A", "B", "C", "D", "E"}},
			"options": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 4,
				"maxItems": float64(5),
			},
			"requires_visual": map[string]any{"type": "boolean"},
		},
		"required": []any{"question_text", "options", "correct_answer"},
	}

	schema := buildGeminiSchema(def)

	assert.EqualValues(t, "OBJECT", schema.Type)
	require.Len(t, schema.Properties, 4)
	assert.EqualValues(t, "STRING", schema.Properties["question_text"].Type)
	assert.Len(t, schema.Properties["correct_answer"].Enum, 5)
	assert.EqualValues(t, "BOOLEAN", schema.Properties["requires_visual"].Type)

	opts := schema.Properties["options"]
	assert.EqualValues(t, "ARRAY", opts.Type)
	assert.EqualValues(t, "STRING", opts.Items.Type)
	require.NotNil(t, opts.MinItems)
	require.NotNil(t, opts.MaxItems)
	assert.Equal(t, int64(4), *opts.MinItems)
	assert.Equal(t, int64(5), *opts.MaxItems)
	assert.Len(t, schema.Required, 3)
}

func TestBuildGeminiContents(t *testing.T) {
	contents := buildGeminiContents([]Message{
		{Role: RoleUser, Content: "write a question"},
		{Role: RoleAssistant, Content: "{}"},
	})
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "write a question", contents[0].Parts[0].Text)
}

func TestGeminiStopAndBlock(t *testing.T) {
	maxed := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: "MAX_TOKENS"}},
	}
	assert.Equal(t, StopMaxTokens, mapGeminiStopReason(maxed))
	assert.Equal(t, StopEnd, mapGeminiStopReason(&genai.GenerateContentResponse{}))

	_, blocked := geminiBlocked(maxed)
	assert.False(t, blocked)

	reason, blocked := geminiBlocked(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: "SAFETY"}},
	})
	assert.True(t, blocked)
	assert.Equal(t, "SAFETY", reason)

	reason, blocked = geminiBlocked(&genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: "OTHER"},
	})
	assert.True(t, blocked)
	assert.Equal(t, "OTHER", reason)
}

func TestMapGeminiError(t *testing.T) {
	var rl *ErrRateLimit
	assert.ErrorAs(t, mapGeminiError(&genai.APIError{Code: 429, Message: "quota"}), &rl)

	var unavailable *ErrProviderUnavailable
	assert.ErrorAs(t, mapGeminiError(&genai.APIError{Code: 503}), &unavailable)
	assert.ErrorAs(t, mapGeminiError(errors.New("dial tcp: refused")), &unavailable)
}
