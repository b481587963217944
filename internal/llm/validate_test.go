package llm

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidateTestSchema() *Schema {
	return &Schema{
		Name:        "test-candidate",
		Description: "A candidate question",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question_text":  map[string]any{"type": "string"},
				"options":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "minItems": 4},
				"correct_answer": map[string]any{"type": "string", "enum": []any{"A", "B", "C", "D", "E"}},
				"difficulty":     map[string]any{"type": "integer", "minimum": 1, "maximum": 3},
			},
			"required": []any{"question_text", "options", "correct_answer"},
		},
	}
}

func TestValidateContent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"question_text":"q","options":["1","2","3","4"],"correct_answer":"B","difficulty":2}`, false},
		{"optional omitted", `{"question_text":"q","options":["1","2","3","4"],"correct_answer":"A"}`, false},
		{"missing required", `{"question_text":"q","options":["1","2","3","4"]}`, true},
		{"wrong type", `{"question_text":7,"options":["1","2","3","4"],"correct_answer":"A"}`, true},
		{"enum violated", `{"question_text":"q","options":["1","2","3","4"],"correct_answer":"F"}`, true},
		{"too few options", `{"question_text":"q","options":["1","2"],"correct_answer":"A"}`, true},
		{"out of range", `{"question_text":"q","options":["1","2","3","4"],"correct_answer":"A","difficulty":4}`, true},
		{"malformed json", `{"question_text":`, true},
		{"empty", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContent(candidateTestSchema(), json.RawMessage(tt.raw))
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var inv *ErrInvalidResponse
			assert.True(t, errors.As(err, &inv), "expected ErrInvalidResponse, got %T", err)
			assert.True(t, IsMalformed(err))
		})
	}
}

func TestValidateContent_NilSchema(t *testing.T) {
	assert.NoError(t, ValidateContent(nil, json.RawMessage(`not json`)))
}
