package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAIProvider(t *testing.T, strict bool, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		model:  "gpt-4o-mini",
		strict: strict,
	}
}

func openAICompletion(message map[string]any, finish string) map[string]any {
	message["role"] = "assistant"
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1234567890,
		"model":   "gpt-4o-mini-2024-07-18",
		"choices": []map[string]any{{"index": 0, "message": message, "finish_reason": finish}},
		"usage":   map[string]any{"prompt_tokens": 40, "completion_tokens": 25, "total_tokens": 65},
	}
}

func TestOpenAIProvider_StructuredCandidate(t *testing.T) {
	var sent map[string]any
	p := newTestOpenAIProvider(t, true, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		writeJSON(w, http.StatusOK, openAICompletion(map[string]any{"content": validCandidate}, "stop"))
	})

	resp, err := p.Generate(context.Background(), generationRequest())
	require.NoError(t, err)

	assert.JSONEq(t, validCandidate, string(resp.Content))
	assert.Equal(t, Usage{InputTokens: 40, OutputTokens: 25, TotalTokens: 65}, resp.Usage)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", resp.Model)
	assert.Equal(t, StopEnd, resp.StopReason)

	messages, ok := sent["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, messages[0].(map[string]any)["role"])

	schema := sentJSONSchema(t, sent)
	assert.Equal(t, "test-candidate", schema["name"])
	assert.Equal(t, true, schema["strict"])
}

// sentJSONSchema digs response_format.json_schema out of a decoded request.
func sentJSONSchema(t *testing.T, sent map[string]any) map[string]any {
	t.Helper()
	format, ok := sent["response_format"].(map[string]any)
	require.True(t, ok, "response_format missing")
	schema, ok := format["json_schema"].(map[string]any)
	require.True(t, ok, "json_schema missing")
	return schema
}

func TestOpenAIProvider_LengthStop(t *testing.T) {
	p := newTestOpenAIProvider(t, true, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, openAICompletion(map[string]any{"content": `{"question_text":`}, "length"))
	})

	_, err := p.Generate(context.Background(), generationRequest())
	var maxTok *ErrMaxTokensExceeded
	assert.ErrorAs(t, err, &maxTok)
}

func TestOpenAIProvider_Refusal(t *testing.T) {
	p := newTestOpenAIProvider(t, true, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, openAICompletion(map[string]any{"content": "", "refusal": "I can't help with that."}, "stop"))
	})

	_, err := p.Generate(context.Background(), generationRequest())
	var inv *ErrInvalidResponse
	require.ErrorAs(t, err, &inv)
	assert.Contains(t, err.Error(), "refused")
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	p := newTestOpenAIProvider(t, true, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "x", "object": "chat.completion", "choices": []any{}})
	})

	_, err := p.Generate(context.Background(), generationRequest())
	assert.True(t, IsMalformed(err))
}

func TestOpenAIProvider_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        any
		wantLimited bool
	}{
		{"api rate limit", http.StatusTooManyRequests, map[string]any{"error": map[string]any{"type": "tokens", "message": "Rate limit exceeded", "code": "rate_limit_exceeded"}}, true},
		{"api server error", http.StatusInternalServerError, map[string]any{"error": map[string]any{"type": "server_error", "message": "Internal server error"}}, false},
		{"gateway text body", http.StatusBadGateway, "upstream unavailable", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestOpenAIProvider(t, true, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := p.Generate(context.Background(), generationRequest())
			require.Error(t, err)

			var rl *ErrRateLimit
			var unavailable *ErrProviderUnavailable
			if tt.wantLimited {
				assert.ErrorAs(t, err, &rl)
			} else {
				assert.ErrorAs(t, err, &unavailable)
			}
		})
	}
}

func TestNewOpenAIProvider(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{Model: "gpt-4o"})
	assert.Error(t, err)

	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", Model: "gpt-4o", BaseURL: "https://proxy.example/v1"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", p.ModelID())
	assert.True(t, p.strict)
}
