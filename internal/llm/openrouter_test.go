package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenRouterProvider(t *testing.T) {
	_, err := NewOpenRouterProvider(OpenRouterConfig{Model: "google/gemini-2.0-flash-exp"})
	assert.Error(t, err)

	p, err := NewOpenRouterProvider(OpenRouterConfig{APIKey: "sk-or-test", Model: "anthropic/claude-3-haiku"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-3-haiku", p.ModelID())
	assert.False(t, p.strict)
}

func TestOpenRouterProvider_NonStrictSchema(t *testing.T) {
	var sent map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		writeJSON(w, http.StatusOK, openAICompletion(map[string]any{"content": validCandidate}, "stop"))
	}))
	t.Cleanup(server.Close)

	p, err := NewOpenRouterProvider(OpenRouterConfig{
		APIKey:  "sk-or-test",
		Model:   "meta-llama/llama-3-8b",
		BaseURL: server.URL + "/v1",
	})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), generationRequest())
	require.NoError(t, err)
	assert.JSONEq(t, validCandidate, string(resp.Content))

	strict, _ := sentJSONSchema(t, sent)["strict"].(bool)
	assert.False(t, strict)
	assert.Equal(t, "meta-llama/llama-3-8b", sent["model"])
}
