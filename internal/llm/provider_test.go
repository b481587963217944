package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProvider_ReturnsCannedResponses(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"a":1}`), Usage: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
		MockResponse{Content: json.RawMessage(`{"b":2}`)},
	)

	resp1, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "first"}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(resp1.Content))
	assert.Equal(t, 10, resp1.Usage.InputTokens)
	assert.Equal(t, "end", resp1.StopReason)

	resp2, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "second"}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":2}`, string(resp2.Content))
}

func TestMockProvider_EmptyQueueReturnsError(t *testing.T) {
	mock := NewMockProvider()
	_, err := mock.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	require.True(t, errors.As(err, &unavail), "expected ErrProviderUnavailable, got %T", err)
}

func TestMockProvider_RecordsCalls(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{}`)})

	_, _ = mock.Generate(context.Background(), Request{
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})

	require.Equal(t, 1, mock.CallCount())
	assert.Equal(t, "sys", mock.Calls[0].System)
}

func TestMockProvider_ResponderAfterQueue(t *testing.T) {
	mock := NewMockResponder(func(req Request) MockResponse {
		return MockResponse{Content: json.RawMessage(`"` + req.Messages[0].Content + `"`)}
	})
	mock.AddResponse(MockResponse{Err: &ErrRateLimit{}})

	_, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	var rl *ErrRateLimit
	require.True(t, errors.As(err, &rl))

	for range 3 {
		resp, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "echo"}}})
		require.NoError(t, err)
		assert.Equal(t, `"echo"`, string(resp.Content))
	}
	assert.Equal(t, 4, mock.CallCount())
}

func TestMockProvider_CancelledContext(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{}`)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mock.Generate(ctx, Request{})
	assert.True(t, IsCanceled(err))
	assert.Equal(t, 0, mock.CallCount())
}

func TestPurposeContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "unknown", PurposeFrom(ctx))

	ctx = WithPurpose(ctx, PurposeAnswerVerify)
	assert.Equal(t, "answer-verify", PurposeFrom(ctx))
}

func TestMeter_CountsCallsAndTokens(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{}`), Usage: Usage{InputTokens: 100, OutputTokens: 20}},
		MockResponse{Err: &ErrProviderUnavailable{}},
		MockResponse{Content: json.RawMessage(`{}`), Usage: Usage{InputTokens: 50, OutputTokens: 10}},
	)
	var m Meter
	p := WithMeter(mock, &m)

	for range 3 {
		_, _ = p.Generate(context.Background(), Request{})
	}

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.Calls)
	assert.Equal(t, int64(1), snap.Failures)
	assert.Equal(t, int64(150), snap.InputTokens)
	assert.Equal(t, int64(30), snap.OutputTokens)
}

func TestWrap_MeterSeesRetries(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrProviderUnavailable{}},
		MockResponse{Content: json.RawMessage(`{}`)},
	)
	cfg := DefaultConfig()
	cfg.Retry = retryConfig()
	cfg.RateLimit = RateLimitConfig{}
	var m Meter

	p := Wrap(mock, cfg, nil, &m)
	_, err := p.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.Snapshot().Calls)
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(RateLimitConfig{}))

	l := NewLimiter(RateLimitConfig{RequestsPerSecond: 5})
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())
}

func TestRateLimit_CancelledWait(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{}`)}, MockResponse{Content: json.RawMessage(`{}`)})
	p := WithRateLimit(mock, NewLimiter(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}))

	_, err := p.Generate(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Generate(ctx, Request{})
	require.Error(t, err)
	assert.Equal(t, 1, mock.CallCount())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"anthropic without key", Config{Provider: "anthropic"}, true},
		{"anthropic with key", Config{Provider: "anthropic", Anthropic: AnthropicConfig{APIKey: "sk-test"}}, false},
		{"openai with key", Config{Provider: "openai", OpenAI: OpenAIConfig{APIKey: "sk-test"}}, false},
		{"openrouter without key", Config{Provider: "openrouter"}, true},
		{"mock needs no key", Config{Provider: "mock"}, false},
		{"negative rate", Config{Provider: "mock", RateLimit: RateLimitConfig{RequestsPerSecond: -1}}, true},
		{"unknown provider", Config{Provider: "unknown"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "Validate() error = %v", err)
		})
	}
}

func TestDiscoverConfig(t *testing.T) {
	for _, k := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
	}

	_, ok := DiscoverConfig(DefaultConfig())
	assert.False(t, ok)

	t.Setenv("GEMINI_API_KEY", "g-key")
	cfg, ok := DiscoverConfig(DefaultConfig())
	require.True(t, ok)
	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, "g-key", cfg.Gemini.APIKey)
}

func TestEstimateCost(t *testing.T) {
	assert.InDelta(t, 0.15+0.6, EstimateCost("gpt-4o-mini", 1_000_000, 1_000_000), 1e-9)
	assert.Equal(t, float64(-1), EstimateCost("no-such-model", 10, 10))
}

func TestConfig_WithEnvKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg := Config{Provider: "openai"}.WithEnvKey()
	assert.Equal(t, "sk-env", cfg.OpenAI.APIKey)

	explicit := Config{Provider: "openai", OpenAI: OpenAIConfig{APIKey: "sk-file"}}.WithEnvKey()
	assert.Equal(t, "sk-file", explicit.OpenAI.APIKey)
}
