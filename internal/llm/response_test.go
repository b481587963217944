package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCandidate = `{"question_text":"If 3x + 5 = 20, what is x?","options":["3","4","5","6"],"correct_answer":"C"}`

// writeJSON answers a fake provider request with status and body.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestStripFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", validCandidate, validCandidate},
		{"json fence", "```json\n" + validCandidate + "\n```", validCandidate},
		{"bare fence", "```\n" + validCandidate + "\n```\n", validCandidate},
		{"padded", "  \n" + validCandidate + "\n", validCandidate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFence(tt.in))
		})
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	h := http.Header{}
	assert.Zero(t, retryAfter(nil, now))
	assert.Zero(t, retryAfter(h, now))

	h.Set("Retry-After", "12")
	assert.Equal(t, 12*time.Second, retryAfter(h, now))

	h.Set("Retry-After", now.Add(90*time.Second).Format(http.TimeFormat))
	assert.Equal(t, 90*time.Second, retryAfter(h, now))

	h.Set("Retry-After", now.Add(-time.Minute).Format(http.TimeFormat))
	assert.Zero(t, retryAfter(h, now))

	h.Set("Retry-After", "soon")
	assert.Zero(t, retryAfter(h, now))
}

func TestStatusError(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "3")

	var rl *ErrRateLimit
	require.ErrorAs(t, statusError(http.StatusTooManyRequests, h, errors.New("slow down")), &rl)
	assert.Equal(t, 3*time.Second, rl.RetryAfter)

	var unavailable *ErrProviderUnavailable
	assert.ErrorAs(t, statusError(http.StatusBadGateway, nil, errors.New("bad gateway")), &unavailable)
	assert.ErrorAs(t, statusError(http.StatusBadRequest, nil, errors.New("bad request")), &unavailable)
}

func TestFinishResponse(t *testing.T) {
	schema := candidateTestSchema()
	usage := Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30}

	t.Run("raw text without schema", func(t *testing.T) {
		resp, err := finishResponse(Request{}, "B", usage, "m", StopEnd)
		require.NoError(t, err)
		assert.Equal(t, "B", string(resp.Content))
		assert.Equal(t, usage, resp.Usage)
	})

	t.Run("fenced structured output", func(t *testing.T) {
		resp, err := finishResponse(Request{Schema: schema}, "```json\n"+validCandidate+"\n```", usage, "m", StopEnd)
		require.NoError(t, err)
		assert.JSONEq(t, validCandidate, string(resp.Content))
		assert.Equal(t, StopEnd, resp.StopReason)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := finishResponse(Request{Schema: schema}, `{"question_text":"If`, usage, "m", StopMaxTokens)
		var maxTok *ErrMaxTokensExceeded
		require.ErrorAs(t, err, &maxTok)
		assert.True(t, IsMalformed(err))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := finishResponse(Request{Schema: schema}, "  ", usage, "m", StopEnd)
		var inv *ErrInvalidResponse
		assert.ErrorAs(t, err, &inv)
	})

	t.Run("schema violation", func(t *testing.T) {
		_, err := finishResponse(Request{Schema: schema}, `{"question_text":"x","options":["a"],"correct_answer":"Z"}`, usage, "m", StopEnd)
		assert.True(t, IsMalformed(err))
	})
}

// blockingProvider waits until its context ends.
type blockingProvider struct{}

func (blockingProvider) Generate(ctx context.Context, _ Request) (*Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingProvider) ModelID() string { return "blocking" }

func TestTimeoutProvider(t *testing.T) {
	t.Run("zero disables", func(t *testing.T) {
		p := blockingProvider{}
		assert.Equal(t, Provider(p), WithTimeout(p, 0))
	})

	t.Run("expired call is transient", func(t *testing.T) {
		p := WithTimeout(blockingProvider{}, 10*time.Millisecond)
		_, err := p.Generate(context.Background(), Request{})

		var unavailable *ErrProviderUnavailable
		require.ErrorAs(t, err, &unavailable)
		assert.False(t, IsCanceled(err))
		assert.Equal(t, "blocking", p.ModelID())
	})

	t.Run("caller cancellation passes through", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := WithTimeout(blockingProvider{}, time.Minute)
		_, err := p.Generate(ctx, Request{})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("fast call untouched", func(t *testing.T) {
		mock := NewMockProvider(MockResponse{Content: json.RawMessage(validCandidate)})
		p := WithTimeout(mock, time.Minute)
		resp, err := p.Generate(context.Background(), Request{})
		require.NoError(t, err)
		assert.JSONEq(t, validCandidate, string(resp.Content))
	})
}
