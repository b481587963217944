package llm

import (
	"context"
	"fmt"

	"github.com/abhisek/quotagen/internal/store"
)

// NewProvider creates a Provider from configuration, wrapped with the
// standard middleware chain:
//
//	caller → retry → rate limit → meter → timeout → logging → base
//
// eventRepo and meter may be nil.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, meter *Meter) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		base = NewMockProvider()
	default:
		return nil, fmt.Errorf("unknown provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	return Wrap(base, cfg, eventRepo, meter), nil
}

// Wrap applies the middleware chain to an already constructed provider.
func Wrap(base Provider, cfg Config, eventRepo store.EventRepo, meter *Meter) Provider {
	p := WithLogging(base, cfg.Provider, eventRepo)
	p = WithTimeout(p, cfg.Timeout)
	p = WithMeter(p, meter)
	p = WithRateLimit(p, NewLimiter(cfg.RateLimit))
	return WithRetry(p, cfg.Retry)
}
