package generator

// Config controls the behavior of the LLMGenerator.
type Config struct {
	// MaxTokens is the token budget for the response.
	MaxTokens int

	// Temperature controls output randomness (0.0-1.0).
	Temperature float64

	// MaxExclusions caps how many exclusion entries go into the prompt.
	MaxExclusions int

	// MaxPriorTexts caps how many rejected drafts go into the prompt.
	MaxPriorTexts int
}

// DefaultConfig returns the recommended defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:     2048,
		Temperature:   0.7,
		MaxExclusions: 30,
		MaxPriorTexts: 5,
	}
}
