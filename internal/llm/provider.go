package llm

import (
	"context"
	"encoding/json"
)

// Provider is the single seam between the pipeline and an external language
// model service. Both the content generator and the answer verifier talk to
// the service only through this interface.
type Provider interface {
	// Generate sends one request and returns the structured response.
	// When req.Schema is set the provider asks for schema-conforming JSON
	// and validates the reply before returning it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes one call to the external service.
type Request struct {
	// System is the system prompt.
	System string

	// Messages is the conversation. Generation and verification are both
	// single-turn, so this normally holds one user message.
	Messages []Message

	// Schema is the JSON Schema the response must conform to.
	// When nil, the response Content is raw text as json.RawMessage.
	Schema *Schema

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int

	// Temperature controls randomness. Range: 0.0 - 1.0.
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the service.
type Schema struct {
	// Name identifies this schema, kebab-case, e.g. "candidate-question".
	// It doubles as the cache key for compiled schemas.
	Name string

	// Description is sent to the service to guide generation.
	Description string

	// Definition is the JSON Schema definition as a map.
	Definition map[string]any
}

// Response holds the service's output.
type Response struct {
	// Content is the generated output; validated JSON when a Schema was set.
	Content json.RawMessage

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason is normalized to "end", "max_tokens" or "error".
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
