// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (OpenAI, Anthropic, Gemini,
// a local Ollama instance, ...) and exposes a single blocking completion call
// that the opportunity analyzer uses to classify transcript text. Providers
// that can enforce a JSON schema natively do so when the request carries a
// ResponseFormat; the rest receive the schema as an instruction and callers
// validate the output themselves.
//
// Implementations must be safe for concurrent use and must return promptly
// when the supplied context is cancelled.
package llm

import (
	"context"

	"github.com/MrWong99/gaia/pkg/types"
)

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// JSONSchema describes a structured-output contract for a completion.
type JSONSchema struct {
	// Name identifies the schema to the backend. Must match ^[a-zA-Z0-9_-]+$.
	Name string

	// Description is an optional hint passed alongside the schema.
	Description string

	// Schema is the JSON Schema document the response must satisfy.
	Schema map[string]any
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is an optional instruction injected before Messages.
	SystemPrompt string

	// Messages is the ordered conversation. The last message drives the reply.
	Messages []types.Message

	// Temperature controls output randomness in [0.0, 2.0]. Zero leaves the
	// provider default in place.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int

	// ResponseFormat, when set, asks the backend to return JSON conforming to
	// the schema.
	ResponseFormat *JSONSchema
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the reply. For structured requests this is
	// the raw JSON document.
	Content string

	// FinishReason is the backend's stop reason ("stop", "length", ...).
	FinishReason string

	Usage Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata about the underlying model.
	Capabilities() types.ModelCapabilities
}
