package llm

import "context"

// Client is the interface every provider adapter implements.
type Client interface {
	// Name identifies the provider ("anthropic", "openai").
	Name() string

	// ChatStream sends the conversation to the provider and streams
	// events to callback (which may be nil for non-interactive calls).
	// The returned ChatResponse carries the complete assistant message
	// including any tool calls, regardless of how the provider streamed
	// them on the wire. Tools are supplied in the canonical OpenAI
	// function format; adapters convert as needed.
	//
	// Errors are returned as *ProviderError where the failure could be
	// classified; see errors.go.
	ChatStream(ctx context.Context, messages []Message, tools []map[string]any, callback StreamCallback) (*ChatResponse, error)
}
