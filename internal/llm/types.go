// Package llm provides LLM provider adapters behind a uniform
// streaming interface. Provider wire formats (Anthropic SSE, OpenAI
// chat completions) are confined to their adapter files; everything
// above this package works with the neutral types defined here.
package llm

import "time"

// Message roles used throughout the conversation history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a chat message in provider-neutral form.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on tool-result messages
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	// ID is the provider-assigned call id, required for result correlation.
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ChatResponse is the unified final response from any provider.
// Wire format conversion happens at provider boundaries.
type ChatResponse struct {
	Provider string
	Model    string
	Message  Message

	// Token usage (provider-neutral, zero when unreported)
	InputTokens  int
	OutputTokens int

	// Duration of the underlying API call.
	Duration time.Duration
}

// StreamEventKind identifies the type of stream event.
type StreamEventKind int

const (
	// KindToken is an incremental text token from the model.
	KindToken StreamEventKind = iota

	// KindToolUse fires when the model begins a tool invocation.
	KindToolUse

	// KindDone signals the stream is complete. Response carries the
	// final assistant message and usage.
	KindDone
)

// StreamEvent represents a single event in a streaming response.
// Consumers switch on Kind to determine what data is available.
type StreamEvent struct {
	Kind StreamEventKind

	// Token is set for KindToken events.
	Token string

	// ToolName is set for KindToolUse events.
	ToolName string

	// Response is set for KindDone events.
	Response *ChatResponse
}

// StreamCallback receives streaming events in emission order.
type StreamCallback func(event StreamEvent)
