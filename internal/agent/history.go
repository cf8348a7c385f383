package agent

import "github.com/bookly/bookly-support/internal/llm"

// History is the provider-neutral conversation transcript for one
// session. The system prompt is never part of it; adapters receive the
// prompt separately on each call. Like Session, a History has a single
// writer (the connection's read loop) and needs no locking.
type History struct {
	messages []llm.Message
}

// NewHistory returns an empty transcript.
func NewHistory() *History {
	return &History{}
}

// Append adds a message to the end of the transcript.
func (h *History) Append(msg llm.Message) {
	h.messages = append(h.messages, msg)
}

// Len returns the number of messages.
func (h *History) Len() int {
	return len(h.messages)
}

// Snapshot returns a copy of the transcript for a provider call.
// Adapters and the turn loop may both touch messages afterwards, so
// callers get their own slice.
func (h *History) Snapshot() []llm.Message {
	out := make([]llm.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// TruncateTo drops messages from the end until at most n remain.
// Used to roll the transcript back to a known point before replaying
// a user message against the fallback provider.
func (h *History) TruncateTo(n int) {
	if n < 0 {
		n = 0
	}
	if len(h.messages) > n {
		h.messages = h.messages[:n]
	}
}

// Clear empties the transcript.
func (h *History) Clear() {
	h.messages = nil
}

// Trim drops the oldest messages until at most max remain. The cut is
// then advanced past any leading tool-result messages: a transcript
// must never open with a tool result whose originating assistant
// tool_calls message was trimmed away, or providers reject it.
func (h *History) Trim(max int) {
	if max <= 0 || len(h.messages) <= max {
		return
	}
	cut := len(h.messages) - max
	for cut < len(h.messages) && h.messages[cut].Role == llm.RoleTool {
		cut++
	}
	h.messages = h.messages[cut:]
}
