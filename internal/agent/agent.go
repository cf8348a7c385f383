// Package agent implements the conversation orchestrator: the turn
// loop that drives one user message through provider calls and tool
// executions until the model produces a final answer.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bookly/bookly-support/internal/analytics"
	"github.com/bookly/bookly-support/internal/events"
	"github.com/bookly/bookly-support/internal/llm"
	"github.com/bookly/bookly-support/internal/session"
	"github.com/bookly/bookly-support/internal/store"
	"github.com/bookly/bookly-support/internal/tools"
)

// User-facing error messages. These are spoken by the assistant, so
// they stay apologetic rather than technical.
const (
	msgProviderTrouble = "I apologize, but I'm having trouble processing your request. Please try again in a moment."
	msgBothUnavailable = "I apologize, but both AI providers are currently unavailable. Please try again later."
	msgNoProvider      = "No AI provider configured. Please check API keys."
)

// Chunk types emitted to the transport during a turn.
const (
	ChunkContent    = "content"
	ChunkToolUse    = "tool_use"
	ChunkToolResult = "tool_result"
	ChunkError      = "error"
)

// Chunk is one streamed unit of output from the turn loop. Content
// chunks carry incremental text; tool chunks carry the tool name and,
// for results, the payload; error chunks are terminal.
type Chunk struct {
	Type     string
	Content  string
	ToolName string
	Payload  map[string]any
}

// EmitFunc receives chunks in order. It is called from the turn loop's
// goroutine only.
type EmitFunc func(Chunk)

// FallbackPolicy is the set of provider error classes that trigger a
// switch to the fallback provider.
type FallbackPolicy map[llm.ErrorClass]bool

// NewFallbackPolicy builds a policy from config strings. An empty list
// means every class triggers fallback.
func NewFallbackPolicy(classes []string) (FallbackPolicy, error) {
	p := make(FallbackPolicy)
	if len(classes) == 0 {
		for _, c := range llm.AllErrorClasses() {
			p[c] = true
		}
		return p, nil
	}
	for _, s := range classes {
		c, err := llm.ParseErrorClass(s)
		if err != nil {
			return nil, err
		}
		p[c] = true
	}
	return p, nil
}

// Triggers reports whether err should cause a provider switch.
func (p FallbackPolicy) Triggers(err error) bool {
	var pe *llm.ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	return p[pe.Class]
}

// Config assembles an Agent's collaborators and limits.
type Config struct {
	// Primary and Secondary are the provider adapters. Either may be
	// nil when its API key is not configured.
	Primary   llm.Client
	Secondary llm.Client

	Registry  *tools.Registry
	Analytics *analytics.Collector
	Bus       *events.Bus
	Logger    *slog.Logger

	// MaxTurns caps provider calls per user message.
	MaxTurns int
	// MaxHistory caps the stored transcript length.
	MaxHistory int

	Fallback FallbackPolicy
}

// Agent drives conversations. It is stateless across sessions; all
// per-conversation state lives in Session and History.
type Agent struct {
	primary   llm.Client
	secondary llm.Client
	registry  *tools.Registry
	analytics *analytics.Collector
	bus       *events.Bus
	logger    *slog.Logger

	maxTurns   int
	maxHistory int
	fallback   FallbackPolicy
}

// New creates an Agent from cfg, applying limit defaults.
func New(cfg Config) *Agent {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = 20
	}
	fallback := cfg.Fallback
	if fallback == nil {
		fallback, _ = NewFallbackPolicy(nil)
	}
	return &Agent{
		primary:    cfg.Primary,
		secondary:  cfg.Secondary,
		registry:   cfg.Registry,
		analytics:  cfg.Analytics,
		bus:        cfg.Bus,
		logger:     logger.With("component", "agent"),
		maxTurns:   maxTurns,
		maxHistory: maxHistory,
		fallback:   fallback,
	}
}

// activeClient resolves the session's provider binding to an adapter.
func (a *Agent) activeClient(sess *session.Session) llm.Client {
	if sess.ActiveProvider == session.ProviderFallback {
		return a.secondary
	}
	return a.primary
}

// HandleMessage runs one user message to completion. Exactly one
// terminal outcome is produced: either the model's final text has been
// streamed as content chunks, or a single error chunk was emitted.
// The returned error is non-nil only when ctx was cancelled mid-turn.
func (a *Agent) HandleMessage(ctx context.Context, sess *session.Session, history *History, backend *store.Store, text string, emit EmitFunc) error {
	start := time.Now()
	sess.ObserveUserMessage(text)
	sess.TurnCount++

	a.analytics.TrackMessage(sess.ID, text)
	a.bus.Publish(events.Event{
		Source: events.SourceAgent,
		Kind:   events.KindMessageStart,
		Data:   map[string]any{"session_id": sess.ID, "turn": sess.TurnCount},
	})

	base := history.Len()
	history.Append(llm.Message{Role: llm.RoleUser, Content: text})

	client := a.activeClient(sess)
	if client == nil && sess.ActiveProvider == session.ProviderPrimary && a.secondary != nil {
		// Primary never configured; bind straight to the fallback.
		sess.ActiveProvider = session.ProviderFallback
		client = a.secondary
	}
	if client == nil {
		history.TruncateTo(base)
		emit(Chunk{Type: ChunkError, Content: msgNoProvider})
		return nil
	}

	err := a.runTurns(ctx, client, sess, history, backend, emit)
	if err == nil {
		history.Trim(a.maxHistory)
		a.bus.Publish(events.Event{
			Source: events.SourceAgent,
			Kind:   events.KindMessageComplete,
			Data: map[string]any{
				"session_id":  sess.ID,
				"provider":    sess.ActiveProvider,
				"duration_ms": time.Since(start).Milliseconds(),
			},
		})
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// One-shot fallback. Roll the transcript back to before this user
	// message, replay it against the secondary, and bind the session to
	// it for the rest of the conversation.
	canFall := sess.ActiveProvider == session.ProviderPrimary &&
		a.secondary != nil && a.fallback.Triggers(err)
	if !canFall {
		a.logger.Error("turn failed", "session_id", sess.ID,
			"provider", sess.ActiveProvider, "error", err)
		history.TruncateTo(base)
		emit(Chunk{Type: ChunkError, Content: msgProviderTrouble})
		return nil
	}

	a.logger.Warn("switching to fallback provider",
		"session_id", sess.ID, "error", err)
	a.bus.Publish(events.Event{
		Source: events.SourceAgent,
		Kind:   events.KindFallback,
		Data: map[string]any{
			"session_id": sess.ID,
			"from":       a.primary.Name(),
			"to":         a.secondary.Name(),
			"reason":     err.Error(),
		},
	})
	a.analytics.TrackEvent("provider_fallback", sess.ID, sess.CustomerEmail, map[string]any{
		"from": a.primary.Name(), "to": a.secondary.Name(), "reason": err.Error(),
	})

	history.TruncateTo(base)
	history.Append(llm.Message{Role: llm.RoleUser, Content: text})
	sess.ActiveProvider = session.ProviderFallback

	err = a.runTurns(ctx, a.secondary, sess, history, backend, emit)
	if err == nil {
		history.Trim(a.maxHistory)
		a.bus.Publish(events.Event{
			Source: events.SourceAgent,
			Kind:   events.KindMessageComplete,
			Data: map[string]any{
				"session_id":  sess.ID,
				"provider":    sess.ActiveProvider,
				"duration_ms": time.Since(start).Milliseconds(),
			},
		})
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	a.logger.Error("fallback provider also failed",
		"session_id", sess.ID, "error", err)
	history.TruncateTo(base)
	emit(Chunk{Type: ChunkError, Content: msgBothUnavailable})
	return nil
}

// runTurns is the inner loop: call the provider, execute any requested
// tools, feed results back, repeat until the model answers in plain
// text or the turn cap is reached.
func (a *Agent) runTurns(ctx context.Context, client llm.Client, sess *session.Session, history *History, backend *store.Store, emit EmitFunc) error {
	toolDefs := a.registry.OpenAITools()

	for iteration := 1; iteration <= a.maxTurns; iteration++ {
		a.bus.Publish(events.Event{
			Source: events.SourceProvider,
			Kind:   events.KindLLMCall,
			Data: map[string]any{
				"session_id": sess.ID,
				"provider":   client.Name(),
				"iteration":  iteration,
			},
		})

		// The system prompt is rebuilt each call so mid-turn context
		// changes (an order id surfaced by a tool, say) are visible.
		messages := append(
			[]llm.Message{{Role: llm.RoleSystem, Content: SystemPrompt(sess)}},
			history.Snapshot()...)

		callStart := time.Now()
		resp, err := client.ChatStream(ctx, messages, toolDefs, func(ev llm.StreamEvent) {
			switch ev.Kind {
			case llm.KindToken:
				emit(Chunk{Type: ChunkContent, Content: ev.Token})
			case llm.KindToolUse:
				emit(Chunk{Type: ChunkToolUse, ToolName: ev.ToolName})
			}
		})
		if err != nil {
			a.analytics.TrackSpan("llm_call", map[string]any{
				"session_id":  sess.ID,
				"provider":    client.Name(),
				"iteration":   iteration,
				"duration_ms": time.Since(callStart).Milliseconds(),
				"error":       err.Error(),
			}, "error")
			return err
		}

		history.Append(resp.Message)
		a.analytics.TrackSpan("llm_call", map[string]any{
			"session_id":    sess.ID,
			"provider":      resp.Provider,
			"model":         resp.Model,
			"iteration":     iteration,
			"input_tokens":  resp.InputTokens,
			"output_tokens": resp.OutputTokens,
			"tool_calls":    len(resp.Message.ToolCalls),
			"duration_ms":   resp.Duration.Milliseconds(),
		}, "ok")
		a.bus.Publish(events.Event{
			Source: events.SourceProvider,
			Kind:   events.KindLLMResponse,
			Data: map[string]any{
				"session_id":  sess.ID,
				"provider":    resp.Provider,
				"tokens_in":   resp.InputTokens,
				"tokens_out":  resp.OutputTokens,
				"tool_calls":  len(resp.Message.ToolCalls),
				"duration_ms": resp.Duration.Milliseconds(),
			},
		})

		if len(resp.Message.ToolCalls) == 0 {
			return nil
		}

		for _, call := range resp.Message.ToolCalls {
			if err := ctx.Err(); err != nil {
				return err
			}
			a.executeTool(ctx, sess, history, backend, call, emit)
		}
	}

	// Turn budget spent. Not a failure: everything streamed and every
	// tool result so far is the turn's outcome, and the transcript
	// keeps the partial progress for the next user message.
	a.logger.Warn("turn budget exhausted", "session_id", sess.ID,
		"provider", client.Name(), "max_turns", a.maxTurns)
	return nil
}

// executeTool runs one tool call and appends its result to the
// transcript. Tool failures are payloads, not errors; the model sees
// them and decides what to tell the customer.
func (a *Agent) executeTool(ctx context.Context, sess *session.Session, history *History, backend *store.Store, call llm.ToolCall, emit EmitFunc) {
	args := sess.Enrich(call.Name, call.Arguments)

	a.bus.Publish(events.Event{
		Source: events.SourceTools,
		Kind:   events.KindToolCall,
		Data:   map[string]any{"session_id": sess.ID, "tool": call.Name},
	})

	start := time.Now()
	payload := a.registry.Execute(ctx, backend, call.Name, args)
	_, failed := payload["error"]

	status := "ok"
	if failed {
		status = "error"
	}
	a.analytics.TrackSpan("tool_call", map[string]any{
		"session_id":  sess.ID,
		"tool":        call.Name,
		"duration_ms": time.Since(start).Milliseconds(),
	}, status)

	sess.ToolsUsed = append(sess.ToolsUsed, call.Name)
	a.analytics.TrackToolUse(sess.ID, call.Name, !failed)
	if topic := analytics.TopicForTool(call.Name); topic != "" {
		a.analytics.TrackEvent("topic_detected", sess.ID, sess.CustomerEmail,
			map[string]any{"topic": topic, "tool": call.Name})
	}
	a.bus.Publish(events.Event{
		Source: events.SourceTools,
		Kind:   events.KindToolDone,
		Data: map[string]any{
			"session_id":  sess.ID,
			"tool":        call.Name,
			"ok":          !failed,
			"duration_ms": time.Since(start).Milliseconds(),
		},
	})

	content, err := json.Marshal(payload)
	if err != nil {
		content = []byte(fmt.Sprintf(`{"error":"result not serializable: %v"}`, err))
	}
	history.Append(llm.Message{
		Role:       llm.RoleTool,
		Content:    string(content),
		ToolCallID: call.ID,
	})
	emit(Chunk{Type: ChunkToolResult, ToolName: call.Name, Payload: payload})
}
