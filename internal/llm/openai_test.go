package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewOpenAIClient("test-key", "gpt-test", nil)
	c.baseURL = srv.URL
	return c
}

func TestOpenAIStreamText(t *testing.T) {
	c := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"include_usage":true`) {
			t.Error("request missing stream_options.include_usage")
		}
		sseResponse(w, []string{
			`{"model":"gpt-test","choices":[{"delta":{"content":"Hi"}}]}`,
			`{"model":"gpt-test","choices":[{"delta":{"content":" there"}}]}`,
			`{"model":"gpt-test","choices":[{"delta":{},"finish_reason":"stop"}]}`,
			`{"model":"gpt-test","choices":[],"usage":{"prompt_tokens":9,"completion_tokens":4}}`,
			`[DONE]`,
		})
	})

	var tokens []string
	resp, err := c.ChatStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}}, nil,
		func(ev StreamEvent) {
			if ev.Kind == KindToken {
				tokens = append(tokens, ev.Token)
			}
		})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}

	if resp.Message.Content != "Hi there" {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.Provider != "openai" {
		t.Errorf("provider = %q", resp.Provider)
	}
	if resp.InputTokens != 9 || resp.OutputTokens != 4 {
		t.Errorf("tokens = %d/%d", resp.InputTokens, resp.OutputTokens)
	}
	if strings.Join(tokens, "") != "Hi there" {
		t.Errorf("streamed tokens = %v", tokens)
	}
}

func TestOpenAIStreamToolCallAccumulation(t *testing.T) {
	c := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		sseResponse(w, []string{
			`{"model":"gpt-test","choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_order_status"}}]}}]}`,
			`{"model":"gpt-test","choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"order_id\":"}}]}}]}`,
			`{"model":"gpt-test","choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"ORD-2024-00002\"}"}}]}}]}`,
			`{"model":"gpt-test","choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
			`[DONE]`,
		})
	})

	var toolNames []string
	resp, err := c.ChatStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "track my order"}}, nil,
		func(ev StreamEvent) {
			if ev.Kind == KindToolUse {
				toolNames = append(toolNames, ev.ToolName)
			}
		})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}

	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(resp.Message.ToolCalls))
	}
	call := resp.Message.ToolCalls[0]
	if call.ID != "call_1" || call.Name != "get_order_status" {
		t.Errorf("call = %+v", call)
	}
	if call.Arguments["order_id"] != "ORD-2024-00002" {
		t.Errorf("arguments = %v", call.Arguments)
	}
	if len(toolNames) != 1 {
		t.Errorf("tool use events = %v", toolNames)
	}
}

func TestOpenAIStreamParallelToolCalls(t *testing.T) {
	c := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		sseResponse(w, []string{
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_a","function":{"name":"search_books","arguments":"{}"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_b","function":{"name":"get_policy_info","arguments":"{\"policy_type\":\"return\"}"}}]}}]}`,
			`[DONE]`,
		})
	})

	resp, err := c.ChatStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "x"}}, nil, nil)
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	if len(resp.Message.ToolCalls) != 2 {
		t.Fatalf("tool calls = %d, want 2", len(resp.Message.ToolCalls))
	}
	if resp.Message.ToolCalls[0].Name != "search_books" ||
		resp.Message.ToolCalls[1].Name != "get_policy_info" {
		t.Errorf("calls = %+v", resp.Message.ToolCalls)
	}
}

func TestOpenAIErrorClassification(t *testing.T) {
	c := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(429)
		fmt.Fprint(w, `{"error":{"message":"rate limit exceeded"}}`)
	})

	_, err := c.ChatStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "x"}}, nil, nil)
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Class != ClassRateLimited || pe.Provider != "openai" {
		t.Errorf("error = %+v", pe)
	}
}

func TestToOpenAIMessages(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: "prompt"},
		{Role: RoleUser, Content: "question"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "call_1", Name: "search_orders", Arguments: map[string]any{"email": "a@b.com"}},
		}},
		{Role: RoleTool, ToolCallID: "call_1", Content: `{"orders":[]}`},
	}

	converted := toOpenAIMessages(msgs)
	if len(converted) != 4 {
		t.Fatalf("converted = %d messages", len(converted))
	}

	assistant := converted[2]
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("assistant tool calls = %d", len(assistant.ToolCalls))
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(assistant.ToolCalls[0].Function.Arguments), &args); err != nil {
		t.Fatalf("arguments not valid JSON: %v", err)
	}
	if args["email"] != "a@b.com" {
		t.Errorf("arguments = %v", args)
	}

	toolMsg := converted[3]
	if toolMsg.ToolCallID != "call_1" || toolMsg.Content == nil || *toolMsg.Content != `{"orders":[]}` {
		t.Errorf("tool message = %+v", toolMsg)
	}
}
