package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bookly/bookly-support/internal/config"
	"github.com/bookly/bookly-support/internal/httpkit"
)

const openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIClient is an adapter for the OpenAI chat completions API.
type OpenAIClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient creates a new OpenAI adapter.
func NewOpenAIClient(apiKey, model string, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second

	return &OpenAIClient{
		apiKey: apiKey,
		model:  model,
		logger: logger.With("provider", "openai"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(0),
			httpkit.WithTransport(t),
		),
	}
}

// Name implements Client.
func (c *OpenAIClient) Name() string { return "openai" }

// OpenAI request/response wire types.

type openaiRequest struct {
	Model         string           `json:"model"`
	Messages      []openaiMessage  `json:"messages"`
	Tools         []map[string]any `json:"tools,omitempty"`
	Stream        bool             `json:"stream"`
	StreamOptions *openaiStreamOpt `json:"stream_options,omitempty"`
}

type openaiStreamOpt struct {
	IncludeUsage bool `json:"include_usage"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    *string          `json:"content"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiToolCall struct {
	Index    *int   `json:"index,omitempty"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

type openaiStreamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content   string           `json:"content"`
			ToolCalls []openaiToolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// ChatStream implements Client against the streaming chat completions API.
func (c *OpenAIClient) ChatStream(ctx context.Context, messages []Message, tools []map[string]any, callback StreamCallback) (*ChatResponse, error) {
	req := openaiRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
		Tools:    tools,
		Stream:   true,
		StreamOptions: &openaiStreamOpt{
			IncludeUsage: true,
		},
	}

	c.logger.Debug("preparing request",
		"model", c.model,
		"messages", len(req.Messages),
		"tools", len(tools),
	)

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Log(ctx, config.LevelTrace, "request payload", "json", string(jsonData))

	url := c.baseURL
	if url == "" {
		url = openaiAPIURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError("openai", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return nil, statusError("openai", resp.StatusCode, errBody)
	}

	result, err := c.readStream(ctx, resp.Body, callback)
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

// readStream consumes the SSE body, accumulating text and tool-call
// fragments. OpenAI streams tool calls as deltas addressed by index:
// the first fragment carries id and name, later fragments append to
// the JSON arguments string.
func (c *OpenAIClient) readStream(ctx context.Context, body io.Reader, callback StreamCallback) (*ChatResponse, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	type pendingCall struct {
		id   string
		name string
		args strings.Builder
	}

	var (
		content strings.Builder
		pending []*pendingCall
		model   string
		inTok   int
		outTok  int
	)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		if data == "[DONE]" {
			break
		}

		var chunk openaiStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // skip malformed events
		}

		if chunk.Model != "" {
			model = chunk.Model
		}
		if chunk.Usage != nil {
			inTok = chunk.Usage.PromptTokens
			outTok = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != "" {
			content.WriteString(delta.Content)
			if callback != nil {
				callback(StreamEvent{Kind: KindToken, Token: delta.Content})
			}
		}

		for _, tc := range delta.ToolCalls {
			if tc.Index == nil {
				continue
			}
			for len(pending) <= *tc.Index {
				pending = append(pending, &pendingCall{})
			}
			cur := pending[*tc.Index]
			if tc.ID != "" {
				cur.id = tc.ID
			}
			if tc.Function.Name != "" {
				cur.name = tc.Function.Name
				if callback != nil {
					callback(StreamEvent{Kind: KindToolUse, ToolName: tc.Function.Name})
				}
			}
			if tc.Function.Arguments != "" {
				cur.args.WriteString(tc.Function.Arguments)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, transportError("openai", fmt.Errorf("read stream: %w", err))
	}

	var toolCalls []ToolCall
	for _, p := range pending {
		if p.id == "" {
			continue
		}
		var args map[string]any
		if p.args.Len() > 0 {
			if err := json.Unmarshal([]byte(p.args.String()), &args); err != nil {
				args = map[string]any{"_raw": p.args.String()}
			}
		}
		toolCalls = append(toolCalls, ToolCall{
			ID:        p.id,
			Name:      p.name,
			Arguments: args,
		})
	}

	resp := &ChatResponse{
		Provider: "openai",
		Model:    model,
		Message: Message{
			Role:      RoleAssistant,
			Content:   content.String(),
			ToolCalls: toolCalls,
		},
		InputTokens:  inTok,
		OutputTokens: outTok,
	}

	if callback != nil {
		callback(StreamEvent{Kind: KindDone, Response: resp})
	}

	c.logger.Debug("stream complete",
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"content_len", len(resp.Message.Content),
		"tool_calls", len(resp.Message.ToolCalls),
	)
	c.logger.Log(ctx, config.LevelTrace, "stream final content", "content", resp.Message.Content)

	return resp, nil
}

// toOpenAIMessages converts neutral messages to OpenAI format.
// Tool-call arguments are re-serialized to JSON strings, which is how
// this API carries them on both request and response.
func toOpenAIMessages(messages []Message) []openaiMessage {
	result := make([]openaiMessage, 0, len(messages))
	for _, msg := range messages {
		om := openaiMessage{Role: msg.Role}

		switch msg.Role {
		case RoleAssistant:
			if msg.Content != "" {
				content := msg.Content
				om.Content = &content
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Arguments
				if args == nil {
					args = map[string]any{}
				}
				argsJSON, err := json.Marshal(args)
				if err != nil {
					argsJSON = []byte("{}")
				}
				otc := openaiToolCall{ID: tc.ID, Type: "function"}
				otc.Function.Name = tc.Name
				otc.Function.Arguments = string(argsJSON)
				om.ToolCalls = append(om.ToolCalls, otc)
			}

		case RoleTool:
			content := msg.Content
			om.Content = &content
			om.ToolCallID = msg.ToolCallID

		default: // system, user
			content := msg.Content
			om.Content = &content
		}

		result = append(result, om)
	}
	return result
}
