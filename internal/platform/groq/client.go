package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docuchat/backend/internal/platform/ctxutil"
	"github.com/docuchat/backend/internal/platform/logger"
)

// Message is one turn of a chat-completions conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Client is the conversational generation oracle (Groq's
// OpenAI-compatible chat completions API).
type Client interface {
	// Complete runs one non-streaming turn; the returned message may
	// carry tool calls instead of content.
	Complete(ctx context.Context, messages []Message, tools []Tool) (Message, error)

	// CompleteJSON forces a JSON-object response and decodes it.
	CompleteJSON(ctx context.Context, system, user string) (map[string]any, error)

	// StreamChat streams assistant deltas in arrival order and returns
	// the full text. onDelta is never called with an empty delta.
	StreamChat(ctx context.Context, messages []Message, onDelta func(delta string) error) (string, error)
}

type client struct {
	log         *logger.Logger
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxRetries  int
	httpClient  *http.Client
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []Message      `json:"messages"`
	Temperature    float64        `json:"temperature"`
	Stream         bool           `json:"stream,omitempty"`
	Tools          []Tool         `json:"tools,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("GROQ_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing GROQ_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("GROQ_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("GROQ_MODEL"))
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}

	temperature := 0.0
	if v := strings.TrimSpace(os.Getenv("GROQ_TEMPERATURE")); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed >= 0 {
			temperature = parsed
		}
	}

	maxRetries := 2
	if v := strings.TrimSpace(os.Getenv("GROQ_MAX_RETRIES")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	timeoutSec := 120
	if v := strings.TrimSpace(os.Getenv("GROQ_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	return &client{
		log:         log.With("service", "GroqClient"),
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		maxRetries:  maxRetries,
		httpClient:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}, nil
}

func (c *client) Complete(ctx context.Context, messages []Message, tools []Tool) (Message, error) {
	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		Tools:       tools,
	}

	var resp chatResponse
	if err := c.doJSON(ctx, req, &resp); err != nil {
		return Message{}, err
	}
	if len(resp.Choices) == 0 {
		return Message{}, fmt.Errorf("groq completion returned no choices")
	}
	return resp.Choices[0].Message, nil
}

func (c *client) CompleteJSON(ctx context.Context, system, user string) (map[string]any, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    c.temperature,
		ResponseFormat: map[string]any{"type": "json_object"},
	}

	var resp chatResponse
	if err := c.doJSON(ctx, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("groq completion returned no choices")
	}

	var out map[string]any
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("groq structured output not valid JSON: %w", err)
	}
	return out, nil
}

func (c *client) StreamChat(ctx context.Context, messages []Message, onDelta func(delta string) error) (string, error) {
	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		Stream:      true,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return "", fmt.Errorf("groq encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, c.baseURL+"/v1/chat/completions", &buf)
	if err != nil {
		return "", fmt.Errorf("groq build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("groq stream request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return "", fmt.Errorf("groq stream status=%d body=%q", httpResp.StatusCode, string(raw))
	}

	var full strings.Builder
	err = readSSE(httpResp.Body, func(data string) error {
		if strings.TrimSpace(data) == "" || strings.TrimSpace(data) == "[DONE]" {
			return nil
		}
		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Non-JSON keepalive noise; skip.
			return nil
		}
		if chunk.Error != nil && strings.TrimSpace(chunk.Error.Message) != "" {
			return fmt.Errorf("groq stream error: %s", chunk.Error.Message)
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			full.WriteString(choice.Delta.Content)
			if onDelta != nil {
				if err := onDelta(choice.Delta.Content); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return full.String(), nil
}

func (c *client) doJSON(ctx context.Context, req chatRequest, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(req); err != nil {
			return fmt.Errorf("groq encode request: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, c.baseURL+"/v1/chat/completions", &buf)
		if err != nil {
			return fmt.Errorf("groq build request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")

		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("groq request: %w", err)
			continue
		}

		raw, readErr := io.ReadAll(io.LimitReader(httpResp.Body, 16<<20))
		_ = httpResp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("groq read response: %w", readErr)
			continue
		}

		if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
			lastErr = fmt.Errorf("groq status=%d body=%q", httpResp.StatusCode, truncate(raw))
			continue
		}
		if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
			return fmt.Errorf("groq status=%d body=%q", httpResp.StatusCode, truncate(raw))
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("groq decode response: %w", err)
		}
		return nil
	}
	return lastErr
}

func truncate(raw []byte) string {
	const max = 512
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
