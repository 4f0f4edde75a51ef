package tavily

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

	"github.com/docuchat/backend/internal/domain"
	"github.com/docuchat/backend/internal/platform/ctxutil"
	"github.com/docuchat/backend/internal/platform/logger"
)

// Client is the web-search provider behind the fallback agent.
type Client interface {
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
	MaxResults() int
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	maxResults int
	httpClient *http.Client
}

type searchRequest struct {
	Query      string `json:"query"`
	Topic      string `json:"topic"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []domain.SearchResult `json:"results"`
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("TAVILY_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing TAVILY_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("TAVILY_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	maxResults := 5
	if v := strings.TrimSpace(os.Getenv("TAVILY_MAX_RESULTS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			maxResults = parsed
		}
	}

	timeoutSec := 30
	if v := strings.TrimSpace(os.Getenv("TAVILY_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	return &client{
		log:        log.With("service", "TavilyClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}, nil
}

func (c *client) MaxResults() int { return c.maxResults }

func (c *client) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	req := searchRequest{
		Query:      query,
		Topic:      "general",
		MaxResults: c.maxResults,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return nil, fmt.Errorf("tavily encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, c.baseURL+"/search", &buf)
	if err != nil {
		return nil, fmt.Errorf("tavily build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tavily search request: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("tavily read response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("tavily search status=%d body=%q", httpResp.StatusCode, truncate(raw))
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("tavily decode response: %w", err)
	}
	return resp.Results, nil
}

func truncate(raw []byte) string {
	const max = 512
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
