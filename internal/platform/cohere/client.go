package cohere

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

// RankedDocument points back into the candidate slice handed to Rerank.
type RankedDocument struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Client is the cross-encoder relevance scorer (Cohere /v2/rerank).
type Client interface {
	// Rerank scores documents against query and returns at most topN
	// entries, highest relevance first.
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RankedDocument, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []RankedDocument `json:"results"`
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("COHERE_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing COHERE_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("COHERE_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.cohere.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("COHERE_RERANK_MODEL"))
	if model == "" {
		model = "rerank-v3.5"
	}

	timeoutSec := 60
	if v := strings.TrimSpace(os.Getenv("COHERE_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	return &client{
		log:        log.With("service", "CohereClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}, nil
}

func (c *client) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RankedDocument, error) {
	if len(documents) == 0 {
		return []RankedDocument{}, nil
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	req := rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return nil, fmt.Errorf("cohere encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, c.baseURL+"/v2/rerank", &buf)
	if err != nil {
		return nil, fmt.Errorf("cohere build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cohere rerank request: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("cohere read response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("cohere rerank status=%d body=%q", httpResp.StatusCode, truncate(raw))
	}

	var resp rerankResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("cohere decode response: %w", err)
	}

	out := make([]RankedDocument, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf("cohere rerank returned out-of-range index %d for %d documents", r.Index, len(documents))
		}
		out = append(out, r)
	}
	return out, nil
}

func truncate(raw []byte) string {
	const max = 512
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
