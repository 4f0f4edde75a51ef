package nomic

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

// Client produces dense embeddings from the Nomic Atlas API.
//
// One client serves both the document and the query side of retrieval;
// asymmetry between the two is expressed by the "search_document: " /
// "search_query: " text prefixes the callers apply, so dense vectors
// from the two sides always come from the same model configuration.
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Dim() int
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	dim        int
	httpClient *http.Client
}

type embedRequest struct {
	Model string   `json:"model"`
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("NOMIC_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing NOMIC_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("NOMIC_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api-atlas.nomic.ai"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("NOMIC_EMBED_MODEL"))
	if model == "" {
		model = "nomic-embed-text-v1.5"
	}

	dim := 768
	if v := strings.TrimSpace(os.Getenv("NOMIC_EMBED_DIM")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			dim = parsed
		}
	}

	timeoutSec := 60
	if v := strings.TrimSpace(os.Getenv("NOMIC_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	return &client{
		log:        log.With("service", "NomicClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		dim:        dim,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}, nil
}

func (c *client) Dim() int { return c.dim }

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}

	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	req := embedRequest{
		Model: c.model,
		Texts: clean,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return nil, fmt.Errorf("nomic encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, c.baseURL+"/v1/embedding/text", &buf)
	if err != nil {
		return nil, fmt.Errorf("nomic build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("nomic embeddings request: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("nomic read response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("nomic embeddings status=%d body=%q", httpResp.StatusCode, truncate(raw))
	}

	var resp embedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("nomic decode response: %w", err)
	}
	if len(resp.Embeddings) != len(clean) {
		return nil, fmt.Errorf(
			"nomic embeddings count mismatch: requested=%d returned=%d model=%s",
			len(clean),
			len(resp.Embeddings),
			c.model,
		)
	}
	for i, vec := range resp.Embeddings {
		if len(vec) == 0 {
			return nil, fmt.Errorf("nomic embeddings empty vector at index %d", i)
		}
	}
	return resp.Embeddings, nil
}

func truncate(raw []byte) string {
	const max = 512
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
