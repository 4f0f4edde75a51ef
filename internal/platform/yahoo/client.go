package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/docuchat/backend/internal/domain"
	"github.com/docuchat/backend/internal/platform/ctxutil"
	"github.com/docuchat/backend/internal/platform/logger"
)

// Client reads public market data from the Yahoo Finance query API.
// No API key; the endpoints are the same ones the yfinance ecosystem
// scrapes.
type Client interface {
	// ClosingPrices returns the last month's daily closes, oldest first.
	ClosingPrices(ctx context.Context, ticker string) ([]domain.ClosingPrice, error)

	// Profile returns company background for a ticker.
	Profile(ctx context.Context, ticker string) (domain.CompanyProfile, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

// Yahoo rejects Go's default agent.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

// Tickers are short alphanumerics plus class separators (BRK.B, BF-B).
var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,10}$`)

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"chart"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				Symbol       string `json:"symbol"`
				LongName     string `json:"longName"`
				ExchangeName string `json:"exchangeName"`
				Currency     string `json:"currency"`
			} `json:"price"`
			AssetProfile struct {
				LongBusinessSummary string `json:"longBusinessSummary"`
			} `json:"assetProfile"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"quoteSummary"`
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	baseURL := strings.TrimSpace(os.Getenv("STOCKS_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeoutSec := 15
	if v := strings.TrimSpace(os.Getenv("STOCKS_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	return &client{
		log:        log.With("service", "YahooClient"),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}, nil
}

func (c *client) ClosingPrices(ctx context.Context, ticker string) ([]domain.ClosingPrice, error) {
	ticker, err := normalizeTicker(ticker)
	if err != nil {
		return nil, err
	}

	raw, err := c.get(ctx, "/v8/finance/chart/"+url.PathEscape(ticker)+"?range=1mo&interval=1d")
	if err != nil {
		return nil, err
	}

	var resp chartResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("yahoo decode chart response: %w", err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart %s: %s", ticker, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: empty result", ticker)
	}

	result := resp.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	prices := make([]domain.ClosingPrice, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Close entries are null on days without a settled price.
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		prices = append(prices, domain.ClosingPrice{
			Date:  time.Unix(ts, 0).UTC(),
			Close: *closes[i],
		})
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: no closing prices", ticker)
	}
	return prices, nil
}

func (c *client) Profile(ctx context.Context, ticker string) (domain.CompanyProfile, error) {
	ticker, err := normalizeTicker(ticker)
	if err != nil {
		return domain.CompanyProfile{}, err
	}

	raw, err := c.get(ctx, "/v10/finance/quoteSummary/"+url.PathEscape(ticker)+"?modules=price,assetProfile")
	if err != nil {
		return domain.CompanyProfile{}, err
	}

	var resp quoteSummaryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.CompanyProfile{}, fmt.Errorf("yahoo decode quote summary: %w", err)
	}
	if resp.QuoteSummary.Error != nil {
		return domain.CompanyProfile{}, fmt.Errorf("yahoo quote summary %s: %s", ticker, resp.QuoteSummary.Error.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return domain.CompanyProfile{}, fmt.Errorf("yahoo quote summary %s: empty result", ticker)
	}

	result := resp.QuoteSummary.Result[0]
	symbol := result.Price.Symbol
	if symbol == "" {
		symbol = ticker
	}
	return domain.CompanyProfile{
		Symbol:   symbol,
		Name:     result.Price.LongName,
		Exchange: result.Price.ExchangeName,
		Currency: result.Price.Currency,
		Summary:  result.AssetProfile.LongBusinessSummary,
	}, nil
}

func (c *client) get(ctx context.Context, path string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("yahoo build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("yahoo request: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("yahoo read response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("yahoo status=%d body=%q", httpResp.StatusCode, truncate(raw))
	}
	return raw, nil
}

func normalizeTicker(ticker string) (string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if !tickerPattern.MatchString(ticker) {
		return "", fmt.Errorf("invalid ticker %q", ticker)
	}
	return ticker, nil
}

func truncate(raw []byte) string {
	const max = 512
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
