package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/docuchat/backend/internal/platform/logger"
)

func testClient(srv *httptest.Server) *client {
	return &client{
		log:        logger.NewNop(),
		baseURL:    srv.URL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestClosingPricesParsesChart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/NVDA" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("range"); got != "1mo" {
			t.Errorf("range: got %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != userAgent {
			t.Errorf("user agent: got %q", got)
		}
		_, _ = w.Write([]byte(`{"chart":{"result":[{"timestamp":[1704067200,1704153600,1704240000],"indicators":{"quote":[{"close":[48.17,null,49.52]}]}}],"error":null}}`))
	}))
	defer srv.Close()

	prices, err := testClient(srv).ClosingPrices(context.Background(), "nvda")
	if err != nil {
		t.Fatalf("closing prices: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("want 2 prices with the null close dropped, got %d", len(prices))
	}
	if prices[0].Close != 48.17 || prices[1].Close != 49.52 {
		t.Fatalf("closes: %+v", prices)
	}
	if got := prices[0].Date.Format("2006-01-02"); got != "2024-01-01" {
		t.Fatalf("date: want=2024-01-01 got=%s", got)
	}
}

func TestClosingPricesRejectsBadTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected for invalid ticker")
	}))
	defer srv.Close()

	for _, ticker := range []string{"", "   ", "../etc", "A B", "toolongtickersym"} {
		if _, err := testClient(srv).ClosingPrices(context.Background(), ticker); err == nil {
			t.Fatalf("ticker %q: want error, got nil", ticker)
		}
	}
}

func TestClosingPricesChartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv).ClosingPrices(context.Background(), "GONE")
	if err == nil || !strings.Contains(err.Error(), "No data found") {
		t.Fatalf("want chart error, got %v", err)
	}
}

func TestProfileParsesQuoteSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v10/finance/quoteSummary/IBM" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("modules"); got != "price,assetProfile" {
			t.Errorf("modules: got %q", got)
		}
		_, _ = w.Write([]byte(`{"quoteSummary":{"result":[{"price":{"symbol":"IBM","longName":"International Business Machines","exchangeName":"NYSE","currency":"USD"},"assetProfile":{"longBusinessSummary":"IBM provides integrated solutions."}}],"error":null}}`))
	}))
	defer srv.Close()

	profile, err := testClient(srv).Profile(context.Background(), "ibm")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Symbol != "IBM" || profile.Exchange != "NYSE" || profile.Currency != "USD" {
		t.Fatalf("profile: %+v", profile)
	}
	if !strings.Contains(profile.Summary, "integrated solutions") {
		t.Fatalf("summary: %q", profile.Summary)
	}
}

func TestProfileUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`rate limited`))
	}))
	defer srv.Close()

	if _, err := testClient(srv).Profile(context.Background(), "IBM"); err == nil {
		t.Fatal("want error for non-2xx status, got nil")
	}
}
