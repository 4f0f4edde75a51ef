package nomic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/docuchat/backend/internal/platform/logger"
)

func testClient(srv *httptest.Server) *client {
	return &client{
		log:        logger.NewNop(),
		baseURL:    srv.URL,
		apiKey:     "test-key",
		model:      "nomic-embed-text-v1.5",
		dim:        3,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestEmbedRoundTrip(t *testing.T) {
	var got embedRequest
	var fields map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embedding/text" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.Unmarshal(raw, &fields)
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3],[0.4,0.5,0.6]]}`))
	}))
	defer srv.Close()

	vectors, err := testClient(srv).Embed(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if got.Model != "nomic-embed-text-v1.5" || len(got.Texts) != 2 {
		t.Fatalf("request: %+v", got)
	}
	// The wire request carries model and texts, nothing else.
	if len(fields) != 2 {
		t.Fatalf("request fields: want model and texts only, got %v", fields)
	}
	if len(vectors) != 2 || vectors[1][2] != 0.6 {
		t.Fatalf("vectors: %+v", vectors)
	}
}

func TestEmbedPadsEmptyInput(t *testing.T) {
	var got embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer srv.Close()

	if _, err := testClient(srv).Embed(context.Background(), []string{"   "}); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(got.Texts) != 1 || got.Texts[0] != " " {
		t.Fatalf("blank input not padded: %+v", got.Texts)
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer srv.Close()

	_, err := testClient(srv).Embed(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("want error for count mismatch, got nil")
	}
}

func TestEmbedNoInputsSkipsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected for empty inputs")
	}))
	defer srv.Close()

	vectors, err := testClient(srv).Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vectors) != 0 {
		t.Fatalf("want no vectors, got %d", len(vectors))
	}
}
