package groq

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/docuchat/backend/internal/platform/logger"
)

func testClient(t *testing.T, srv *httptest.Server) *client {
	t.Helper()
	return &client{
		log:        logger.NewNop(),
		baseURL:    srv.URL,
		apiKey:     "test-key",
		model:      "llama-3.3-70b-versatile",
		maxRetries: 1,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestReadSSEJoinsDataLines(t *testing.T) {
	input := ": keepalive comment\n" +
		"data: first\n\n" +
		"data: part-a\n" +
		"data: part-b\n\n" +
		"data: last"
	var events []string
	err := readSSE(strings.NewReader(input), func(data string) error {
		events = append(events, data)
		return nil
	})
	if err != nil {
		t.Fatalf("read sse: %v", err)
	}
	want := []string{"first", "part-a\npart-b", "last"}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events: want=%v got=%v", want, events)
	}
}

func TestStreamChatEmitsDeltasInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			`data: {"choices":[{"delta":{"content":"Hello"}}]}` + "\n\n" +
				`data: {"choices":[{"delta":{"content":" world"}}]}` + "\n\n" +
				`data: {"choices":[{"delta":{"content":""},"finish_reason":"stop"}]}` + "\n\n" +
				"data: [DONE]\n\n"))
	}))
	defer srv.Close()

	var deltas []string
	full, err := testClient(t, srv).StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if full != "Hello world" {
		t.Fatalf("full: got %q", full)
	}
	if !reflect.DeepEqual(deltas, []string{"Hello", " world"}) {
		t.Fatalf("deltas: got %v", deltas)
	}
}

func TestStreamChatSurfacesStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(
			`data: {"choices":[{"delta":{"content":"partial"}}]}` + "\n\n" +
				`data: {"error":{"message":"rate limited mid-stream"}}` + "\n\n"))
	}))
	defer srv.Close()

	_, err := testClient(t, srv).StreamChat(context.Background(), nil, nil)
	if err == nil || !strings.Contains(err.Error(), "rate limited mid-stream") {
		t.Fatalf("want mid-stream error, got %v", err)
	}
}

func TestCompleteJSONDecodesObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"answer\": \"hypothetical\"}"}}]}`))
	}))
	defer srv.Close()

	out, err := testClient(t, srv).CompleteJSON(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("complete json: %v", err)
	}
	if out["answer"] != "hypothetical" {
		t.Fatalf("answer: got %v", out)
	}
}

func TestCompleteJSONRejectsNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"not json at all"}}]}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv).CompleteJSON(context.Background(), "sys", "user")
	if err == nil {
		t.Fatal("want error for non-JSON structured output, got nil")
	}
}

func TestCompleteRetriesOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"recovered"}}]}`))
	}))
	defer srv.Close()

	msg, err := testClient(t, srv).Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if msg.Content != "recovered" {
		t.Fatalf("content: got %q", msg.Content)
	}
	if attempts != 2 {
		t.Fatalf("want 2 attempts, got %d", attempts)
	}
}
