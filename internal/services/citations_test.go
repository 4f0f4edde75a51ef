package services

import (
	"reflect"
	"testing"

	"github.com/docuchat/backend/internal/domain"
)

func doc(content, source string, page int, score float64) domain.RetrievedDocument {
	return domain.RetrievedDocument{
		Chunk:          domain.Chunk{Content: content, SourceName: source, Page: page},
		RelevanceScore: score,
	}
}

func TestBuildDocumentContextPreservesOrder(t *testing.T) {
	ctx, citations := BuildDocumentContext([]domain.RetrievedDocument{
		doc("weak evidence", "a.pdf", 1, 0.55),
		doc("strong evidence", "b.pdf", 7, 0.91),
	})
	if ctx != "weak evidence\nstrong evidence" {
		t.Fatalf("context: got %q", ctx)
	}
	want := []domain.Citation{
		{Title: "a.pdf", Locator: "1"},
		{Title: "b.pdf", Locator: "7"},
	}
	if !reflect.DeepEqual(citations, want) {
		t.Fatalf("citations: want=%+v got=%+v", want, citations)
	}
}

func TestBuildDocumentContextDedupesSamePage(t *testing.T) {
	_, citations := BuildDocumentContext([]domain.RetrievedDocument{
		doc("first chunk", "a.pdf", 2, 0.6),
		doc("other source", "b.pdf", 2, 0.7),
		doc("second chunk same page", "a.pdf", 2, 0.8),
	})
	want := []domain.Citation{
		{Title: "a.pdf", Locator: "2"},
		{Title: "b.pdf", Locator: "2"},
	}
	if !reflect.DeepEqual(citations, want) {
		t.Fatalf("citations: want=%+v got=%+v", want, citations)
	}
}

func TestDedupeCitationsIdempotent(t *testing.T) {
	in := []domain.Citation{
		{Title: "a.pdf", Locator: "1"},
		{Title: "a.pdf", Locator: "1"},
		{Title: "site", Locator: "https://example.com"},
		{Title: "a.pdf", Locator: "2"},
	}
	once := DedupeCitations(in)
	twice := DedupeCitations(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("dedupe not idempotent: once=%+v twice=%+v", once, twice)
	}
	want := []domain.Citation{
		{Title: "a.pdf", Locator: "1"},
		{Title: "site", Locator: "https://example.com"},
		{Title: "a.pdf", Locator: "2"},
	}
	if !reflect.DeepEqual(once, want) {
		t.Fatalf("dedupe: want=%+v got=%+v", want, once)
	}
}

func TestBuildDocumentContextEmpty(t *testing.T) {
	ctx, citations := BuildDocumentContext(nil)
	if ctx != "" {
		t.Fatalf("context: want empty, got %q", ctx)
	}
	if len(citations) != 0 {
		t.Fatalf("citations: want none, got %+v", citations)
	}
}
