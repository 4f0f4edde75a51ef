package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/docuchat/backend/internal/domain"
	"github.com/docuchat/backend/internal/platform/cohere"
	"github.com/docuchat/backend/internal/platform/logger"
	"github.com/docuchat/backend/internal/platform/qdrant"
	"github.com/docuchat/backend/internal/sparse"
)

type fakeExpander struct {
	answer string
	err    error
}

func (f *fakeExpander) Expand(context.Context, string) (string, error) {
	return f.answer, f.err
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (fakeEmbedder) Dim() int { return 2 }

type fakeIndex struct {
	hits []qdrant.ScoredPoint
	err  error
}

func (f *fakeIndex) HybridQuery(context.Context, []float32, qdrant.SparseVector, int) ([]qdrant.ScoredPoint, error) {
	return f.hits, f.err
}

type fakeReranker struct {
	results []cohere.RankedDocument
	err     error
}

func (f *fakeReranker) Rerank(context.Context, string, []string, int) ([]cohere.RankedDocument, error) {
	return f.results, f.err
}

func hit(i int, source string, page int) qdrant.ScoredPoint {
	return qdrant.ScoredPoint{
		ID:    fmt.Sprintf("p%d", i),
		Score: 0.5,
		Payload: map[string]any{
			"content":        fmt.Sprintf("chunk %d", i),
			"source_name":    source,
			"page":           float64(page),
			"sequence_index": float64(i),
		},
	}
}

func newTestRetriever(t *testing.T, exp Expander, index HybridIndex, rr cohere.Client) Retriever {
	t.Helper()
	r, err := NewRetriever(logger.NewNop(), exp, fakeEmbedder{}, sparse.NewEncoder(), index, rr)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	return r
}

func TestRetrieveExpanderFailurePropagates(t *testing.T) {
	exp := &fakeExpander{err: fmt.Errorf("%w: boom", domain.ErrGeneration)}
	r := newTestRetriever(t, exp, &fakeIndex{}, &fakeReranker{})

	_, err := r.Retrieve(context.Background(), "q")
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("want ErrGeneration, got %v", err)
	}
}

func TestRetrieveMissingCollection(t *testing.T) {
	index := &fakeIndex{err: fmt.Errorf("query: %w", qdrant.ErrCollectionNotFound)}
	r := newTestRetriever(t, &fakeExpander{answer: "a"}, index, &fakeReranker{})

	_, err := r.Retrieve(context.Background(), "q")
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("want ErrIndexUnavailable, got %v", err)
	}
}

func TestRetrieveEmptyIndexIsNotAnError(t *testing.T) {
	r := newTestRetriever(t, &fakeExpander{answer: "a"}, &fakeIndex{}, &fakeReranker{})

	docs, err := r.Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("want empty result, got %d", len(docs))
	}
}

func TestRetrieveFiltersAndSortsAscending(t *testing.T) {
	index := &fakeIndex{hits: []qdrant.ScoredPoint{
		hit(0, "a.pdf", 1),
		hit(1, "a.pdf", 2),
		hit(2, "b.html", 1),
		hit(3, "b.html", 1),
	}}
	rr := &fakeReranker{results: []cohere.RankedDocument{
		{Index: 2, RelevanceScore: 0.97},
		{Index: 0, RelevanceScore: 0.81},
		{Index: 3, RelevanceScore: 0.55},
		{Index: 1, RelevanceScore: 0.31}, // below threshold, dropped
	}}
	r := newTestRetriever(t, &fakeExpander{answer: "a"}, index, rr)

	docs, err := r.Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("want 3 docs after threshold filter, got %d", len(docs))
	}
	for i := 1; i < len(docs); i++ {
		if docs[i-1].RelevanceScore > docs[i].RelevanceScore {
			t.Fatalf("scores not ascending: %f before %f", docs[i-1].RelevanceScore, docs[i].RelevanceScore)
		}
	}
	// Weakest first, strongest last.
	if docs[0].Content != "chunk 3" || docs[2].Content != "chunk 2" {
		t.Fatalf("order wrong: first=%q last=%q", docs[0].Content, docs[2].Content)
	}
}

func TestRetrieveScoreAtThresholdIsDropped(t *testing.T) {
	index := &fakeIndex{hits: []qdrant.ScoredPoint{hit(0, "a.pdf", 1)}}
	rr := &fakeReranker{results: []cohere.RankedDocument{{Index: 0, RelevanceScore: 0.5}}}
	r := newTestRetriever(t, &fakeExpander{answer: "a"}, index, rr)

	docs, err := r.Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("score equal to threshold must be filtered, got %d docs", len(docs))
	}
}

func TestRetrieveMissingPageDefaultsToZero(t *testing.T) {
	index := &fakeIndex{hits: []qdrant.ScoredPoint{{
		ID:      "p0",
		Payload: map[string]any{"content": "no page here", "source_name": "a.pdf"},
	}}}
	rr := &fakeReranker{results: []cohere.RankedDocument{{Index: 0, RelevanceScore: 0.9}}}
	r := newTestRetriever(t, &fakeExpander{answer: "a"}, index, rr)

	docs, err := r.Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("want 1 doc, got %d", len(docs))
	}
	if docs[0].Page != 0 {
		t.Fatalf("missing page should decode as 0, got %d", docs[0].Page)
	}
}
