package chunker

import (
	"context"
	"testing"

	"github.com/docuchat/backend/internal/domain"
	"github.com/docuchat/backend/internal/platform/logger"
)

// fakeEmbedder maps known sentences to fixed 2-d vectors so cosine
// distances are controlled by the test.
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(inputs))
	for i, s := range inputs {
		vec, ok := f.vectors[s]
		if !ok {
			vec = []float32{1, 0}
		}
		out[i] = vec
	}
	return out, nil
}

func newTestChunker(t *testing.T, emb Embedder) *Chunker {
	t.Helper()
	c, err := New(logger.NewNop(), emb)
	if err != nil {
		t.Fatalf("new chunker: %v", err)
	}
	return c
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("First sentence. Second one! Is this third? Trailing fragment")
	want := []string{"First sentence.", "Second one!", "Is this third?", "Trailing fragment"}
	if len(got) != len(want) {
		t.Fatalf("sentence count: want=%d got=%d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence %d: want=%q got=%q", i, want[i], got[i])
		}
	}
}

func TestSplitSingleSentenceBecomesWholeChunk(t *testing.T) {
	emb := &fakeEmbedder{}
	c := newTestChunker(t, emb)

	chunks, err := c.Split(context.Background(), []domain.PageDocument{
		{Text: "Only one sentence here", SourceName: "a.pdf", Page: 3},
	})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("want 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "Only one sentence here" {
		t.Fatalf("content: got %q", chunks[0].Content)
	}
	if chunks[0].Page != 3 || chunks[0].SequenceIndex != 0 {
		t.Fatalf("page/seq: got page=%d seq=%d", chunks[0].Page, chunks[0].SequenceIndex)
	}
	if emb.calls != 0 {
		t.Fatalf("single sentence should not need embeddings, got %d calls", emb.calls)
	}
}

func TestSplitBreaksAtTopicShift(t *testing.T) {
	// Two cat sentences point one way, two dog sentences the other;
	// the single large adjacent distance sits at the topic boundary.
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"Cats purr.":       {1, 0},
		"Cats also nap.":   {0.99, 0.1},
		"Dogs bark a lot.": {0, 1},
		"Dogs also run.":   {0.1, 0.99},
	}}
	c := newTestChunker(t, emb)

	chunks, err := c.Split(context.Background(), []domain.PageDocument{
		{Text: "Cats purr. Cats also nap.", SourceName: "pets.pdf", Page: 1},
		{Text: "Dogs bark a lot. Dogs also run.", SourceName: "pets.pdf", Page: 2},
	})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("want 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Content != "Cats purr. Cats also nap." {
		t.Fatalf("first chunk: got %q", chunks[0].Content)
	}
	if chunks[1].Content != "Dogs bark a lot. Dogs also run." {
		t.Fatalf("second chunk: got %q", chunks[1].Content)
	}
	if chunks[0].Page != 1 || chunks[1].Page != 2 {
		t.Fatalf("pages: got %d and %d", chunks[0].Page, chunks[1].Page)
	}
	if chunks[0].SequenceIndex != 0 || chunks[1].SequenceIndex != 1 {
		t.Fatalf("sequence: got %d and %d", chunks[0].SequenceIndex, chunks[1].SequenceIndex)
	}
}

func TestSplitKeepsSourcesSeparate(t *testing.T) {
	emb := &fakeEmbedder{}
	c := newTestChunker(t, emb)

	chunks, err := c.Split(context.Background(), []domain.PageDocument{
		{Text: "Alpha text", SourceName: "a.pdf", Page: 1},
		{Text: "Beta text", SourceName: "b.html", Page: 1},
	})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("want 2 chunks, got %d", len(chunks))
	}
	if chunks[0].SourceName != "a.pdf" || chunks[1].SourceName != "b.html" {
		t.Fatalf("sources: got %q and %q", chunks[0].SourceName, chunks[1].SourceName)
	}
	// Sequence indices restart per source.
	if chunks[0].SequenceIndex != 0 || chunks[1].SequenceIndex != 0 {
		t.Fatalf("sequence: got %d and %d", chunks[0].SequenceIndex, chunks[1].SequenceIndex)
	}
}
