package chunker

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/docuchat/backend/internal/domain"
	"github.com/docuchat/backend/internal/platform/envutil"
	"github.com/docuchat/backend/internal/platform/logger"
)

// Embedder is the dense embedding dependency, satisfied by the nomic
// client in production and a fake in tests.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Chunker splits page documents into semantically coherent chunks.
// Breakpoints fall where the cosine distance between adjacent
// sentences exceeds a percentile of the source's distance
// distribution, so a topic shift starts a new chunk.
type Chunker struct {
	log        *logger.Logger
	embedder   Embedder
	percentile float64
}

type sentence struct {
	text string
	page int
}

func New(log *logger.Logger, embedder Embedder) (*Chunker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	percentile := envutil.Float("CHUNK_BREAKPOINT_PERCENTILE", 95)
	if percentile <= 0 || percentile > 100 {
		percentile = 95
	}
	return &Chunker{
		log:        log.With("service", "Chunker"),
		embedder:   embedder,
		percentile: percentile,
	}, nil
}

// Split chunks each source document independently. Chunks never span
// source files; each chunk's page is its first sentence's page and
// sequence indices restart at 0 per source.
func (c *Chunker) Split(ctx context.Context, docs []domain.PageDocument) ([]domain.Chunk, error) {
	bySource := make(map[string][]domain.PageDocument)
	var order []string
	for _, doc := range docs {
		if _, seen := bySource[doc.SourceName]; !seen {
			order = append(order, doc.SourceName)
		}
		bySource[doc.SourceName] = append(bySource[doc.SourceName], doc)
	}

	var chunks []domain.Chunk
	for _, source := range order {
		sourceChunks, err := c.splitSource(ctx, source, bySource[source])
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, sourceChunks...)
	}
	return chunks, nil
}

func (c *Chunker) splitSource(ctx context.Context, source string, pages []domain.PageDocument) ([]domain.Chunk, error) {
	var sentences []sentence
	for _, page := range pages {
		for _, text := range splitSentences(page.Text) {
			sentences = append(sentences, sentence{text: text, page: page.Page})
		}
	}
	if len(sentences) == 0 {
		return nil, nil
	}
	if len(sentences) < 2 {
		return []domain.Chunk{{
			Content:       sentences[0].text,
			SourceName:    source,
			Page:          sentences[0].page,
			SequenceIndex: 0,
		}}, nil
	}

	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.text
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed sentences for %s: %w", source, err)
	}
	if len(vectors) != len(sentences) {
		return nil, fmt.Errorf("sentence embedding count mismatch for %s: want=%d got=%d", source, len(sentences), len(vectors))
	}

	distances := make([]float64, len(sentences)-1)
	for i := 0; i < len(distances); i++ {
		distances[i] = cosineDistance(vectors[i], vectors[i+1])
	}
	threshold := percentileOf(distances, c.percentile)

	var chunks []domain.Chunk
	start := 0
	flush := func(end int) {
		var sb strings.Builder
		for i := start; i < end; i++ {
			if i > start {
				sb.WriteString(" ")
			}
			sb.WriteString(sentences[i].text)
		}
		chunks = append(chunks, domain.Chunk{
			Content:       sb.String(),
			SourceName:    source,
			Page:          sentences[start].page,
			SequenceIndex: len(chunks),
		})
		start = end
	}
	for i, d := range distances {
		if d > threshold {
			flush(i + 1)
		}
	}
	flush(len(sentences))

	c.log.Debug("chunked source",
		"source", source,
		"sentences", len(sentences),
		"chunks", len(chunks),
		"threshold", threshold,
	)
	return chunks, nil
}

// splitSentences cuts text on terminal punctuation followed by
// whitespace. Good enough for prose; abbreviation handling is out of
// scope for now.
func splitSentences(text string) []string {
	var out []string
	var sb strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		sb.WriteRune(runes[i])
		if isTerminal(runes[i]) && (i+1 == len(runes) || isSpace(runes[i+1])) {
			if s := strings.TrimSpace(sb.String()); s != "" {
				out = append(out, s)
			}
			sb.Reset()
		}
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// percentileOf returns the pct-th percentile with linear
// interpolation between ranks, over a copy of values.
func percentileOf(values []float64, pct float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := pct / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo = 0
	}
	if hi >= len(sorted) {
		hi = len(sorted) - 1
	}
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
