package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/docuchat/backend/internal/domain"
	"github.com/docuchat/backend/internal/platform/cohere"
	"github.com/docuchat/backend/internal/platform/envutil"
	"github.com/docuchat/backend/internal/platform/logger"
	"github.com/docuchat/backend/internal/platform/nomic"
	"github.com/docuchat/backend/internal/platform/qdrant"
	"github.com/docuchat/backend/internal/sparse"
)

// queryPrefix is the query-side counterpart of the document-side
// "search_document: " prefix applied at ingestion.
const queryPrefix = "search_query: "

// HybridIndex is the slice of the qdrant store the query path needs.
type HybridIndex interface {
	HybridQuery(ctx context.Context, dense []float32, sp qdrant.SparseVector, limit int) ([]qdrant.ScoredPoint, error)
}

// Retriever runs the full query-side pipeline: HyDE expansion, dual
// embedding, hybrid candidate fetch, cross-encoder rerank, threshold
// filter. Results come back sorted ascending by relevance score, so
// the strongest evidence sits last and closest to the question when
// the context is spliced into the prompt.
type Retriever interface {
	// Retrieve returns at most TopN documents with score > MinScore.
	// An empty slice means the index matched nothing useful; a missing
	// index is domain.ErrIndexUnavailable.
	Retrieve(ctx context.Context, question string) ([]domain.RetrievedDocument, error)
}

type retriever struct {
	log      *logger.Logger
	expander Expander
	embedder nomic.Client
	sparse   *sparse.Encoder
	index    HybridIndex
	reranker cohere.Client

	fetchK   int
	topN     int
	minScore float64
}

func NewRetriever(
	log *logger.Logger,
	exp Expander,
	embedder nomic.Client,
	encoder *sparse.Encoder,
	index HybridIndex,
	reranker cohere.Client,
) (Retriever, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if exp == nil || embedder == nil || encoder == nil || index == nil || reranker == nil {
		return nil, fmt.Errorf("expander, embedder, sparse encoder, index and reranker required")
	}

	fetchK := envutil.Int("RETRIEVAL_FETCH_K", 10)
	if fetchK <= 0 {
		fetchK = 10
	}
	topN := envutil.Int("RETRIEVAL_TOP_N", 5)
	if topN <= 0 {
		topN = 5
	}
	minScore := envutil.Float("RETRIEVAL_MIN_SCORE", 0.5)

	return &retriever{
		log:      log.With("service", "HybridRetriever"),
		expander: exp,
		embedder: embedder,
		sparse:   encoder,
		index:    index,
		reranker: reranker,
		fetchK:   fetchK,
		topN:     topN,
		minScore: minScore,
	}, nil
}

func (r *retriever) Retrieve(ctx context.Context, question string) ([]domain.RetrievedDocument, error) {
	expanded, err := r.expander.Expand(ctx, question)
	if err != nil {
		return nil, err
	}

	vectors, err := r.embedder.Embed(ctx, []string{queryPrefix + expanded})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", domain.ErrRetrieval, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: embed query: want 1 vector, got %d", domain.ErrRetrieval, len(vectors))
	}

	hits, err := r.index.HybridQuery(ctx, vectors[0], r.sparse.Encode(expanded), r.fetchK)
	if err != nil {
		if errors.Is(err, qdrant.ErrCollectionNotFound) {
			return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
		}
		return nil, fmt.Errorf("%w: hybrid query: %v", domain.ErrRetrieval, err)
	}
	if len(hits) == 0 {
		return []domain.RetrievedDocument{}, nil
	}

	candidates := make([]domain.Chunk, 0, len(hits))
	contents := make([]string, 0, len(hits))
	for _, hit := range hits {
		chunk := chunkFromPayload(hit.Payload)
		if chunk.Content == "" {
			r.log.Warn("dropping hit without content payload", "id", hit.ID)
			continue
		}
		candidates = append(candidates, chunk)
		contents = append(contents, chunk.Content)
	}
	if len(candidates) == 0 {
		return []domain.RetrievedDocument{}, nil
	}

	ranked, err := r.reranker.Rerank(ctx, expanded, contents, r.topN)
	if err != nil {
		return nil, fmt.Errorf("%w: rerank: %v", domain.ErrRetrieval, err)
	}

	docs := make([]domain.RetrievedDocument, 0, len(ranked))
	for _, rd := range ranked {
		if rd.RelevanceScore <= r.minScore {
			continue
		}
		docs = append(docs, domain.RetrievedDocument{
			Chunk:          candidates[rd.Index],
			RelevanceScore: rd.RelevanceScore,
		})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].RelevanceScore < docs[j].RelevanceScore
	})
	return docs, nil
}

// chunkFromPayload tolerates missing metadata: absent page decodes as
// the page 0 sentinel and the batch continues.
func chunkFromPayload(payload map[string]any) domain.Chunk {
	return domain.Chunk{
		Content:       payloadString(payload, "content"),
		SourceName:    payloadString(payload, "source_name"),
		Page:          payloadInt(payload, "page"),
		SequenceIndex: payloadInt(payload, "sequence_index"),
	}
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func payloadInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
