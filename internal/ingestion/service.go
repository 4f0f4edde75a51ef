package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/docuchat/backend/internal/domain"
	"github.com/docuchat/backend/internal/ingestion/chunker"
	"github.com/docuchat/backend/internal/ingestion/loader"
	"github.com/docuchat/backend/internal/platform/envutil"
	"github.com/docuchat/backend/internal/platform/logger"
	"github.com/docuchat/backend/internal/platform/nomic"
	"github.com/docuchat/backend/internal/platform/qdrant"
	"github.com/docuchat/backend/internal/sparse"
)

// documentPrefix marks the document side of the asymmetric embedding
// model; queries carry the matching "search_query: " prefix.
const documentPrefix = "search_document: "

// VectorIndex is the slice of the qdrant store the rebuild path needs.
type VectorIndex interface {
	Recreate(ctx context.Context) error
	Upsert(ctx context.Context, points []qdrant.Point) error
}

// Service rebuilds the vector index from a folder of source files.
type Service interface {
	// Rebuild loads, chunks, embeds and indexes every recognized file
	// in folder, replacing the whole collection. Returns the number of
	// chunks indexed. Concurrent calls are serialized.
	Rebuild(ctx context.Context, folder string) (int, error)
}

type service struct {
	log      *logger.Logger
	chunker  *chunker.Chunker
	embedder nomic.Client
	sparse   *sparse.Encoder
	store    VectorIndex

	mu          sync.Mutex
	batchSize   int
	concurrency int
}

func NewService(
	log *logger.Logger,
	ch *chunker.Chunker,
	embedder nomic.Client,
	encoder *sparse.Encoder,
	store VectorIndex,
) (Service, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ch == nil || embedder == nil || encoder == nil || store == nil {
		return nil, fmt.Errorf("chunker, embedder, sparse encoder and store required")
	}

	batchSize := envutil.Int("INGEST_EMBED_BATCH_SIZE", 64)
	if batchSize <= 0 {
		batchSize = 64
	}
	concurrency := envutil.Int("INGEST_EMBED_CONCURRENCY", 4)
	if concurrency <= 0 {
		concurrency = 4
	}

	return &service{
		log:         log.With("service", "IngestionService"),
		chunker:     ch,
		embedder:    embedder,
		sparse:      encoder,
		store:       store,
		batchSize:   batchSize,
		concurrency: concurrency,
	}, nil
}

func (s *service) Rebuild(ctx context.Context, folder string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(folder)
	if err != nil {
		return 0, fmt.Errorf("%w: folder %s: %v", domain.ErrIngestion, folder, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%w: %s is not a directory", domain.ErrIngestion, folder)
	}

	docs, err := s.loadFolder(folder)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrIngestion, err)
	}

	chunks, err := s.chunker.Split(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrIngestion, err)
	}

	points, err := s.buildPoints(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrIngestion, err)
	}

	// Destructive by design: each rebuild replaces the collection so
	// stale chunks from removed files cannot linger.
	if err := s.store.Recreate(ctx); err != nil {
		return 0, fmt.Errorf("%w: recreate collection: %v", domain.ErrIngestion, err)
	}
	if len(points) > 0 {
		if err := s.store.Upsert(ctx, points); err != nil {
			return 0, fmt.Errorf("%w: upsert points: %v", domain.ErrIngestion, err)
		}
	}

	s.log.Info("index rebuilt", "folder", folder, "documents", len(docs), "chunks", len(chunks))
	return len(chunks), nil
}

func (s *service) loadFolder(folder string) ([]domain.PageDocument, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", folder, err)
	}

	var docs []domain.PageDocument
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(folder, entry.Name())
		ld, ok := loader.ForFile(path)
		if !ok {
			s.log.Debug("skipping unrecognized file", "file", entry.Name())
			continue
		}
		loaded, err := ld.Load(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, loaded...)
	}
	return docs, nil
}

// buildPoints dual-embeds chunks in bounded parallel batches. The
// points slice is preallocated and each batch writes its own range, so
// output order matches chunk order without locking.
func (s *service) buildPoints(ctx context.Context, chunks []domain.Chunk) ([]qdrant.Point, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	points := make([]qdrant.Point, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		g.Go(func() error {
			batch := chunks[start:end]
			texts := make([]string, len(batch))
			for i, chunk := range batch {
				texts[i] = documentPrefix + chunk.Content
			}
			vectors, err := s.embedder.Embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("embed batch [%d:%d]: count mismatch", start, end)
			}
			for i, chunk := range batch {
				points[start+i] = qdrant.Point{
					ID:     fmt.Sprintf("%s|%d", chunk.SourceName, chunk.SequenceIndex),
					Dense:  vectors[i],
					Sparse: s.sparse.Encode(chunk.Content),
					Payload: map[string]any{
						"content":        chunk.Content,
						"source_name":    chunk.SourceName,
						"page":           chunk.Page,
						"sequence_index": chunk.SequenceIndex,
					},
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}
