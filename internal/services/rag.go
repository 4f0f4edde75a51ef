package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/docuchat/backend/internal/domain"
	"github.com/docuchat/backend/internal/platform/logger"
	"github.com/docuchat/backend/internal/retrieval"
)

// ErrNoMatches means neither the index nor (where applicable) web
// fallback produced an answer. The synchronous endpoint maps it to a
// 404.
var ErrNoMatches = errors.New("no matching documents")

// RAGService orchestrates one question: retrieve, answer from
// documents, or fall back to the web search agent when the index is
// missing or matched nothing.
type RAGService struct {
	log       *logger.Logger
	retriever retrieval.Retriever
	answerer  *Answerer
	agent     *SearchAgent
}

func NewRAGService(log *logger.Logger, r retrieval.Retriever, answerer *Answerer, agent *SearchAgent) (*RAGService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if r == nil || answerer == nil || agent == nil {
		return nil, fmt.Errorf("retriever, answerer and search agent required")
	}
	return &RAGService{
		log:       log.With("service", "RAGService"),
		retriever: r,
		answerer:  answerer,
		agent:     agent,
	}, nil
}

// StreamAnswer drives the full streamed pipeline. Failures emit a
// terminal error event on sink and are also returned for logging.
func (s *RAGService) StreamAnswer(ctx context.Context, question, chatID string, sink EventSink) error {
	docs, err := s.retriever.Retrieve(ctx, question)
	switch {
	case errors.Is(err, domain.ErrIndexUnavailable):
		s.log.Info("index unavailable, falling back to web search", "chat_id", chatID)
		return s.streamFallback(ctx, question, chatID, sink)
	case err != nil:
		_ = sink.Error(publicMessage(err))
		return err
	case len(docs) == 0:
		s.log.Info("no relevant documents, falling back to web search", "chat_id", chatID)
		return s.streamFallback(ctx, question, chatID, sink)
	}

	contextText, citations := BuildDocumentContext(docs)
	if _, err := s.answerer.Stream(ctx, chatID, question, contextText, sink.Content); err != nil {
		_ = sink.Error(publicMessage(err))
		return err
	}
	if len(citations) == 0 {
		return nil
	}
	return sink.Citations(citations)
}

func (s *RAGService) streamFallback(ctx context.Context, question, chatID string, sink EventSink) error {
	if err := s.agent.StreamAnswer(ctx, question, chatID, sink); err != nil {
		_ = sink.Error(publicMessage(err))
		return err
	}
	return nil
}

// Answer is the synchronous, document-only path: no web fallback, and
// an empty retrieval is ErrNoMatches rather than a guessed answer.
func (s *RAGService) Answer(ctx context.Context, question, chatID string) (string, []domain.Citation, error) {
	docs, err := s.retriever.Retrieve(ctx, question)
	if errors.Is(err, domain.ErrIndexUnavailable) {
		return "", nil, fmt.Errorf("%w: %v", ErrNoMatches, err)
	}
	if err != nil {
		return "", nil, err
	}
	if len(docs) == 0 {
		return "", nil, ErrNoMatches
	}

	contextText, citations := BuildDocumentContext(docs)
	answer, err := s.answerer.Answer(ctx, chatID, question, contextText)
	if err != nil {
		return "", nil, err
	}
	return answer, citations, nil
}

// publicMessage keeps upstream detail out of client-facing error
// events.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrGeneration):
		return "answer generation failed"
	case errors.Is(err, domain.ErrRetrieval):
		return "document retrieval failed"
	case errors.Is(err, domain.ErrUpstreamSearch):
		return "web search failed"
	case errors.Is(err, domain.ErrIndexUnavailable):
		return "document index unavailable"
	default:
		return "internal error"
	}
}
