package app

import (
	"fmt"

	"github.com/docuchat/backend/internal/ingestion"
	"github.com/docuchat/backend/internal/ingestion/chunker"
	"github.com/docuchat/backend/internal/platform/logger"
	"github.com/docuchat/backend/internal/retrieval"
	"github.com/docuchat/backend/internal/services"
	"github.com/docuchat/backend/internal/sparse"
)

type Services struct {
	Ingestion ingestion.Service
	Retriever retrieval.Retriever
	Answerer  *services.Answerer
	Agent     *services.SearchAgent
	Stocks    *services.StocksAgent
	RAG       *services.RAGService
}

func wireServices(log *logger.Logger, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	encoder := sparse.NewEncoder()

	ch, err := chunker.New(log, clients.Nomic)
	if err != nil {
		return Services{}, fmt.Errorf("init chunker: %w", err)
	}
	ingester, err := ingestion.NewService(log, ch, clients.Nomic, encoder, clients.Qdrant)
	if err != nil {
		return Services{}, fmt.Errorf("init ingestion service: %w", err)
	}

	expander, err := retrieval.NewExpander(log, clients.Groq)
	if err != nil {
		return Services{}, fmt.Errorf("init query expander: %w", err)
	}
	retriever, err := retrieval.NewRetriever(log, expander, clients.Nomic, encoder, clients.Qdrant, clients.Cohere)
	if err != nil {
		return Services{}, fmt.Errorf("init retriever: %w", err)
	}

	answerer, err := services.NewAnswerer(log, clients.Groq, clients.Sessions)
	if err != nil {
		return Services{}, fmt.Errorf("init answerer: %w", err)
	}
	agent, err := services.NewSearchAgent(log, clients.Groq, clients.Tavily, clients.Sessions)
	if err != nil {
		return Services{}, fmt.Errorf("init search agent: %w", err)
	}
	stocksAgent, err := services.NewStocksAgent(log, clients.Groq, clients.Yahoo, clients.Sessions)
	if err != nil {
		return Services{}, fmt.Errorf("init stocks agent: %w", err)
	}
	rag, err := services.NewRAGService(log, retriever, answerer, agent)
	if err != nil {
		return Services{}, fmt.Errorf("init rag service: %w", err)
	}

	return Services{
		Ingestion: ingester,
		Retriever: retriever,
		Answerer:  answerer,
		Agent:     agent,
		Stocks:    stocksAgent,
		RAG:       rag,
	}, nil
}
