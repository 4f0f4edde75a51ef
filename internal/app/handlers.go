package app

import (
	"github.com/docuchat/backend/internal/handlers"
	"github.com/docuchat/backend/internal/platform/logger"
)

type Handlers struct {
	Document *handlers.DocumentHandler
	Stream   *handlers.StreamHandler
}

func wireHandlers(log *logger.Logger, cfg Config, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Document: handlers.NewDocumentHandler(log, services.Ingestion, services.RAG, cfg.UploadDir),
		Stream:   handlers.NewStreamHandler(log, services.RAG, services.Agent, services.Stocks),
	}
}
