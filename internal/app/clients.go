package app

import (
	"context"
	"fmt"

	"github.com/docuchat/backend/internal/platform/cohere"
	"github.com/docuchat/backend/internal/platform/envutil"
	"github.com/docuchat/backend/internal/platform/groq"
	"github.com/docuchat/backend/internal/platform/logger"
	"github.com/docuchat/backend/internal/platform/nomic"
	"github.com/docuchat/backend/internal/platform/qdrant"
	"github.com/docuchat/backend/internal/platform/tavily"
	"github.com/docuchat/backend/internal/platform/yahoo"
	"github.com/docuchat/backend/internal/sessions"
)

type Clients struct {
	Nomic    nomic.Client
	Groq     groq.Client
	Cohere   cohere.Client
	Tavily   tavily.Client
	Yahoo    yahoo.Client
	Qdrant   *qdrant.Store
	Sessions sessions.Store
}

func wireClients(ctx context.Context, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	nomicClient, err := nomic.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init nomic client: %w", err)
	}
	groqClient, err := groq.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init groq client: %w", err)
	}
	cohereClient, err := cohere.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init cohere client: %w", err)
	}
	tavilyClient, err := tavily.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init tavily client: %w", err)
	}
	yahooClient, err := yahoo.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init yahoo client: %w", err)
	}

	qdrantCfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		return Clients{}, fmt.Errorf("resolve qdrant config: %w", err)
	}
	store, err := qdrant.NewStore(log, qdrantCfg)
	if err != nil {
		return Clients{}, fmt.Errorf("init qdrant store: %w", err)
	}

	sessionStore, err := wireSessionStore(ctx, log)
	if err != nil {
		return Clients{}, err
	}

	return Clients{
		Nomic:    nomicClient,
		Groq:     groqClient,
		Cohere:   cohereClient,
		Tavily:   tavilyClient,
		Yahoo:    yahooClient,
		Qdrant:   store,
		Sessions: sessionStore,
	}, nil
}

// wireSessionStore prefers Redis when REDIS_ADDR is set, so replicas
// share chat history; otherwise histories live in process memory.
func wireSessionStore(ctx context.Context, log *logger.Logger) (sessions.Store, error) {
	if envutil.String("REDIS_ADDR", "") == "" {
		log.Info("Using in-memory session store")
		return sessions.NewMemoryStore(), nil
	}
	store, err := sessions.NewRedisStore(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("init redis session store: %w", err)
	}
	log.Info("Using redis session store")
	return store, nil
}
