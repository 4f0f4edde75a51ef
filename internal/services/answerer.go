package services

import (
	"context"
	"fmt"

	"github.com/docuchat/backend/internal/domain"
	"github.com/docuchat/backend/internal/platform/groq"
	"github.com/docuchat/backend/internal/platform/logger"
	"github.com/docuchat/backend/internal/sessions"
)

const answerSystemTemplate = `You are a helpful assistant answering questions about the user's documents. Answer using only the context below. If the context does not contain the answer, say so plainly instead of guessing.

Context:
%s`

// Answerer turns a question plus retrieval context into an answer,
// carrying per-chat history. Context is spliced into the system prompt
// per call and never written to history, so stale chunks cannot leak
// into later turns.
type Answerer struct {
	log    *logger.Logger
	oracle groq.Client
	store  sessions.Store
}

func NewAnswerer(log *logger.Logger, oracle groq.Client, store sessions.Store) (*Answerer, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if oracle == nil || store == nil {
		return nil, fmt.Errorf("oracle and session store required")
	}
	return &Answerer{
		log:    log.With("service", "Answerer"),
		oracle: oracle,
		store:  store,
	}, nil
}

func (a *Answerer) buildMessages(ctx context.Context, chatID, question, contextText string) ([]groq.Message, error) {
	messages := []groq.Message{
		{Role: "system", Content: fmt.Sprintf(answerSystemTemplate, contextText)},
	}
	if chatID != "" {
		history, err := a.store.Get(ctx, chatID)
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", chatID, err)
		}
		for _, msg := range history {
			messages = append(messages, groq.Message{Role: msg.Role, Content: msg.Content})
		}
	}
	return append(messages, groq.Message{Role: "user", Content: question}), nil
}

func (a *Answerer) persistTurn(ctx context.Context, chatID, question, answer string) {
	if chatID == "" {
		return
	}
	err := a.store.Append(ctx, chatID,
		sessions.Message{Role: "user", Content: question},
		sessions.Message{Role: "assistant", Content: answer},
	)
	if err != nil {
		a.log.Warn("failed to persist session turn", "chat_id", chatID, "error", err)
	}
}

// Stream generates the answer and forwards non-empty deltas to
// onDelta in arrival order. The full answer is returned and the turn
// persisted on success.
func (a *Answerer) Stream(ctx context.Context, chatID, question, contextText string, onDelta func(string) error) (string, error) {
	messages, err := a.buildMessages(ctx, chatID, question, contextText)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	full, err := a.oracle.StreamChat(ctx, messages, onDelta)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	a.persistTurn(ctx, chatID, question, full)
	return full, nil
}

// Answer is the non-streaming variant used by the synchronous
// endpoint.
func (a *Answerer) Answer(ctx context.Context, chatID, question, contextText string) (string, error) {
	messages, err := a.buildMessages(ctx, chatID, question, contextText)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	msg, err := a.oracle.Complete(ctx, messages, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	a.persistTurn(ctx, chatID, question, msg.Content)
	return msg.Content, nil
}
