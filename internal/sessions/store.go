package sessions

import "context"

// Message is one persisted conversation turn. Only user questions and
// final assistant answers are stored; retrieval context never is.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store keeps per-chat conversation history. Implementations bound
// history length so long-lived chats cannot grow prompts without
// limit.
type Store interface {
	Get(ctx context.Context, chatID string) ([]Message, error)
	Append(ctx context.Context, chatID string, msgs ...Message) error
	Clear(ctx context.Context, chatID string) error
}
