package sessions

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/docuchat/backend/internal/platform/envutil"
)

const shardCount = 16

type memoryShard struct {
	mu       sync.Mutex
	sessions map[string][]Message
}

// MemoryStore is the default session store: a sharded map so chats
// hashing to different shards never contend.
type MemoryStore struct {
	shards      [shardCount]*memoryShard
	maxMessages int
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{maxMessages: historyLimit()}
	for i := range s.shards {
		s.shards[i] = &memoryShard{sessions: make(map[string][]Message)}
	}
	return s
}

func historyLimit() int {
	limit := envutil.Int("SESSION_MAX_MESSAGES", 20)
	if limit <= 0 {
		limit = 20
	}
	return limit
}

func (s *MemoryStore) shardFor(chatID string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(chatID))
	return s.shards[h.Sum32()%shardCount]
}

func (s *MemoryStore) Get(_ context.Context, chatID string) ([]Message, error) {
	shard := s.shardFor(chatID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	stored := shard.sessions[chatID]
	out := make([]Message, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, chatID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	shard := s.shardFor(chatID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	history := append(shard.sessions[chatID], msgs...)
	if len(history) > s.maxMessages {
		history = history[len(history)-s.maxMessages:]
	}
	shard.sessions[chatID] = history
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, chatID string) error {
	shard := s.shardFor(chatID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	delete(shard.sessions, chatID)
	return nil
}
