package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docuchat/backend/internal/platform/envutil"
	"github.com/docuchat/backend/internal/platform/logger"
)

// RedisStore keeps session history in a Redis list per chat, selected
// when REDIS_ADDR is set so histories survive restarts and are shared
// across replicas.
type RedisStore struct {
	log         *logger.Logger
	client      *redis.Client
	maxMessages int
	ttl         time.Duration
}

func NewRedisStore(ctx context.Context, log *logger.Logger) (*RedisStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := envutil.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: envutil.String("REDIS_PASSWORD", ""),
		DB:       envutil.Int("REDIS_DB", 0),
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}

	ttlHours := envutil.Int("SESSION_TTL_HOURS", 24)
	if ttlHours <= 0 {
		ttlHours = 24
	}

	return &RedisStore{
		log:         log.With("service", "RedisSessionStore"),
		client:      client,
		maxMessages: historyLimit(),
		ttl:         time.Duration(ttlHours) * time.Hour,
	}, nil
}

func sessionKey(chatID string) string {
	return "session:" + chatID
}

func (s *RedisStore) Get(ctx context.Context, chatID string) ([]Message, error) {
	raw, err := s.client.LRange(ctx, sessionKey(chatID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	out := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			s.log.Warn("dropping undecodable session entry", "chat_id", chatID, "error", err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *RedisStore) Append(ctx context.Context, chatID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	encoded := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		raw, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode session entry: %w", err)
		}
		encoded = append(encoded, raw)
	}

	key := sessionKey(chatID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, encoded...)
	pipe.LTrim(ctx, key, int64(-s.maxMessages), -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, chatID string) error {
	if err := s.client.Del(ctx, sessionKey(chatID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
