package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMemory stores the conversation log in a Redis list, one JSON-encoded
// turn per element. It lets conversation history survive process restarts
// while keeping the reset-on-scope-switch semantics of Memory.
type RedisMemory struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisMemory creates a Redis-backed memory for the given session ID.
// A zero ttl keeps the log until it is reset.
func NewRedisMemory(client *redis.Client, sessionID string, ttl time.Duration) *RedisMemory {
	return &RedisMemory{
		client: client,
		key:    "chat:memory:" + sessionID,
		ttl:    ttl,
	}
}

// Append records a completed turn.
func (m *RedisMemory) Append(ctx context.Context, turn Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	if err := m.client.RPush(ctx, m.key, data).Err(); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	if m.ttl > 0 {
		if err := m.client.Expire(ctx, m.key, m.ttl).Err(); err != nil {
			return fmt.Errorf("refresh memory ttl: %w", err)
		}
	}
	return nil
}

// Turns returns all recorded turns, oldest first.
func (m *RedisMemory) Turns(ctx context.Context) ([]Turn, error) {
	items, err := m.client.LRange(ctx, m.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}

	turns := make([]Turn, 0, len(items))
	for _, item := range items {
		var turn Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Reset discards all recorded turns.
func (m *RedisMemory) Reset(ctx context.Context) error {
	if err := m.client.Del(ctx, m.key).Err(); err != nil {
		return fmt.Errorf("reset memory: %w", err)
	}
	return nil
}
