// Package flash は一度だけ表示される通知メッセージを保存します。
package flash

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	LevelSuccess = "success"
	LevelError   = "error"
)

type Message struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// Store はセッションIDごとのメッセージキューです。Pop は取り出したメッセージを削除します。
type Store interface {
	Add(ctx context.Context, sessionID string, msg Message) error
	Pop(ctx context.Context, sessionID string) ([]Message, error)
	Clear(ctx context.Context, sessionID string) error
}

// RedisStore はメッセージをRedisのリストに保存します。
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store using the provided Redis client and TTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(sessionID string) string {
	return fmt.Sprintf("flash:%s", sessionID)
}

func (s *RedisStore) Add(ctx context.Context, sessionID string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode flash message: %w", err)
	}
	key := s.key(sessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Pop(ctx context.Context, sessionID string) ([]Message, error) {
	key := s.key(sessionID)
	var rng *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rng = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	raw, err := rng.Result()
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(raw))
	for _, item := range raw {
		var m Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("decode flash message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID)).Err()
}

// MemoryStore はRedisを使わない単一プロセス用のストアです。
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]memoryQueue
	now   func() time.Time
}

type memoryQueue struct {
	msgs      []Message
	expiresAt time.Time
}

// NewMemoryStore creates an in-process store whose queues expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, items: make(map[string]memoryQueue), now: time.Now}
}

func (s *MemoryStore) Add(_ context.Context, sessionID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.evictExpired(now)
	q := s.items[sessionID]
	q.msgs = append(q.msgs, msg)
	q.expiresAt = now.Add(s.ttl)
	s.items[sessionID] = q
	return nil
}

func (s *MemoryStore) Pop(_ context.Context, sessionID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.items[sessionID]
	delete(s.items, sessionID)
	if !ok || s.now().After(q.expiresAt) {
		return []Message{}, nil
	}
	return q.msgs, nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, sessionID)
	return nil
}

func (s *MemoryStore) evictExpired(now time.Time) {
	for k, q := range s.items {
		if now.After(q.expiresAt) {
			delete(s.items, k)
		}
	}
}
