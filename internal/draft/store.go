package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avstrong/hotel/internal/apperr"
	"github.com/redis/go-redis/v9"
)

// Store keeps drafts by session id. Get returns apperr.ErrNotFound for unknown sessions.
type Store interface {
	Get(ctx context.Context, sessionID string) (Draft, error)
	Save(ctx context.Context, sessionID string, d Draft) error
	Delete(ctx context.Context, sessionID string) error
}

type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[string]Draft
}

func NewMemoryStore() *MemoryStore {
	//nolint:exhaustruct
	return &MemoryStore{drafts: make(map[string]Draft)}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drafts[sessionID]
	if !ok {
		return Draft{}, fmt.Errorf("draft %v: %w", sessionID, apperr.ErrNotFound)
	}

	return d.clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, d Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drafts[sessionID] = d.clone()

	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.drafts, sessionID)

	return nil
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStore keeps drafts as JSON values that expire after TTL of inactivity.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, conf RedisConfig) (*RedisStore, error) {
	//nolint:exhaustruct
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping redis at %v: %w", conf.Addr, err)
	}

	return &RedisStore{client: client, ttl: conf.TTL}, nil
}

func key(sessionID string) string {
	return "hotel:draft:" + sessionID
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (Draft, error) {
	data, err := s.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Draft{}, fmt.Errorf("draft %v: %w", sessionID, apperr.ErrNotFound)
	}

	if err != nil {
		return Draft{}, apperr.NewTransientIOError("get draft", err)
	}

	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return Draft{}, fmt.Errorf("decode draft %v: %w", sessionID, err)
	}

	return d, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, d Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft %v: %w", sessionID, err)
	}

	if err := s.client.Set(ctx, key(sessionID), data, s.ttl).Err(); err != nil {
		return apperr.NewTransientIOError("save draft", err)
	}

	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return apperr.NewTransientIOError("delete draft", err)
	}

	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
