package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one JSON record per provider under prefix+name. The broker
// is the only writer, so a process-local mutex is enough to serialize the
// read-merge-write cycle; no WATCH/MULTI needed.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	mu     sync.Mutex
	now    func() time.Time
}

// NewRedisStore wraps an existing client. prefix defaults to "tokenbroker:".
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "tokenbroker:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(name string) string { return s.prefix + name }

func (s *RedisStore) get(ctx context.Context, name string) (json.RawMessage, error) {
	b, err := s.rdb.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key(name), err)
	}
	return b, nil
}

func (s *RedisStore) set(ctx context.Context, name string, raw json.RawMessage) error {
	if err := s.rdb.Set(ctx, s.key(name), []byte(raw), 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key(name), err)
	}
	return nil
}

func (s *RedisStore) record(ctx context.Context, provider string) (*Record, error) {
	raw, err := s.get(ctx, provider)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record %q: %w", provider, err)
	}
	return &rec, nil
}

func (s *RedisStore) SaveOAuthToken(ctx context.Context, provider string, upd Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec Record
	raw, err := s.get(ctx, provider)
	if err != nil && err != ErrNotFound {
		return err
	}
	if err == nil {
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode record %q: %w", provider, err)
		}
	}
	rec.Merge(upd, s.now())
	out, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("encode record %q: %w", provider, err)
	}
	return s.set(ctx, provider, out)
}

func (s *RedisStore) SaveOpaqueToken(ctx context.Context, key string, raw json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(ctx, key, raw)
}

func (s *RedisStore) IsValid(ctx context.Context, provider string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.record(ctx, provider)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Valid(s.now()), nil
}

func (s *RedisStore) AccessToken(ctx context.Context, provider string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.record(ctx, provider)
	if err != nil {
		return "", err
	}
	if rec.AccessToken == "" {
		return "", ErrNotFound
	}
	return rec.AccessToken, nil
}

func (s *RedisStore) RefreshToken(ctx context.Context, provider string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.record(ctx, provider)
	if err != nil {
		return "", err
	}
	if rec.RefreshToken == "" {
		return "", ErrNotFound
	}
	return rec.RefreshToken, nil
}

func (s *RedisStore) OpaqueResult(ctx context.Context, key string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}
	return opaqueResult(raw)
}
