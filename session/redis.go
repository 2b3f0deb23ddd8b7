package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists the session in two Redis hashes:
// "<prefix>:session" for the persisted keys and "<prefix>:transient" for
// session-scoped values.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store using prefix as the key namespace. An empty
// prefix falls back to "gs".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "gs"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) sessionKey() string {
	return s.prefix + ":session"
}

func (s *RedisStore) transientKey() string {
	return s.prefix + ":transient"
}

func (s *RedisStore) Get(ctx context.Context) (Session, error) {
	m, err := s.redis.HGetAll(ctx, s.sessionKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return fromFields(m), nil
}

func (s *RedisStore) Set(ctx context.Context, sess Session) error {
	values := make(map[string]interface{}, 4)
	for k, v := range sess.fields() {
		values[k] = v
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(), s.transientKey())
		pipe.HSet(ctx, s.sessionKey(), values)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.sessionKey(), s.transientKey()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) SetTransient(ctx context.Context, key, value string) error {
	if err := s.redis.HSet(ctx, s.transientKey(), key, value).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Transient(ctx context.Context, key string) (string, bool, error) {
	v, err := s.redis.HGet(ctx, s.transientKey(), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return v, true, nil
}
