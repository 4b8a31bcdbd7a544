package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"zerolag/internal/domain"
	"zerolag/internal/kv"
)

const DefaultRedisPrefix = "zerolag:challenge:"

// RedisStore keeps challenges in Redis. Keys with an expiry are given a
// matching PX so Redis drops stale challenges on its own.
type RedisStore struct {
	Client *redis.Client
	Prefix string
	Now    func() time.Time
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{Client: client, Prefix: prefix, Now: time.Now}
}

func (s *RedisStore) key(identity string) string {
	return s.Prefix + domain.CanonicalIdentity(identity)
}

func (s *RedisStore) Put(ctx context.Context, identity string, c domain.Challenge) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode challenge: %w", err)
	}
	var ttl time.Duration
	if !c.ExpiresAt.IsZero() {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		ttl = c.ExpiresAt.Sub(now())
		if ttl <= 0 {
			// Already stale; keep it briefly so Verify reports expiry rather than absence.
			ttl = time.Second
		}
	}
	if err := s.Client.Set(ctx, s.key(identity), data, ttl).Err(); err != nil {
		return &kv.StorageError{Op: "redis set", Err: err}
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, identity string) (domain.Challenge, bool, error) {
	raw, err := s.Client.Get(ctx, s.key(identity)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Challenge{}, false, nil
	}
	if err != nil {
		return domain.Challenge{}, false, &kv.StorageError{Op: "redis get", Err: err}
	}
	var c domain.Challenge
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.Challenge{}, false, fmt.Errorf("decode challenge: %w", err)
	}
	return c, true, nil
}

func (s *RedisStore) Clear(ctx context.Context, identity string) error {
	if err := s.Client.Del(ctx, s.key(identity)).Err(); err != nil {
		return &kv.StorageError{Op: "redis del", Err: err}
	}
	return nil
}
