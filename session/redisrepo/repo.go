package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-elearning-portal/session"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures talking to redis
var ErrRedisUnavailable = errors.New("redis unavailable")

// Repo keeps sealed sessions in redis, one key per slot.
type Repo struct {
	redis  redis.UniversalClient
	prefix string
}

var _ session.Repo = (*Repo)(nil)

// New creates a redis backed session Repo. prefix namespaces the keys.
func New(client redis.UniversalClient, prefix string) *Repo {
	return &Repo{redis: client, prefix: prefix}
}

func (r *Repo) k(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

// Upsert stores the sealed session; a zero ttl keeps it until deleted.
func (r *Repo) Upsert(ctx context.Context, key string, sealed []byte, ttl time.Duration) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	if err := r.redis.Set(ctx, r.k(key), sealed, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.redis.Get(ctx, r.k(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return data, nil
}

func (r *Repo) Delete(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, r.k(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
