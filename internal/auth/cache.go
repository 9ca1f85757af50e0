// AngelaMos | 2026
// cache.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStaleGeneration is returned by Remember when the user's sessions were
// invalidated after the caller read the generation.
var ErrStaleGeneration = errors.New("session generation changed")

const generationTTL = 30 * 24 * time.Hour

// SessionCache mirrors the hash of each user's current session token so the
// identity middleware can skip the database on the hot path. Every
// invalidation bumps a per-user generation; an entry is only written while
// the generation the writer observed is still current.
type SessionCache interface {
	Generation(ctx context.Context, userID string) (int64, error)
	Remember(ctx context.Context, userID, tokenHash string, gen int64, ttl time.Duration) error
	Lookup(ctx context.Context, userID string) (string, bool, error)
	Invalidate(ctx context.Context, userID string) error
}

type redisSessionCache struct {
	client *redis.Client
}

func NewRedisSessionCache(client *redis.Client) SessionCache {
	return &redisSessionCache{client: client}
}

func sessionKey(userID string) string {
	return "session:" + userID
}

func generationKey(userID string) string {
	return "session-gen:" + userID
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, c getter, userID string) (int64, error) {
	gen, err := c.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *redisSessionCache) Generation(ctx context.Context, userID string) (int64, error) {
	gen, err := readGeneration(ctx, c.client, userID)
	if err != nil {
		return 0, fmt.Errorf("read session generation: %w", err)
	}
	return gen, nil
}

func (c *redisSessionCache) Remember(
	ctx context.Context,
	userID, tokenHash string,
	gen int64,
	ttl time.Duration,
) error {
	if ttl <= 0 {
		return nil
	}

	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx, userID)
		if err != nil {
			return err
		}
		if current != gen {
			return ErrStaleGeneration
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, sessionKey(userID), tokenHash, ttl)
			return nil
		})
		return err
	}, generationKey(userID))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStaleGeneration), errors.Is(err, redis.TxFailedErr):
		return ErrStaleGeneration
	default:
		return fmt.Errorf("cache session: %w", err)
	}
}

func (c *redisSessionCache) Lookup(
	ctx context.Context,
	userID string,
) (string, bool, error) {
	hash, err := c.client.Get(ctx, sessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup session: %w", err)
	}

	return hash, true, nil
}

func (c *redisSessionCache) Invalidate(ctx context.Context, userID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(userID))
		pipe.Expire(ctx, generationKey(userID), generationTTL)
		pipe.Del(ctx, sessionKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

type noopSessionCache struct{}

// NoopSessionCache always misses, sending every lookup to the database.
func NoopSessionCache() SessionCache {
	return noopSessionCache{}
}

func (noopSessionCache) Generation(context.Context, string) (int64, error) {
	return 0, nil
}

func (noopSessionCache) Remember(context.Context, string, string, int64, time.Duration) error {
	return nil
}

func (noopSessionCache) Lookup(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (noopSessionCache) Invalidate(context.Context, string) error {
	return nil
}
