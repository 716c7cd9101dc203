package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when the stored token matches, so a
// holder whose TTL expired cannot release a lock someone else now owns.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

// RedisEntityLocker serializes per-entity mutations across instances with a
// SET NX lease. In-process callers get the same Acquire/release contract as
// the local keyed locker.
type RedisEntityLocker struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	retryWait time.Duration
}

func NewRedisEntityLocker(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisEntityLocker {
	if keyPrefix == "" {
		keyPrefix = "escrow:lock:"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisEntityLocker{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		retryWait: 25 * time.Millisecond,
	}
}

func (l *RedisEntityLocker) Acquire(ctx context.Context, key string) (func(), error) {
	fullKey := l.keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryWait):
		}
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.client.Eval(releaseCtx, releaseScript, []string{fullKey}, token).Err()
	}
	return release, nil
}
