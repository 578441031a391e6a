package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tilsley/mdcombine/apps/mdcombine/internal/combine"
)

const (
	redisLockPrefix   = "mdcombine:lock:"
	redisLockPollWait = 50 * time.Millisecond
)

var _ combine.Locker = (*RedisLocker)(nil)

// unlockScript deletes the key only while it still holds our token, so a lock
// that expired and was taken by another process is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lock shared by every process pointed at the same Redis.
// Locks expire after ttl so a crashed holder cannot block others forever.
type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

// NewRedisLocker creates a RedisLocker.
func NewRedisLocker(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: ttl, log: log}
}

// Lock polls SET NX until the key is acquired or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisLockPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(redisLockPollWait)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %q: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		// The caller's context may already be cancelled; release regardless.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := unlockScript.Run(ctx, l.rdb, []string{redisKey}, token).Err(); err != nil {
			l.log.Warn("release lock failed", "key", key, "error", err)
		}
	}, nil
}
