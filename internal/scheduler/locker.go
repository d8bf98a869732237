package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker grants whole-tick mutual exclusion. TryLock never waits: ok is false
// when someone else holds the lock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// LocalLocker serializes ticks within one process.
type LocalLocker struct {
	mu sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{}
}

func (l *LocalLocker) TryLock(_ context.Context, _ string, _ time.Duration) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes ticks across every process sharing the Redis instance.
// The TTL bounds how long a crashed holder blocks others.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	unlock := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return unlock, true, nil
}

// NewRedisClient connects to addr and pings it. It returns nil when Redis is
// unreachable so callers can fall back to a LocalLocker.
func NewRedisClient(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
