package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// observeScript compares the incoming stamp with the stored one and keeps the
// larger. Running it server-side keeps the compare-and-set atomic across
// multiple instances sharing the same Redis.
var observeScript = redis.NewScript(`
local prev = tonumber(redis.call('GET', KEYS[1]))
local stamp = tonumber(ARGV[1])
if prev and prev >= stamp then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

// RedisSnapshotGuard implements SnapshotGuard on Redis. Suitable when more
// than one instance receives webhook traffic behind a load balancer.
type RedisSnapshotGuard struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisSnapshotGuard connects to Redis and verifies the connection.
func NewRedisSnapshotGuard(addr, password string, db int, ttl time.Duration) (*RedisSnapshotGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSnapshotGuardWithClient(client, "", ttl), nil
}

// NewRedisSnapshotGuardWithClient wraps an existing client. Useful for tests
// and for sharing one client across components.
func NewRedisSnapshotGuardWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisSnapshotGuard {
	if keyPrefix == "" {
		keyPrefix = "sync:snapshot:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSnapshotGuard{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Check reports whether the stamp would be accepted, without storing it.
func (g *RedisSnapshotGuard) Check(ctx context.Context, key string, stamp time.Time) (bool, error) {
	prev, err := g.client.Get(ctx, g.keyPrefix+key).Int64()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read snapshot stamp: %w", err)
	}
	return stamp.UnixMilli() > prev, nil
}

// Observe accepts the stamp when it is strictly newer than the stored one.
func (g *RedisSnapshotGuard) Observe(ctx context.Context, key string, stamp time.Time) (bool, error) {
	fresh, err := observeScript.Run(ctx, g.client,
		[]string{g.keyPrefix + key},
		stamp.UnixMilli(),
		g.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to record snapshot stamp: %w", err)
	}
	return fresh == 1, nil
}

// Close closes the underlying Redis client.
func (g *RedisSnapshotGuard) Close() error {
	return g.client.Close()
}

var _ SnapshotGuard = (*RedisSnapshotGuard)(nil)
