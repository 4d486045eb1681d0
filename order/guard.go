package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const guardKeyPrefix = "travel:order:inflight:"

// Guard marks an order key as in flight. Acquire reports false when the key
// is already held; holders must Release when their call completes.
type Guard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisGuard shares in-flight keys between instances. The TTL bounds how
// long a crashed holder can block a key.
type RedisGuard struct {
	client *redis.Client
}

func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, guardKeyPrefix+key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire order guard: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, guardKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release order guard: %w", err)
	}
	return nil
}

// MemoryGuard is a single-process Guard.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{
		held: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if expires, ok := g.held[key]; ok && now.Before(expires) {
		return false, nil
	}
	g.held[key] = now.Add(ttl)
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.held, key)
	return nil
}
