package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"borsapulse/internal/config"
)

// Locker serializes writers per instrument. Lock blocks until the key is
// free or ctx is done; the returned func releases the key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NewLocker builds the locker selected by cfg.
func NewLocker(ctx context.Context, cfg config.LockConfig, logger *slog.Logger) (Locker, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewKeyedMutex(), nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return NewRedisLocker(client, cfg.TTL, cfg.RetryInterval, logger), nil
	default:
		return nil, fmt.Errorf("unsupported lock backend %q", cfg.Backend)
	}
}

// KeyedMutex is an in-process Locker
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*lockSlot)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	slot, ok := k.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		k.slots[key] = slot
	}
	slot.refs++
	k.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			k.release(key, slot)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, slot *lockSlot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(k.slots, key)
	}
}

// releaseScript deletes the lock only when it still holds our token
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every process using the same Redis.
// Keys expire after ttl so a crashed holder cannot block forever.
type RedisLocker struct {
	client *goredis.Client
	ttl    time.Duration
	retry  time.Duration
	prefix string
	logger *slog.Logger
}

// NewRedisLocker creates a Redis-backed Locker
func NewRedisLocker(client *goredis.Client, ttl, retry time.Duration, logger *slog.Logger) *RedisLocker {
	if logger == nil {
		logger = slog.Default()
	}
	if retry <= 0 {
		retry = 100 * time.Millisecond
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  retry,
		prefix: "borsapulse:lock:",
		logger: logger.With(slog.String("component", "redis_locker")),
	}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := r.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
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

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
				r.logger.Warn("failed to release lock",
					slog.String("key", key),
					slog.String("error", err.Error()))
			}
		})
	}, nil
}

// Close closes the underlying client
func (r *RedisLocker) Close() error {
	return r.client.Close()
}
