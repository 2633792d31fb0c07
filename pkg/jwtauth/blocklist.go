package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blocklist は失効済みトークンのjtiを記録する。
type Blocklist interface {
	// Add はjtiを失効済みとして記録する。ttlが0の場合は無期限。
	Add(ctx context.Context, jti string, ttl time.Duration) error
	// Contains はjtiが失効済みかを返す。
	Contains(ctx context.Context, jti string) (bool, error)
}

// MemoryBlocklist はプロセス内メモリに失効情報を保持する。
type MemoryBlocklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryBlocklist は MemoryBlocklist を生成する。
func NewMemoryBlocklist() *MemoryBlocklist {
	return &MemoryBlocklist{entries: map[string]time.Time{}, now: time.Now}
}

// Add はjtiを記録する。
func (b *MemoryBlocklist) Add(_ context.Context, jti string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var until time.Time
	if ttl > 0 {
		until = b.now().Add(ttl)
	}
	b.entries[jti] = until
	return nil
}

// Contains はjtiが記録済みかを返す。期限切れの記録は削除する。
func (b *MemoryBlocklist) Contains(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.entries[jti]
	if !ok {
		return false, nil
	}
	if !until.IsZero() && b.now().After(until) {
		delete(b.entries, jti)
		return false, nil
	}
	return true, nil
}

// RedisBlocklist はRedisに失効情報を保持する。複数プロセスで失効状態を共有できる。
type RedisBlocklist struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBlocklist は RedisBlocklist を生成する。prefixが空なら "feliz:revoked:" を使う。
func NewRedisBlocklist(client redis.UniversalClient, prefix string) *RedisBlocklist {
	if prefix == "" {
		prefix = "feliz:revoked:"
	}
	return &RedisBlocklist{client: client, prefix: prefix}
}

// OpenRedisBlocklist はRedisのURLから RedisBlocklist を生成する。
func OpenRedisBlocklist(rawURL, prefix string) (*RedisBlocklist, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("RedisのURLの解析に失敗: %w", err)
	}
	return NewRedisBlocklist(redis.NewClient(opts), prefix), nil
}

func (b *RedisBlocklist) key(jti string) string {
	return b.prefix + jti
}

// Add はjtiを記録する。
func (b *RedisBlocklist) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if err := b.client.Set(ctx, b.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("Redisへの書き込みに失敗: %w", err)
	}
	return nil
}

// Contains はjtiが記録済みかを返す。
func (b *RedisBlocklist) Contains(ctx context.Context, jti string) (bool, error) {
	err := b.client.Get(ctx, b.key(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("Redisからの読み込みに失敗: %w", err)
	}
	return true, nil
}

// Close はRedisクライアントを閉じる。
func (b *RedisBlocklist) Close() error {
	return b.client.Close()
}
