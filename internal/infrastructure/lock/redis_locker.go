package lock

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	defaultRetryInterval = 20 * time.Millisecond
	unlockTimeout        = 2 * time.Second
)

// RedisLocker 多实例部署时使用的账户锁
type RedisLocker struct {
	client        redis.Cmdable
	ttl           time.Duration
	retryInterval time.Duration
}

func NewRedisLocker(client redis.Cmdable, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: defaultRetryInterval,
	}
}

// Acquire 最多等待一个 ttl，value 使用随机 uuid 区分持有者
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	dl := NewDistributedLock(l.client, key, uuid.NewString(), l.ttl)

	maxRetries := int(l.ttl / l.retryInterval)
	if maxRetries < 1 {
		maxRetries = 1
	}
	if err := dl.Lock(ctx, l.retryInterval, maxRetries); err != nil {
		return nil, err
	}

	return func() {
		// 请求 ctx 可能已经取消，释放锁使用独立的超时
		unlockCtx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		defer cancel()
		released, err := dl.Unlock(unlockCtx)
		if err != nil {
			log.Printf("[Lock] 释放锁失败: key=%s, err=%v", key, err)
			return
		}
		if !released {
			log.Printf("[Lock] 锁已过期，未删除: key=%s", key)
		}
	}, nil
}
