package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// ViewCache 以 JSON 存储的只读视图缓存，ttl 为 0 表示不过期。
// 读写失败只记录日志，缓存不可用时调用方回源数据库。
type ViewCache[T any] struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewViewCache[T any](client redis.Cmdable, ttl time.Duration) *ViewCache[T] {
	return &ViewCache[T]{client: client, ttl: ttl}
}

func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[Cache] 读取失败: key=%s, err=%v", key, err)
		}
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		log.Printf("[Cache] 反序列化失败: key=%s, err=%v", key, err)
		return nil, false
	}
	return &v, true
}

func (c *ViewCache[T]) Set(ctx context.Context, key string, value *T) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("[Cache] 序列化失败: key=%s, err=%v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("[Cache] 写入失败: key=%s, err=%v", key, err)
	}
}

func (c *ViewCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		log.Printf("[Cache] 删除失败: key=%s, err=%v", key, err)
	}
}
