package cache

import (
	"context"
	"time"

	"marketplace/internal/model"

	"github.com/go-redis/redis/v8"
)

const catalogKey = "market:catalog:items"

// CatalogCache 缓存完整商品列表，任何库存变化后整体失效
type CatalogCache struct {
	view *ViewCache[[]*model.Item]
}

func NewCatalogCache(client redis.Cmdable, ttl time.Duration) *CatalogCache {
	return &CatalogCache{view: NewViewCache[[]*model.Item](client, ttl)}
}

func (c *CatalogCache) GetItems(ctx context.Context) ([]*model.Item, bool) {
	items, ok := c.view.Get(ctx, catalogKey)
	if !ok {
		return nil, false
	}
	return *items, true
}

func (c *CatalogCache) SetItems(ctx context.Context, items []*model.Item) {
	c.view.Set(ctx, catalogKey, &items)
}

func (c *CatalogCache) Invalidate(ctx context.Context) {
	c.view.Delete(ctx, catalogKey)
}
