package service

import (
	"context"

	"marketplace/internal/model"
)

// Locker 按 key 互斥，Acquire 成功后必须调用返回的 release
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// CatalogCache 商品列表缓存
type CatalogCache interface {
	GetItems(ctx context.Context) ([]*model.Item, bool)
	SetItems(ctx context.Context, items []*model.Item)
	Invalidate(ctx context.Context)
}

type noopCache struct{}

func (noopCache) GetItems(context.Context) ([]*model.Item, bool) { return nil, false }
func (noopCache) SetItems(context.Context, []*model.Item)         {}
func (noopCache) Invalidate(context.Context)                      {}
