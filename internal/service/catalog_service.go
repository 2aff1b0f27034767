package service

import (
	"context"
	"errors"
	"fmt"

	"marketplace/internal/model"
	"marketplace/internal/repository"

	"gorm.io/gorm"
)

type CatalogService struct {
	itemRepo    *repository.ItemRepository
	accountRepo *repository.AccountRepository
	cache       CatalogCache
}

func NewCatalogService(db *gorm.DB, cache CatalogCache) *CatalogService {
	if cache == nil {
		cache = noopCache{}
	}
	return &CatalogService{
		itemRepo:    repository.NewItemRepository(db),
		accountRepo: repository.NewAccountRepository(db),
		cache:       cache,
	}
}

// ListItems 全部商品，优先读缓存
func (s *CatalogService) ListItems(ctx context.Context) ([]*model.Item, error) {
	if items, ok := s.cache.GetItems(ctx); ok {
		return items, nil
	}

	items, err := s.itemRepo.List(ctx, repository.ItemFilter{})
	if err != nil {
		return nil, storageError("查询商品列表失败", err)
	}

	s.cache.SetItems(ctx, items)
	return items, nil
}

func (s *CatalogService) GetItem(ctx context.Context, itemID int64) (*model.Item, error) {
	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, fmt.Errorf("%w: item_id=%d", ErrItemNotFound, itemID)
		}
		return nil, storageError("查询商品失败", err)
	}
	return item, nil
}

func (s *CatalogService) Featured(ctx context.Context) ([]*model.Item, error) {
	items, err := s.itemRepo.List(ctx, repository.ItemFilter{Featured: true})
	if err != nil {
		return nil, storageError("查询精选商品失败", err)
	}
	return items, nil
}

// Recommended 推荐商品，只返回与玩家当前等级相同的商品
func (s *CatalogService) Recommended(ctx context.Context, userID int64) ([]*model.Item, error) {
	account, err := s.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: user_id=%d", ErrAccountNotFound, userID)
		}
		return nil, storageError("查询账户失败", err)
	}

	items, err := s.itemRepo.List(ctx, repository.ItemFilter{Recommended: true, Rank: account.Rank})
	if err != nil {
		return nil, storageError("查询推荐商品失败", err)
	}
	return items, nil
}
