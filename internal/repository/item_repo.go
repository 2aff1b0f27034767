package repository

import (
	"context"
	"errors"

	"marketplace/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrItemNotFound   = errors.New("商品不存在")
	ErrStockNotEnough = errors.New("库存不足")
)

type ItemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) Create(ctx context.Context, tx *gorm.DB, item *model.Item) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(item).Error
}

// CreateIfAbsent 按名称去重写入，返回是否新建
func (r *ItemRepository) CreateIfAbsent(ctx context.Context, item *model.Item) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).
		Create(item)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *ItemRepository) GetByID(ctx context.Context, itemID int64) (*model.Item, error) {
	var item model.Item
	err := r.db.WithContext(ctx).Where("id = ?", itemID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

// GetByIDForUpdate 在事务内锁定商品行
func (r *ItemRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, itemID int64) (*model.Item, error) {
	var item model.Item
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", itemID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

// AdjustStock 调整限量商品库存，不限量商品不受影响。
// 扣减时带 stock >= ? 条件，库存永远不会被扣成负数。
func (r *ItemRepository) AdjustStock(ctx context.Context, tx *gorm.DB, itemID int64, delta int64) error {
	query := tx.WithContext(ctx).
		Model(&model.Item{}).
		Where("id = ? AND stock <> ?", itemID, model.UnlimitedStock)
	if delta < 0 {
		query = query.Where("stock >= ?", -delta)
	}

	result := query.Updates(map[string]interface{}{
		"stock":   gorm.Expr("stock + ?", delta),
		"version": gorm.Expr("version + 1"),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if delta < 0 {
			return ErrStockNotEnough
		}
		return ErrItemNotFound
	}
	return nil
}

type ItemFilter struct {
	Featured    bool
	Recommended bool
	Rank        model.Rank
}

func (r *ItemRepository) List(ctx context.Context, filter ItemFilter) ([]*model.Item, error) {
	var items []*model.Item
	query := r.db.WithContext(ctx).Model(&model.Item{})
	if filter.Featured {
		query = query.Where("is_featured = ?", true)
	}
	if filter.Recommended {
		query = query.Where("is_recommended = ?", true)
	}
	if filter.Rank != "" {
		query = query.Where("rank_required = ?", filter.Rank)
	}
	err := query.Order("price ASC, id ASC").Find(&items).Error
	return items, err
}
