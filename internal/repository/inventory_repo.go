package repository

import (
	"context"
	"errors"

	"marketplace/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInventoryNotEnough = errors.New("背包数量不足")

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// GetForUpdate 在事务内锁定背包行，不存在时返回 nil
func (r *InventoryRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, userID, itemID int64) (*model.InventoryEntry, error) {
	var entry model.InventoryEntry
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// Add 增加背包数量，首次购买时新建，返回增加后的数量
func (r *InventoryRepository) Add(ctx context.Context, tx *gorm.DB, userID, itemID, quantity int64) (int64, error) {
	entry, err := r.GetForUpdate(ctx, tx, userID, itemID)
	if err != nil {
		return 0, err
	}

	if entry == nil {
		entry = &model.InventoryEntry{
			UserID:   userID,
			ItemID:   itemID,
			Quantity: quantity,
		}
		if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
			return 0, err
		}
		return entry.Quantity, nil
	}

	err = tx.WithContext(ctx).
		Model(&model.InventoryEntry{}).
		Where("id = ?", entry.ID).
		Update("quantity", gorm.Expr("quantity + ?", quantity)).Error
	if err != nil {
		return 0, err
	}
	return entry.Quantity + quantity, nil
}

// Remove 减少背包数量，归零时删除该行，返回剩余数量
func (r *InventoryRepository) Remove(ctx context.Context, tx *gorm.DB, userID, itemID, quantity int64) (int64, error) {
	entry, err := r.GetForUpdate(ctx, tx, userID, itemID)
	if err != nil {
		return 0, err
	}
	if entry == nil || entry.Quantity < quantity {
		return 0, ErrInventoryNotEnough
	}

	remaining := entry.Quantity - quantity
	if remaining == 0 {
		if err := tx.WithContext(ctx).Delete(&model.InventoryEntry{}, entry.ID).Error; err != nil {
			return 0, err
		}
		return 0, nil
	}

	result := tx.WithContext(ctx).
		Model(&model.InventoryEntry{}).
		Where("id = ? AND quantity >= ?", entry.ID, quantity).
		Update("quantity", gorm.Expr("quantity - ?", quantity))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrInventoryNotEnough
	}
	return remaining, nil
}

// ListByUserID 背包列表，附带商品信息
func (r *InventoryRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.InventoryEntry, error) {
	var entries []*model.InventoryEntry
	err := r.db.WithContext(ctx).
		Preload("Item").
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}
