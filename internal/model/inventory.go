package model

import (
	"time"
)

// InventoryEntry 玩家背包，(user_id, item_id) 唯一，数量归零时删除该行
type InventoryEntry struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"uniqueIndex:uk_user_item;not null" json:"user_id"`
	ItemID    int64     `gorm:"uniqueIndex:uk_user_item;not null" json:"item_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	Item      *Item     `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (InventoryEntry) TableName() string {
	return "inventory_entry"
}
