package model

import (
	"time"
)

const (
	TransactionKindPurchase = "purchase" // 买入
	TransactionKindSale     = "sale"     // 卖回
)

// Transaction 商城交易流水表
//
// 只追加，不修改，不删除。每一笔成功的买入/卖出对应且仅对应一条流水，
// 被拒绝的请求不会留下任何记录。
type Transaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	ItemID        int64     `gorm:"index;not null" json:"item_id"`
	Kind          string    `gorm:"type:varchar(16);not null" json:"kind"`
	Quantity      int64     `gorm:"not null" json:"quantity"`
	UnitPrice     int64     `gorm:"not null" json:"unit_price"`
	TotalAmount   int64     `gorm:"not null" json:"total_amount"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Transaction) TableName() string {
	return "market_transaction"
}
