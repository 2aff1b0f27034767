package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 交易事件类型，与客户端订阅的通知名一致
const (
	EventItemPurchased = "item_purchased"
	EventItemSold      = "item_sold"
)

// OutboxMessage 与交易在同一个事务中写入，由 OutboxSender 异步投递到 Kafka
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// TradeEvent 交易事件的消息体
type TradeEvent struct {
	Event         string    `json:"event"`
	TransactionNo string    `json:"transaction_no"`
	UserID        int64     `json:"user_id"`
	ItemID        int64     `json:"item_id"`
	ItemName      string    `json:"name"`
	Quantity      int64     `json:"quantity"`
	TotalAmount   int64     `json:"total_amount"`
	Balance       int64     `json:"balance"`
	OccurredAt    time.Time `json:"occurred_at"`
}
