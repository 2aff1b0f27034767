package model

import (
	"time"
)

// Account 玩家账户表
// 金币余额只由交易服务修改，等级和猎人等级由成长系统维护
type Account struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"` // 金币
	Level     int       `gorm:"not null;default:1" json:"level"`
	Rank      Rank      `gorm:"type:varchar(1);not null;default:E" json:"rank"`
	Version   int       `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

func (a *Account) Progress() Progress {
	return Progress{Level: a.Level, Rank: a.Rank}
}
