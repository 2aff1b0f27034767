package service

import (
	"path/filepath"
	"testing"

	"marketplace/internal/config"
	"marketplace/internal/infrastructure/database"
	"marketplace/internal/infrastructure/lock"
	"marketplace/internal/model"

	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "market.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })
	return db
}

func newMarket(t *testing.T, db *gorm.DB, mutate func(*config.Config)) *MarketService {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	return NewMarketService(db, cfg, lock.NewLocalLocker(), nil)
}

func createAccount(t *testing.T, db *gorm.DB, userID, balance int64, level int, rank model.Rank) {
	t.Helper()
	account := &model.Account{UserID: userID, Balance: balance, Level: level, Rank: rank}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
}

func createItem(t *testing.T, db *gorm.DB, item *model.Item) *model.Item {
	t.Helper()
	if item.RankRequired == "" {
		item.RankRequired = model.RankE
	}
	if item.LevelRequired == 0 {
		item.LevelRequired = 1
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}
	return item
}

func balanceOf(t *testing.T, db *gorm.DB, userID int64) int64 {
	t.Helper()
	var account model.Account
	if err := db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		t.Fatalf("load account: %v", err)
	}
	return account.Balance
}

func stockOf(t *testing.T, db *gorm.DB, itemID int64) int64 {
	t.Helper()
	var item model.Item
	if err := db.First(&item, itemID).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	return item.Stock
}

func ownedOf(t *testing.T, db *gorm.DB, userID, itemID int64) int64 {
	t.Helper()
	var entry model.InventoryEntry
	err := db.Where("user_id = ? AND item_id = ?", userID, itemID).Limit(1).Find(&entry).Error
	if err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	return entry.Quantity
}

func countRows(t *testing.T, db *gorm.DB, m interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(m).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// snapshot 所有表的完整内容，用来断言被拒绝的请求没有留下任何痕迹
type snapshot struct {
	Accounts     []model.Account
	Items        []model.Item
	Inventory    []model.InventoryEntry
	Transactions []model.Transaction
	Outbox       []model.OutboxMessage
}

func takeSnapshot(t *testing.T, db *gorm.DB) snapshot {
	t.Helper()
	var s snapshot
	for _, dst := range []interface{}{&s.Accounts, &s.Items, &s.Inventory, &s.Transactions, &s.Outbox} {
		if err := db.Order("id").Find(dst).Error; err != nil {
			t.Fatalf("snapshot: %v", err)
		}
	}
	return s
}
