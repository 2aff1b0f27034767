package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/metrics"
	"marketplace/internal/model"
	"marketplace/internal/repository"
	"marketplace/pkg/idgen"

	"gorm.io/gorm"
)

// AccountLockKey 同一账户的买卖在这把锁上串行
func AccountLockKey(userID int64) string {
	return fmt.Sprintf("market:lock:account:%d", userID)
}

type MarketService struct {
	db              *gorm.DB
	locker          Locker
	cache           CatalogCache
	sellBackPercent int64
	outboxTopic     string
	accountRepo     *repository.AccountRepository
	itemRepo        *repository.ItemRepository
	inventoryRepo   *repository.InventoryRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

// NewMarketService cache 可以为 nil，locker 不能为 nil
func NewMarketService(db *gorm.DB, cfg *config.Config, locker Locker, cache CatalogCache) *MarketService {
	if cache == nil {
		cache = noopCache{}
	}
	return &MarketService{
		db:              db,
		locker:          locker,
		cache:           cache,
		sellBackPercent: cfg.Business.SellBackPercent,
		outboxTopic:     cfg.OutboxTopic(),
		accountRepo:     repository.NewAccountRepository(db),
		itemRepo:        repository.NewItemRepository(db),
		inventoryRepo:   repository.NewInventoryRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

// TradeResult 一次成功交易后的状态
type TradeResult struct {
	TransactionNo     string `json:"transaction_no"`
	Kind              string `json:"kind"`
	ItemID            int64  `json:"item_id"`
	ItemName          string `json:"name"`
	Quantity          int64  `json:"quantity"`
	UnitPrice         int64  `json:"unit_price"`
	TotalAmount       int64  `json:"total_amount"`
	Balance           int64  `json:"balance"`
	Stock             int64  `json:"stock"`
	Unlimited         bool   `json:"unlimited"`
	InventoryQuantity int64  `json:"inventory_quantity"`
}

// SaleUnitPrice 卖回单价，向下取整
func SaleUnitPrice(price, percent int64) int64 {
	return price/100*percent + price%100*percent/100
}

func (s *MarketService) Purchase(ctx context.Context, userID, itemID, quantity int64) (*TradeResult, error) {
	start := time.Now()
	result, err := s.purchase(ctx, userID, itemID, quantity)
	s.observe(model.TransactionKindPurchase, err, start)
	return result, err
}

func (s *MarketService) Sell(ctx context.Context, userID, itemID, quantity int64) (*TradeResult, error) {
	start := time.Now()
	result, err := s.sell(ctx, userID, itemID, quantity)
	s.observe(model.TransactionKindSale, err, start)
	return result, err
}

func (s *MarketService) purchase(ctx context.Context, userID, itemID, quantity int64) (*TradeResult, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity=%d", ErrInvalidQuantity, quantity)
	}

	release, err := s.locker.Acquire(ctx, AccountLockKey(userID))
	if err != nil {
		return nil, storageError("获取账户锁失败", err)
	}
	defer release()

	var result *TradeResult
	var stockChanged bool

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 加锁顺序固定为 账户 -> 商品 -> 背包，校验顺序另行决定
		account, accountErr := s.accountRepo.GetByUserIDForUpdate(ctx, tx, userID)
		if accountErr != nil && !errors.Is(accountErr, repository.ErrAccountNotFound) {
			return fmt.Errorf("查询账户失败: %w", accountErr)
		}

		item, err := s.itemRepo.GetByIDForUpdate(ctx, tx, itemID)
		if err != nil {
			if errors.Is(err, repository.ErrItemNotFound) {
				return fmt.Errorf("%w: item_id=%d", ErrItemNotFound, itemID)
			}
			return fmt.Errorf("查询商品失败: %w", err)
		}

		if item.IsStockLimited() && item.Stock < quantity {
			return fmt.Errorf("%w: 剩余 %d，需要 %d", ErrInsufficientStock, item.Stock, quantity)
		}

		if accountErr != nil {
			return fmt.Errorf("%w: user_id=%d", ErrAccountNotFound, userID)
		}

		unmet, err := model.FirstUnmet(item.Requirements(), account.Progress())
		if err != nil {
			return err
		}
		if unmet != nil {
			return fmt.Errorf("%w: %s", ErrRequirementNotMet, unmet)
		}

		if item.Price > 0 && quantity > math.MaxInt64/item.Price {
			return fmt.Errorf("%w: 总价溢出", ErrInsufficientFunds)
		}
		total := item.Price * quantity
		if account.Balance < total {
			return fmt.Errorf("%w: 余额 %d，需要 %d", ErrInsufficientFunds, account.Balance, total)
		}

		if err := s.accountRepo.Deduct(ctx, tx, userID, total); err != nil {
			if errors.Is(err, repository.ErrBalanceNotEnough) {
				return ErrInsufficientFunds
			}
			return fmt.Errorf("扣减金币失败: %w", err)
		}

		stock := item.Stock
		if item.IsStockLimited() {
			if err := s.itemRepo.AdjustStock(ctx, tx, itemID, -quantity); err != nil {
				if errors.Is(err, repository.ErrStockNotEnough) {
					return ErrInsufficientStock
				}
				return fmt.Errorf("扣减库存失败: %w", err)
			}
			stock -= quantity
			stockChanged = true
		}

		owned, err := s.inventoryRepo.Add(ctx, tx, userID, itemID, quantity)
		if err != nil {
			return fmt.Errorf("写入背包失败: %w", err)
		}

		trans := &model.Transaction{
			TransactionNo: idgen.GenerateTradeNo(idgen.PrefixPurchase),
			UserID:        userID,
			ItemID:        itemID,
			Kind:          model.TransactionKindPurchase,
			Quantity:      quantity,
			UnitPrice:     item.Price,
			TotalAmount:   total,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance - total,
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		if err := s.enqueue(ctx, tx, model.EventItemPurchased, trans, item); err != nil {
			return err
		}

		result = &TradeResult{
			TransactionNo:     trans.TransactionNo,
			Kind:              trans.Kind,
			ItemID:            itemID,
			ItemName:          item.Name,
			Quantity:          quantity,
			UnitPrice:         item.Price,
			TotalAmount:       total,
			Balance:           trans.BalanceAfter,
			Stock:             stock,
			Unlimited:         !item.IsStockLimited(),
			InventoryQuantity: owned,
		}
		return nil
	})
	if err != nil {
		return nil, storageError("购买事务失败", err)
	}

	if stockChanged {
		s.cache.Invalidate(ctx)
	}

	log.Printf("[Market] 购买成功: transactionNo=%s, userID=%d, itemID=%d, quantity=%d, total=%d",
		result.TransactionNo, userID, itemID, quantity, result.TotalAmount)

	return result, nil
}

func (s *MarketService) sell(ctx context.Context, userID, itemID, quantity int64) (*TradeResult, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity=%d", ErrInvalidQuantity, quantity)
	}

	release, err := s.locker.Acquire(ctx, AccountLockKey(userID))
	if err != nil {
		return nil, storageError("获取账户锁失败", err)
	}
	defer release()

	var result *TradeResult
	var stockChanged bool

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, accountErr := s.accountRepo.GetByUserIDForUpdate(ctx, tx, userID)
		if accountErr != nil && !errors.Is(accountErr, repository.ErrAccountNotFound) {
			return fmt.Errorf("查询账户失败: %w", accountErr)
		}

		item, itemErr := s.itemRepo.GetByIDForUpdate(ctx, tx, itemID)
		if itemErr != nil && !errors.Is(itemErr, repository.ErrItemNotFound) {
			return fmt.Errorf("查询商品失败: %w", itemErr)
		}

		entry, err := s.inventoryRepo.GetForUpdate(ctx, tx, userID, itemID)
		if err != nil {
			return fmt.Errorf("查询背包失败: %w", err)
		}

		if entry == nil || entry.Quantity < quantity {
			var owned int64
			if entry != nil {
				owned = entry.Quantity
			}
			return fmt.Errorf("%w: 持有 %d，出售 %d", ErrInsufficientInventory, owned, quantity)
		}
		if itemErr != nil {
			return fmt.Errorf("%w: item_id=%d", ErrItemNotFound, itemID)
		}
		if accountErr != nil {
			return fmt.Errorf("%w: user_id=%d", ErrAccountNotFound, userID)
		}

		unit := SaleUnitPrice(item.Price, s.sellBackPercent)
		if unit > 0 && quantity > math.MaxInt64/unit {
			return fmt.Errorf("%w: 金额溢出", ErrInvalidQuantity)
		}
		credit := unit * quantity
		if account.Balance > math.MaxInt64-credit {
			return fmt.Errorf("%w: 余额溢出", ErrInvalidQuantity)
		}

		if err := s.accountRepo.Increase(ctx, tx, userID, credit); err != nil {
			return fmt.Errorf("增加金币失败: %w", err)
		}

		remaining, err := s.inventoryRepo.Remove(ctx, tx, userID, itemID, quantity)
		if err != nil {
			if errors.Is(err, repository.ErrInventoryNotEnough) {
				return ErrInsufficientInventory
			}
			return fmt.Errorf("扣减背包失败: %w", err)
		}

		stock := item.Stock
		if item.IsStockLimited() {
			if err := s.itemRepo.AdjustStock(ctx, tx, itemID, quantity); err != nil {
				return fmt.Errorf("回补库存失败: %w", err)
			}
			stock += quantity
			stockChanged = true
		}

		trans := &model.Transaction{
			TransactionNo: idgen.GenerateTradeNo(idgen.PrefixSale),
			UserID:        userID,
			ItemID:        itemID,
			Kind:          model.TransactionKindSale,
			Quantity:      quantity,
			UnitPrice:     unit,
			TotalAmount:   credit,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance + credit,
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		if err := s.enqueue(ctx, tx, model.EventItemSold, trans, item); err != nil {
			return err
		}

		result = &TradeResult{
			TransactionNo:     trans.TransactionNo,
			Kind:              trans.Kind,
			ItemID:            itemID,
			ItemName:          item.Name,
			Quantity:          quantity,
			UnitPrice:         unit,
			TotalAmount:       credit,
			Balance:           trans.BalanceAfter,
			Stock:             stock,
			Unlimited:         !item.IsStockLimited(),
			InventoryQuantity: remaining,
		}
		return nil
	})
	if err != nil {
		return nil, storageError("出售事务失败", err)
	}

	if stockChanged {
		s.cache.Invalidate(ctx)
	}

	log.Printf("[Market] 出售成功: transactionNo=%s, userID=%d, itemID=%d, quantity=%d, credit=%d",
		result.TransactionNo, userID, itemID, quantity, result.TotalAmount)

	return result, nil
}

// enqueue 在交易事务内写入 outbox，未开启 Kafka 时跳过
func (s *MarketService) enqueue(ctx context.Context, tx *gorm.DB, event string, trans *model.Transaction, item *model.Item) error {
	if s.outboxTopic == "" {
		return nil
	}

	payload, err := json.Marshal(model.TradeEvent{
		Event:         event,
		TransactionNo: trans.TransactionNo,
		UserID:        trans.UserID,
		ItemID:        trans.ItemID,
		ItemName:      item.Name,
		Quantity:      trans.Quantity,
		TotalAmount:   trans.TotalAmount,
		Balance:       trans.BalanceAfter,
		OccurredAt:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("序列化交易事件失败: %w", err)
	}

	msg := &model.OutboxMessage{
		MessageKey: trans.TransactionNo,
		Topic:      s.outboxTopic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}

func (s *MarketService) observe(kind string, err error, start time.Time) {
	result := metrics.ResultSuccess
	if err != nil {
		result = string(KindOf(err))
	}
	metrics.ObserveTrade(kind, result, time.Since(start))
}
