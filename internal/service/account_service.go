package service

import (
	"context"

	"marketplace/internal/model"
	"marketplace/internal/repository"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type AccountService struct {
	accountRepo     *repository.AccountRepository
	inventoryRepo   *repository.InventoryRepository
	transactionRepo *repository.TransactionRepository
	startingGold    int64
}

func NewAccountService(db *gorm.DB, startingGold int64) *AccountService {
	return &AccountService{
		accountRepo:     repository.NewAccountRepository(db),
		inventoryRepo:   repository.NewInventoryRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		startingGold:    startingGold,
	}
}

// GetAccount 首次访问自动开户
func (s *AccountService) GetAccount(ctx context.Context, userID int64) (*model.Account, error) {
	account, err := s.accountRepo.GetOrCreate(ctx, userID, s.startingGold)
	if err != nil {
		return nil, storageError("获取账户失败", err)
	}
	return account, nil
}

func (s *AccountService) ListInventory(ctx context.Context, userID int64) ([]*model.InventoryEntry, error) {
	entries, err := s.inventoryRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, storageError("查询背包失败", err)
	}
	return entries, nil
}

type TransactionPage struct {
	Items    []*model.Transaction `json:"items"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

func (s *AccountService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) (*TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	items, total, err := s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
	if err != nil {
		return nil, storageError("查询交易流水失败", err)
	}
	return &TransactionPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}
