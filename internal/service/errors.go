package service

import (
	"errors"
	"fmt"
)

// 交易被拒绝的原因，调用方用 errors.Is 判断
var (
	ErrInvalidQuantity       = errors.New("数量必须大于0")
	ErrItemNotFound          = errors.New("商品不存在")
	ErrInsufficientStock     = errors.New("库存不足")
	ErrRequirementNotMet     = errors.New("不满足购买条件")
	ErrInsufficientFunds     = errors.New("金币不足")
	ErrInsufficientInventory = errors.New("背包数量不足")
	ErrAccountNotFound       = errors.New("账户不存在")
	ErrStorageUnavailable    = errors.New("存储暂不可用")
)

// ErrorKind 对外暴露的稳定错误类型
type ErrorKind string

const (
	KindInvalidQuantity       ErrorKind = "INVALID_QUANTITY"
	KindItemNotFound          ErrorKind = "ITEM_NOT_FOUND"
	KindInsufficientStock     ErrorKind = "INSUFFICIENT_STOCK"
	KindRequirementNotMet     ErrorKind = "REQUIREMENT_NOT_MET"
	KindInsufficientFunds     ErrorKind = "INSUFFICIENT_FUNDS"
	KindInsufficientInventory ErrorKind = "INSUFFICIENT_INVENTORY"
	KindAccountNotFound       ErrorKind = "ACCOUNT_NOT_FOUND"
	KindStorageUnavailable    ErrorKind = "STORAGE_UNAVAILABLE"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInvalidQuantity, KindInvalidQuantity},
	{ErrItemNotFound, KindItemNotFound},
	{ErrInsufficientStock, KindInsufficientStock},
	{ErrRequirementNotMet, KindRequirementNotMet},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrInsufficientInventory, KindInsufficientInventory},
	{ErrAccountNotFound, KindAccountNotFound},
	{ErrStorageUnavailable, KindStorageUnavailable},
}

// KindOf 返回错误对应的类型，nil 返回空串，未识别的错误视为存储故障
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindStorageUnavailable
}

// Retryable 只有存储故障值得重试，其余都是确定性的拒绝
func (k ErrorKind) Retryable() bool {
	return k == KindStorageUnavailable
}

func isRejection(err error) bool {
	for _, k := range kinds {
		if k.err != ErrStorageUnavailable && errors.Is(err, k.err) {
			return true
		}
	}
	return false
}

// storageError 把非业务错误统一包装成 ErrStorageUnavailable
func storageError(op string, err error) error {
	if err == nil || isRejection(err) || errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
