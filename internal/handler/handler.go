package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"

	"marketplace/internal/model"
	"marketplace/internal/service"
	"marketplace/pkg/response"

	"github.com/gin-gonic/gin"
)

type MarketTrader interface {
	Purchase(ctx context.Context, userID, itemID, quantity int64) (*service.TradeResult, error)
	Sell(ctx context.Context, userID, itemID, quantity int64) (*service.TradeResult, error)
}

type CatalogReader interface {
	ListItems(ctx context.Context) ([]*model.Item, error)
	GetItem(ctx context.Context, itemID int64) (*model.Item, error)
	Featured(ctx context.Context) ([]*model.Item, error)
	Recommended(ctx context.Context, userID int64) ([]*model.Item, error)
}

type AccountReader interface {
	GetAccount(ctx context.Context, userID int64) (*model.Account, error)
	ListInventory(ctx context.Context, userID int64) ([]*model.InventoryEntry, error)
	ListTransactions(ctx context.Context, userID int64, page, pageSize int) (*service.TransactionPage, error)
}

// Handler 统一处理器
type Handler struct {
	market   MarketTrader
	catalog  CatalogReader
	accounts AccountReader
}

func NewHandler(market MarketTrader, catalog CatalogReader, accounts AccountReader) *Handler {
	return &Handler{
		market:   market,
		catalog:  catalog,
		accounts: accounts,
	}
}

// ============================================================
// 商品浏览
// ============================================================

// ListItems GET /api/v1/market/items
func (h *Handler) ListItems(c *gin.Context) {
	items, err := h.catalog.ListItems(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"list": items, "total": len(items)})
}

// GetItem GET /api/v1/market/items/:id
func (h *Handler) GetItem(c *gin.Context) {
	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || itemID <= 0 {
		response.ParamError(c, "id 参数错误")
		return
	}

	item, err := h.catalog.GetItem(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, item)
}

// Featured GET /api/v1/market/featured
func (h *Handler) Featured(c *gin.Context) {
	items, err := h.catalog.Featured(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"list": items, "total": len(items)})
}

// Recommended GET /api/v1/market/recommended
func (h *Handler) Recommended(c *gin.Context) {
	userID, _ := GetUserID(c)
	items, err := h.catalog.Recommended(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"list": items, "total": len(items)})
}

// ============================================================
// 买入 / 卖回
// ============================================================

// DefaultTradeQuantity 请求未携带 quantity 时按 1 件处理
const DefaultTradeQuantity int64 = 1

// TradeRequest 数量的合法性由交易服务判断，返回 INVALID_QUANTITY
type TradeRequest struct {
	ItemID   int64        `json:"item_id" validate:"required,gt=0"`
	Quantity *json.Number `json:"quantity"`
}

// TradeQuantity 解析数量，非整数返回 service.ErrInvalidQuantity
func (r *TradeRequest) TradeQuantity() (int64, error) {
	if r.Quantity == nil {
		return DefaultTradeQuantity, nil
	}
	if n, err := r.Quantity.Int64(); err == nil {
		return n, nil
	}
	// 2.0 这类写法按整数接受
	f, err := r.Quantity.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, fmt.Errorf("%w: quantity=%s", service.ErrInvalidQuantity, r.Quantity.String())
	}
	return int64(f), nil
}

// Buy POST /api/v1/market/buy
func (h *Handler) Buy(c *gin.Context) {
	h.trade(c, h.market.Purchase)
}

// Sell POST /api/v1/market/sell
func (h *Handler) Sell(c *gin.Context) {
	h.trade(c, h.market.Sell)
}

func (h *Handler) trade(c *gin.Context, op func(ctx context.Context, userID, itemID, quantity int64) (*service.TradeResult, error)) {
	var req TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if errs := ValidateRequest(&req); errs != nil {
		RespondWithValidationError(c, errs)
		return
	}

	quantity, err := req.TradeQuantity()
	if err != nil {
		respondError(c, err)
		return
	}

	userID, _ := GetUserID(c)
	result, err := op(c.Request.Context(), userID, req.ItemID, quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// 账户
// ============================================================

// GetAccount GET /api/v1/account，首次访问自动开户
func (h *Handler) GetAccount(c *gin.Context) {
	userID, _ := GetUserID(c)
	account, err := h.accounts.GetAccount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, account)
}

// ListInventory GET /api/v1/inventory
func (h *Handler) ListInventory(c *gin.Context) {
	userID, _ := GetUserID(c)
	entries, err := h.accounts.ListInventory(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"list": entries, "total": len(entries)})
}

// ListTransactions GET /api/v1/transactions?page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		response.ParamError(c, "page 参数错误")
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil {
		response.ParamError(c, "page_size 参数错误")
		return
	}

	userID, _ := GetUserID(c)
	result, err := h.accounts.ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// 错误映射
// ============================================================

var kindCodes = map[service.ErrorKind]int{
	service.KindInvalidQuantity:       response.CodeInvalidQuantity,
	service.KindItemNotFound:          response.CodeItemNotFound,
	service.KindInsufficientStock:     response.CodeInsufficientStock,
	service.KindRequirementNotMet:     response.CodeRequirementNotMet,
	service.KindInsufficientFunds:     response.CodeInsufficientFunds,
	service.KindInsufficientInventory: response.CodeInsufficientInventory,
	service.KindAccountNotFound:       response.CodeAccountNotFound,
	service.KindStorageUnavailable:    response.CodeStorageUnavailable,
}

// respondError 业务拒绝原样返回原因，存储故障只记录日志
func respondError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	message := err.Error()
	if kind == service.KindStorageUnavailable {
		log.Printf("[HTTP] 请求失败: requestID=%s, path=%s, err=%v", GetRequestID(c), c.Request.URL.Path, err)
		message = "系统繁忙，请稍后重试"
	}

	response.ErrorWithData(c, kindCodes[kind], message, gin.H{
		"kind":      kind,
		"retryable": kind.Retryable(),
	})
}
