package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/model"
	"marketplace/internal/service"
	"marketplace/pkg/response"

	"github.com/gin-gonic/gin"
)

// ---- mock implementations ----

type mockTrader struct {
	purchaseFn func(userID, itemID, quantity int64) (*service.TradeResult, error)
	sellFn     func(userID, itemID, quantity int64) (*service.TradeResult, error)
}

func (m *mockTrader) Purchase(_ context.Context, userID, itemID, quantity int64) (*service.TradeResult, error) {
	if m.purchaseFn != nil {
		return m.purchaseFn(userID, itemID, quantity)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockTrader) Sell(_ context.Context, userID, itemID, quantity int64) (*service.TradeResult, error) {
	if m.sellFn != nil {
		return m.sellFn(userID, itemID, quantity)
	}
	return nil, fmt.Errorf("not configured")
}

type mockCatalog struct {
	listFn        func() ([]*model.Item, error)
	getFn         func(itemID int64) (*model.Item, error)
	featuredFn    func() ([]*model.Item, error)
	recommendedFn func(userID int64) ([]*model.Item, error)
}

func (m *mockCatalog) ListItems(context.Context) ([]*model.Item, error) {
	if m.listFn != nil {
		return m.listFn()
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockCatalog) GetItem(_ context.Context, itemID int64) (*model.Item, error) {
	if m.getFn != nil {
		return m.getFn(itemID)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockCatalog) Featured(context.Context) ([]*model.Item, error) {
	if m.featuredFn != nil {
		return m.featuredFn()
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockCatalog) Recommended(_ context.Context, userID int64) ([]*model.Item, error) {
	if m.recommendedFn != nil {
		return m.recommendedFn(userID)
	}
	return nil, fmt.Errorf("not configured")
}

type mockAccounts struct {
	getFn          func(userID int64) (*model.Account, error)
	inventoryFn    func(userID int64) ([]*model.InventoryEntry, error)
	transactionsFn func(userID int64, page, pageSize int) (*service.TransactionPage, error)
}

func (m *mockAccounts) GetAccount(_ context.Context, userID int64) (*model.Account, error) {
	if m.getFn != nil {
		return m.getFn(userID)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockAccounts) ListInventory(_ context.Context, userID int64) ([]*model.InventoryEntry, error) {
	if m.inventoryFn != nil {
		return m.inventoryFn(userID)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockAccounts) ListTransactions(_ context.Context, userID int64, page, pageSize int) (*service.TransactionPage, error) {
	if m.transactionsFn != nil {
		return m.transactionsFn(userID, page, pageSize)
	}
	return nil, fmt.Errorf("not configured")
}

// ---- helpers ----

func newTestRouter(trader MarketTrader, catalog CatalogReader, accounts AccountReader) *gin.Engine {
	cfg := config.Default()
	cfg.Server.Mode = gin.TestMode
	return SetupRouter(NewHandler(trader, catalog, accounts), cfg)
}

func doRequest(r *gin.Engine, method, path, body string, userID int64) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		req.Header.Set("X-User-ID", fmt.Sprint(userID))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON response: %v, body: %s", err, w.Body.String())
	}
	return env
}

// ---- Buy / Sell ----

func TestBuy_Success(t *testing.T) {
	trader := &mockTrader{purchaseFn: func(userID, itemID, quantity int64) (*service.TradeResult, error) {
		if userID != 7 || itemID != 3 || quantity != 2 {
			return nil, fmt.Errorf("unexpected args %d %d %d", userID, itemID, quantity)
		}
		return &service.TradeResult{TransactionNo: "BUY1", Kind: model.TransactionKindPurchase, Balance: 800, Stock: 3, InventoryQuantity: 2}, nil
	}}
	r := newTestRouter(trader, &mockCatalog{}, &mockAccounts{})

	w := doRequest(r, http.MethodPost, "/api/v1/market/buy", `{"item_id":3,"quantity":2}`, 7)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	env := decode(t, w)
	if env.Code != response.CodeSuccess {
		t.Fatalf("code = %d, message = %s", env.Code, env.Message)
	}
	var result service.TradeResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatal(err)
	}
	if result.TransactionNo != "BUY1" || result.Balance != 800 || result.InventoryQuantity != 2 {
		t.Errorf("result = %+v", result)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("response should carry a request id")
	}
}

func TestTrade_ErrorKinds(t *testing.T) {
	tests := []struct {
		err       error
		wantCode  int
		wantKind  service.ErrorKind
		retryable bool
	}{
		{fmt.Errorf("%w: quantity=0", service.ErrInvalidQuantity), response.CodeInvalidQuantity, service.KindInvalidQuantity, false},
		{service.ErrItemNotFound, response.CodeItemNotFound, service.KindItemNotFound, false},
		{service.ErrInsufficientStock, response.CodeInsufficientStock, service.KindInsufficientStock, false},
		{service.ErrRequirementNotMet, response.CodeRequirementNotMet, service.KindRequirementNotMet, false},
		{service.ErrInsufficientFunds, response.CodeInsufficientFunds, service.KindInsufficientFunds, false},
		{service.ErrInsufficientInventory, response.CodeInsufficientInventory, service.KindInsufficientInventory, false},
		{service.ErrAccountNotFound, response.CodeAccountNotFound, service.KindAccountNotFound, false},
		{fmt.Errorf("%w: disk I/O error", service.ErrStorageUnavailable), response.CodeStorageUnavailable, service.KindStorageUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.wantKind), func(t *testing.T) {
			fail := func(int64, int64, int64) (*service.TradeResult, error) { return nil, tt.err }
			r := newTestRouter(&mockTrader{purchaseFn: fail, sellFn: fail}, &mockCatalog{}, &mockAccounts{})

			for _, path := range []string{"/api/v1/market/buy", "/api/v1/market/sell"} {
				env := decode(t, doRequest(r, http.MethodPost, path, `{"item_id":1,"quantity":1}`, 1))
				if env.Code != tt.wantCode {
					t.Errorf("%s code = %d, want %d", path, env.Code, tt.wantCode)
				}
				var data struct {
					Kind      service.ErrorKind `json:"kind"`
					Retryable bool              `json:"retryable"`
				}
				if err := json.Unmarshal(env.Data, &data); err != nil {
					t.Fatal(err)
				}
				if data.Kind != tt.wantKind || data.Retryable != tt.retryable {
					t.Errorf("%s data = %+v", path, data)
				}
			}
		})
	}
}

func TestTrade_StorageErrorHidesDetails(t *testing.T) {
	trader := &mockTrader{purchaseFn: func(int64, int64, int64) (*service.TradeResult, error) {
		return nil, fmt.Errorf("%w: dial tcp 10.0.0.5:3306", service.ErrStorageUnavailable)
	}}
	r := newTestRouter(trader, &mockCatalog{}, &mockAccounts{})

	env := decode(t, doRequest(r, http.MethodPost, "/api/v1/market/buy", `{"item_id":1,"quantity":1}`, 1))
	if strings.Contains(env.Message, "10.0.0.5") {
		t.Errorf("message leaks internals: %q", env.Message)
	}
}

func TestTrade_InvalidBody(t *testing.T) {
	called := false
	trader := &mockTrader{purchaseFn: func(int64, int64, int64) (*service.TradeResult, error) {
		called = true
		return &service.TradeResult{}, nil
	}}
	r := newTestRouter(trader, &mockCatalog{}, &mockAccounts{})

	for _, body := range []string{`not json`, `{"quantity":1}`, `{"item_id":-4,"quantity":1}`} {
		env := decode(t, doRequest(r, http.MethodPost, "/api/v1/market/buy", body, 1))
		if env.Code != response.CodeParamError {
			t.Errorf("body %s: code = %d, want %d", body, env.Code, response.CodeParamError)
		}
	}
	if called {
		t.Error("service must not be called for invalid bodies")
	}
}

func TestTrade_ZeroQuantityReachesService(t *testing.T) {
	trader := &mockTrader{sellFn: func(_, _, quantity int64) (*service.TradeResult, error) {
		return nil, fmt.Errorf("%w: quantity=%d", service.ErrInvalidQuantity, quantity)
	}}
	r := newTestRouter(trader, &mockCatalog{}, &mockAccounts{})

	env := decode(t, doRequest(r, http.MethodPost, "/api/v1/market/sell", `{"item_id":1,"quantity":0}`, 1))
	if env.Code != response.CodeInvalidQuantity {
		t.Errorf("code = %d, want %d", env.Code, response.CodeInvalidQuantity)
	}
}

func TestTrade_OmittedQuantityDefaultsToOne(t *testing.T) {
	var got int64
	trader := &mockTrader{purchaseFn: func(_, _, quantity int64) (*service.TradeResult, error) {
		got = quantity
		return &service.TradeResult{Quantity: quantity}, nil
	}}
	r := newTestRouter(trader, &mockCatalog{}, &mockAccounts{})

	env := decode(t, doRequest(r, http.MethodPost, "/api/v1/market/buy", `{"item_id":1}`, 1))
	if env.Code != response.CodeSuccess {
		t.Fatalf("code = %d, message = %s", env.Code, env.Message)
	}
	if got != 1 {
		t.Errorf("quantity passed to service = %d, want 1", got)
	}
}

func TestTrade_NonIntegerQuantity(t *testing.T) {
	called := false
	fn := func(int64, int64, int64) (*service.TradeResult, error) {
		called = true
		return &service.TradeResult{}, nil
	}
	r := newTestRouter(&mockTrader{purchaseFn: fn, sellFn: fn}, &mockCatalog{}, &mockAccounts{})

	for _, body := range []string{`{"item_id":1,"quantity":1.5}`, `{"item_id":1,"quantity":1e300}`} {
		for _, path := range []string{"/api/v1/market/buy", "/api/v1/market/sell"} {
			env := decode(t, doRequest(r, http.MethodPost, path, body, 1))
			if env.Code != response.CodeInvalidQuantity {
				t.Errorf("%s %s: code = %d, want %d", path, body, env.Code, response.CodeInvalidQuantity)
			}
			var data struct {
				Kind service.ErrorKind `json:"kind"`
			}
			if err := json.Unmarshal(env.Data, &data); err != nil || data.Kind != service.KindInvalidQuantity {
				t.Errorf("%s %s: data = %s", path, body, env.Data)
			}
		}
	}
	if called {
		t.Error("service must not be called for a non-integer quantity")
	}
}

func TestTradeRequest_TradeQuantity(t *testing.T) {
	num := func(s string) *json.Number {
		n := json.Number(s)
		return &n
	}
	tests := []struct {
		name    string
		in      *json.Number
		want    int64
		wantErr bool
	}{
		{"omitted", nil, 1, false},
		{"integer", num("3"), 3, false},
		{"zero", num("0"), 0, false},
		{"negative", num("-2"), -2, false},
		{"integral float", num("2.0"), 2, false},
		{"fraction", num("0.5"), 0, true},
		{"huge", num("1e30"), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := TradeRequest{ItemID: 1, Quantity: tt.in}
			got, err := req.TradeQuantity()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, service.ErrInvalidQuantity) {
				t.Errorf("err = %v, want ErrInvalidQuantity", err)
			}
			if got != tt.want {
				t.Errorf("quantity = %d, want %d", got, tt.want)
			}
		})
	}
}

// ---- catalog ----

func TestListItems(t *testing.T) {
	catalog := &mockCatalog{listFn: func() ([]*model.Item, error) {
		return []*model.Item{{ID: 1, Name: "Mana Potion", Stock: model.UnlimitedStock}}, nil
	}}
	r := newTestRouter(&mockTrader{}, catalog, &mockAccounts{})

	env := decode(t, doRequest(r, http.MethodGet, "/api/v1/market/items", "", 1))
	if env.Code != response.CodeSuccess {
		t.Fatalf("code = %d", env.Code)
	}
	var data struct {
		List  []model.Item `json:"list"`
		Total int          `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Total != 1 || data.List[0].Name != "Mana Potion" || data.List[0].Stock != -1 {
		t.Errorf("data = %+v", data)
	}
}

func TestGetItem(t *testing.T) {
	catalog := &mockCatalog{getFn: func(itemID int64) (*model.Item, error) {
		if itemID != 12 {
			return nil, service.ErrItemNotFound
		}
		return &model.Item{ID: 12, Name: "Chalice of Rebirth"}, nil
	}}
	r := newTestRouter(&mockTrader{}, catalog, &mockAccounts{})

	if env := decode(t, doRequest(r, http.MethodGet, "/api/v1/market/items/12", "", 1)); env.Code != response.CodeSuccess {
		t.Errorf("code = %d", env.Code)
	}
	if env := decode(t, doRequest(r, http.MethodGet, "/api/v1/market/items/13", "", 1)); env.Code != response.CodeItemNotFound {
		t.Errorf("missing item code = %d", env.Code)
	}
	if env := decode(t, doRequest(r, http.MethodGet, "/api/v1/market/items/abc", "", 1)); env.Code != response.CodeParamError {
		t.Errorf("bad id code = %d", env.Code)
	}
}

func TestRecommended_UsesCaller(t *testing.T) {
	var gotUser int64
	catalog := &mockCatalog{recommendedFn: func(userID int64) ([]*model.Item, error) {
		gotUser = userID
		return nil, nil
	}}
	r := newTestRouter(&mockTrader{}, catalog, &mockAccounts{})

	doRequest(r, http.MethodGet, "/api/v1/market/recommended", "", 55)
	if gotUser != 55 {
		t.Errorf("recommended for user %d, want 55", gotUser)
	}
}

// ---- account ----

func TestListTransactions_Paging(t *testing.T) {
	accounts := &mockAccounts{transactionsFn: func(userID int64, page, pageSize int) (*service.TransactionPage, error) {
		return &service.TransactionPage{Page: page, PageSize: pageSize}, nil
	}}
	r := newTestRouter(&mockTrader{}, &mockCatalog{}, accounts)

	env := decode(t, doRequest(r, http.MethodGet, "/api/v1/transactions?page=3&page_size=5", "", 1))
	var page service.TransactionPage
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatal(err)
	}
	if page.Page != 3 || page.PageSize != 5 {
		t.Errorf("page = %+v", page)
	}

	if env := decode(t, doRequest(r, http.MethodGet, "/api/v1/transactions?page=x", "", 1)); env.Code != response.CodeParamError {
		t.Errorf("bad page code = %d", env.Code)
	}
}

func TestGetAccount(t *testing.T) {
	accounts := &mockAccounts{getFn: func(userID int64) (*model.Account, error) {
		return &model.Account{UserID: userID, Balance: 1000, Level: 1, Rank: model.RankE}, nil
	}}
	r := newTestRouter(&mockTrader{}, &mockCatalog{}, accounts)

	env := decode(t, doRequest(r, http.MethodGet, "/api/v1/account", "", 9))
	var account model.Account
	if err := json.Unmarshal(env.Data, &account); err != nil {
		t.Fatal(err)
	}
	if account.UserID != 9 || account.Balance != 1000 {
		t.Errorf("account = %+v", account)
	}
}

// ---- auth ----

func TestHeaderAuth_RequiresUser(t *testing.T) {
	r := newTestRouter(&mockTrader{}, &mockCatalog{}, &mockAccounts{})

	for _, id := range []string{"", "abc", "-1"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/account", nil)
		if id != "" {
			req.Header.Set("X-User-ID", id)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("X-User-ID %q: status = %d, want 401", id, w.Code)
		}
	}
}

func TestJWTAuth(t *testing.T) {
	secret := []byte("test-secret")
	cfg := config.Default()
	cfg.Server.Mode = gin.TestMode
	cfg.Auth = config.AuthConfig{Mode: config.AuthModeJWT, JWTSecret: string(secret)}

	accounts := &mockAccounts{getFn: func(userID int64) (*model.Account, error) {
		return &model.Account{UserID: userID}, nil
	}}
	r := SetupRouter(NewHandler(&mockTrader{}, &mockCatalog{}, accounts), cfg)

	valid, err := NewToken(secret, 21, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expired, _ := NewToken(secret, 21, -time.Hour)
	forged, _ := NewToken([]byte("other"), 21, time.Hour)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"forged", "Bearer " + forged, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/account", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

// ---- infra routes ----

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(&mockTrader{}, &mockCatalog{}, &mockAccounts{})

	if w := doRequest(r, http.MethodGet, "/health", "", 0); w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
	w := doRequest(r, http.MethodGet, "/metrics", "", 0)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Errorf("metrics status = %d", w.Code)
	}
}

func TestRecovery(t *testing.T) {
	trader := &mockTrader{purchaseFn: func(int64, int64, int64) (*service.TradeResult, error) {
		panic("boom")
	}}
	r := newTestRouter(trader, &mockCatalog{}, &mockAccounts{})

	w := doRequest(r, http.MethodPost, "/api/v1/market/buy", `{"item_id":1,"quantity":1}`, 1)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
