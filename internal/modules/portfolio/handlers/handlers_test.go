package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/stockledger/internal/database"
	"github.com/aristath/stockledger/internal/domain"
	"github.com/aristath/stockledger/internal/modules/ledger"
	"github.com/aristath/stockledger/internal/modules/portfolio"
	testingpkg "github.com/aristath/stockledger/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFixture struct {
	db     *database.DB
	prices *testingpkg.MockPriceSource
	router *chi.Mux
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	t.Cleanup(cleanup)

	prices := testingpkg.NewMockPriceSource()
	service := portfolio.NewPortfolioService(ledger.NewStore(db.Conn(), zerolog.Nop()), prices, time.Second, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api", NewHandler(service, zerolog.Nop()).RegisterRoutes)

	return &handlerFixture{db: db, prices: prices, router: router}
}

// do performs a request and decodes the JSON response
func (f *handlerFixture) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	return rec.Code, payload
}

func trade(userID int64, symbol string, qty int64) string {
	return fmt.Sprintf(`{"user_id": %d, "symbol": %q, "quantity": %d}`, userID, symbol, qty)
}

func TestHandleBuyAndSell(t *testing.T) {
	f := newHandlerFixture(t)
	f.prices.SetPrice("AAPL", "100")

	status, body := f.do(t, http.MethodPost, "/api/portfolio/buy", trade(1, "aapl", 10))
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "success", body["status"])
	tx := body["transaction"].(map[string]interface{})
	assert.Equal(t, "AAPL", tx["symbol"])
	assert.Equal(t, "BUY", tx["type"])
	assert.Equal(t, "100", tx["price"])
	assert.Equal(t, "1000", tx["total_cost"])
	assert.NotContains(t, tx, "total_proceeds")

	f.prices.SetPrice("AAPL", "120")
	status, body = f.do(t, http.MethodPost, "/api/portfolio/sell", trade(1, "AAPL", 4))
	require.Equal(t, http.StatusOK, status, body)
	tx = body["transaction"].(map[string]interface{})
	assert.Equal(t, "SELL", tx["type"])
	assert.Equal(t, "480", tx["total_proceeds"])
	assert.Equal(t, "80", tx["realized_gain"])
	assert.Equal(t, float64(6), tx["remaining_quantity"])
}

func TestHandleTrade_Errors(t *testing.T) {
	f := newHandlerFixture(t)
	f.prices.SetPrice("AAPL", "100")
	f.prices.SetSymbolError("DOWN", domain.ErrPriceUnavailable)

	_, _ = f.do(t, http.MethodPost, "/api/portfolio/buy", trade(1, "AAPL", 5))

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantError  string
	}{
		{name: "oversell", path: "/api/portfolio/sell", body: trade(1, "AAPL", 10), wantStatus: http.StatusConflict, wantError: "insufficient shares"},
		{name: "sell unknown position", path: "/api/portfolio/sell", body: trade(2, "AAPL", 1), wantStatus: http.StatusConflict},
		{name: "unknown symbol", path: "/api/portfolio/buy", body: trade(1, "NOPE", 1), wantStatus: http.StatusNotFound, wantError: "unknown symbol"},
		{name: "price unavailable", path: "/api/portfolio/buy", body: trade(1, "DOWN", 1), wantStatus: http.StatusServiceUnavailable},
		{name: "negative quantity", path: "/api/portfolio/buy", body: trade(1, "AAPL", -1), wantStatus: http.StatusBadRequest},
		{name: "missing fields", path: "/api/portfolio/buy", body: `{"user_id": 1, "symbol": "AAPL"}`, wantStatus: http.StatusBadRequest, wantError: "user_id, symbol, and quantity are required"},
		{name: "fractional quantity", path: "/api/portfolio/buy", body: `{"user_id": 1, "symbol": "AAPL", "quantity": 1.5}`, wantStatus: http.StatusBadRequest},
		{name: "malformed body", path: "/api/portfolio/sell", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, status, body)
			require.Contains(t, body, "error")
			if tt.wantError != "" {
				assert.Contains(t, body["error"], tt.wantError)
			}
		})
	}

	// Rejected sells leave the position alone
	status, body := f.do(t, http.MethodGet, "/api/portfolio/1", "")
	require.Equal(t, http.StatusOK, status)
	holdings := body["portfolio"].(map[string]interface{})["holdings"].([]interface{})
	require.Len(t, holdings, 1)
	assert.Equal(t, float64(5), holdings[0].(map[string]interface{})["quantity"])
}

func TestHandleBuy_StoreFailure(t *testing.T) {
	f := newHandlerFixture(t)
	f.prices.SetPrice("AAPL", "100")
	require.NoError(t, f.db.Close())

	status, body := f.do(t, http.MethodPost, "/api/portfolio/buy", trade(1, "AAPL", 1))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "could not record the operation", body["error"])
}

func TestHandleGetPortfolio(t *testing.T) {
	f := newHandlerFixture(t)
	f.prices.SetPrice("AAPL", "100")
	f.prices.SetPrice("MSFT", "50")

	_, _ = f.do(t, http.MethodPost, "/api/portfolio/buy", trade(1, "AAPL", 10))
	_, _ = f.do(t, http.MethodPost, "/api/portfolio/buy", trade(1, "MSFT", 4))
	f.prices.SetPrice("AAPL", "110")

	status, body := f.do(t, http.MethodGet, "/api/portfolio/1", "")
	require.Equal(t, http.StatusOK, status, body)
	view := body["portfolio"].(map[string]interface{})
	assert.Equal(t, "1300", view["total_value"])
	assert.Len(t, view["holdings"], 2)

	status, _ = f.do(t, http.MethodGet, "/api/portfolio/abc", "")
	assert.Equal(t, http.StatusBadRequest, status)

	f.prices.SetSymbolError("MSFT", domain.ErrPriceUnavailable)
	status, _ = f.do(t, http.MethodGet, "/api/portfolio/1", "")
	assert.Equal(t, http.StatusServiceUnavailable, status, "valuation is fail-fast")
}

func TestHandleGetHistory(t *testing.T) {
	f := newHandlerFixture(t)
	f.prices.SetPrice("AAPL", "100")

	_, _ = f.do(t, http.MethodPost, "/api/portfolio/buy", trade(7, "AAPL", 3))
	_, _ = f.do(t, http.MethodPost, "/api/portfolio/sell", trade(7, "AAPL", 1))

	status, body := f.do(t, http.MethodGet, "/api/portfolio/history/7", "")
	require.Equal(t, http.StatusOK, status)
	history := body["history"].([]interface{})
	require.Len(t, history, 2)
	assert.Equal(t, "SELL", history[0].(map[string]interface{})["type"])
	assert.Equal(t, "300", history[1].(map[string]interface{})["total"])

	status, body = f.do(t, http.MethodGet, "/api/portfolio/history/8", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["history"])
}

func TestStockHandlers(t *testing.T) {
	f := newHandlerFixture(t)
	f.prices.SetPrice("IBM", "185.5")
	f.prices.SetOverview(testingpkg.NewOverviewFixture("IBM", "International Business Machines"))
	f.prices.SetHistory(testingpkg.NewHistoryFixture("IBM", 180, 5))

	status, body := f.do(t, http.MethodGet, "/api/stock/price/ibm", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "185.5", body["price_info"].(map[string]interface{})["close"])

	status, body = f.do(t, http.MethodGet, "/api/stock/company/IBM", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "International Business Machines", body["company_info"].(map[string]interface{})["name"])

	status, body = f.do(t, http.MethodGet, "/api/stock/history/IBM?outputsize=full", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Len(t, body["history"].(map[string]interface{})["data"], 5)

	status, body = f.do(t, http.MethodGet, "/api/stock/history/IBM?outputsize=huge", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "outputsize must be either compact or full")

	status, body = f.do(t, http.MethodGet, "/api/stock/IBM", "")
	require.Equal(t, http.StatusOK, status, body)
	info := body["stock_info"].(map[string]interface{})
	assert.Contains(t, info, "current_price")
	assert.Contains(t, info, "company_info")
	assert.Contains(t, info, "historical_data")

	status, _ = f.do(t, http.MethodGet, "/api/stock/NOPE", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid", fmt.Errorf("wrap: %w", domain.ErrInvalidArgument), http.StatusBadRequest},
		{"insufficient", domain.ErrInsufficientShares, http.StatusConflict},
		{"unknown symbol", domain.NewPricingError("X", domain.ErrUnknownSymbol), http.StatusNotFound},
		{"unavailable", domain.NewPricingError("X", errors.New("timeout")), http.StatusServiceUnavailable},
		{"store", domain.NewStoreError("commit transaction", errors.New("disk I/O error")), http.StatusInternalServerError},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
