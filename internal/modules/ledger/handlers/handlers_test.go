package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/stockledger/internal/domain"
	"github.com/aristath/stockledger/internal/modules/ledger"
	testhelpers "github.com/aristath/stockledger/internal/testing"
)

func setupRouter(t *testing.T) (*chi.Mux, []domain.Transaction) {
	t.Helper()

	db, cleanup := testhelpers.NewTestDB(t, "ledger")
	t.Cleanup(cleanup)
	store := ledger.NewStore(db.Conn(), zerolog.Nop())

	gain := decimal.RequireFromString("40")
	seed := []domain.Transaction{
		{UserID: 1, Symbol: "AAPL", Quantity: 10, Price: decimal.RequireFromString("100"), Type: domain.TransactionTypeBuy},
		{UserID: 2, Symbol: "MSFT", Quantity: 2, Price: decimal.RequireFromString("300"), Type: domain.TransactionTypeBuy},
		{UserID: 1, Symbol: "AAPL", Quantity: 4, Price: decimal.RequireFromString("110"), Type: domain.TransactionTypeSell, RealizedGain: &gain},
	}

	recorded := make([]domain.Transaction, 0, len(seed))
	for _, txn := range seed {
		err := store.WithTransaction(context.Background(), func(tx domain.LedgerTx) error {
			got, err := tx.InsertTransaction(context.Background(), txn)
			recorded = append(recorded, got)
			return err
		})
		require.NoError(t, err)
	}

	router := chi.NewRouter()
	router.Route("/api", NewHandler(store, zerolog.Nop()).RegisterRoutes)
	return router, recorded
}

func get(t *testing.T, router http.Handler, path string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	return rec.Code, payload
}

func TestHandleGetTrades(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name      string
		query     string
		wantCount float64
	}{
		{name: "all", query: "", wantCount: 3},
		{name: "symbol", query: "?symbol=aapl", wantCount: 2},
		{name: "type", query: "?type=sell", wantCount: 1},
		{name: "user", query: "?user_id=2", wantCount: 1},
		{name: "limit", query: "?limit=1", wantCount: 1},
		{name: "limit above cap", query: "?limit=5000", wantCount: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, payload := get(t, router, "/api/ledger/trades"+tt.query)
			require.Equal(t, http.StatusOK, status)

			data := payload["data"].(map[string]interface{})
			assert.Equal(t, tt.wantCount, data["count"])
			assert.Len(t, data["trades"], int(tt.wantCount))
			assert.Contains(t, payload, "metadata")
		})
	}
}

func TestHandleGetTrades_BadParameters(t *testing.T) {
	router, _ := setupRouter(t)

	for _, query := range []string{"?limit=0", "?limit=abc", "?type=SHORT", "?user_id=-1", "?user_id=x"} {
		t.Run(query, func(t *testing.T) {
			status, payload := get(t, router, "/api/ledger/trades"+query)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.NotEmpty(t, payload["error"])
		})
	}
}

func TestHandleGetTradeByID(t *testing.T) {
	router, recorded := setupRouter(t)
	sell := recorded[2]

	status, payload := get(t, router, fmt.Sprintf("/api/ledger/trades/%d", sell.ID))
	require.Equal(t, http.StatusOK, status)
	data := payload["data"].(map[string]interface{})
	assert.Equal(t, sell.Reference, data["reference"])
	assert.Equal(t, "SELL", data["type"])
	assert.Equal(t, "40", data["realized_gain"])

	status, _ = get(t, router, "/api/ledger/trades/9999")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = get(t, router, "/api/ledger/trades/abc")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHandleGetTradesSummary(t *testing.T) {
	router, _ := setupRouter(t)

	status, payload := get(t, router, "/api/ledger/trades/summary")
	require.Equal(t, http.StatusOK, status)

	data := payload["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["total_trades"])
	assert.Equal(t, float64(2), data["buy_count"])
	assert.Equal(t, float64(1), data["sell_count"])
	assert.Equal(t, "1600", data["total_bought"])
	assert.Equal(t, "440", data["total_sold"])
	assert.Equal(t, "40", data["realized_gain"])
	assert.Equal(t, float64(2), data["distinct_users"])
}

type failingReader struct{}

func (failingReader) QueryTransactions(context.Context, ledger.TransactionFilter) ([]domain.Transaction, error) {
	return nil, domain.NewStoreError("query transactions", errors.New("disk I/O error"))
}

func (failingReader) GetTransaction(context.Context, int64) (*domain.Transaction, error) {
	return nil, domain.NewStoreError("get transaction", errors.New("disk I/O error"))
}

func (failingReader) Summarize(context.Context) (ledger.TradeSummary, error) {
	return ledger.TradeSummary{}, domain.NewStoreError("summarize transactions", errors.New("disk I/O error"))
}

func TestHandlers_StoreFailures(t *testing.T) {
	router := chi.NewRouter()
	router.Route("/api", NewHandler(failingReader{}, zerolog.Nop()).RegisterRoutes)

	for _, path := range []string{"/api/ledger/trades", "/api/ledger/trades/1", "/api/ledger/trades/summary"} {
		t.Run(path, func(t *testing.T) {
			status, payload := get(t, router, path)
			assert.Equal(t, http.StatusInternalServerError, status)
			assert.NotContains(t, payload["error"], "disk I/O")
		})
	}
}
