package ledger

import (
	"context"
	"testing"

	"github.com/aristath/stockledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertTxn(t *testing.T, s *Store, txn domain.Transaction) domain.Transaction {
	t.Helper()
	var recorded domain.Transaction
	err := s.WithTransaction(context.Background(), func(tx domain.LedgerTx) error {
		var err error
		recorded, err = tx.InsertTransaction(context.Background(), txn)
		return err
	})
	require.NoError(t, err)
	return recorded
}

func sellTxn(userID int64, symbol string, qty int64, price, gain string) domain.Transaction {
	g := decimal.RequireFromString(gain)
	return domain.Transaction{
		UserID:       userID,
		Symbol:       symbol,
		Quantity:     qty,
		Price:        decimal.RequireFromString(price),
		Type:         domain.TransactionTypeSell,
		RealizedGain: &g,
	}
}

func seedLedger(t *testing.T, s *Store) {
	t.Helper()
	insertTxn(t, s, buyTxn(1, "AAPL", 10, "100"))
	insertTxn(t, s, buyTxn(2, "MSFT", 4, "250.5"))
	insertTxn(t, s, sellTxn(1, "AAPL", 5, "120", "100"))
	insertTxn(t, s, buyTxn(2, "AAPL", 1, "110"))
}

func TestStore_QueryTransactions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedLedger(t, s)

	tests := []struct {
		name      string
		filter    TransactionFilter
		wantCount int
	}{
		{name: "everything", filter: TransactionFilter{}, wantCount: 4},
		{name: "by symbol", filter: TransactionFilter{Symbol: "aapl"}, wantCount: 3},
		{name: "by type", filter: TransactionFilter{Type: domain.TransactionTypeSell}, wantCount: 1},
		{name: "by user", filter: TransactionFilter{UserID: 2}, wantCount: 2},
		{name: "combined", filter: TransactionFilter{UserID: 2, Symbol: "AAPL"}, wantCount: 1},
		{name: "limited", filter: TransactionFilter{Limit: 2}, wantCount: 2},
		{name: "no match", filter: TransactionFilter{Symbol: "TSLA"}, wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryTransactions(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.wantCount)
			assert.NotNil(t, got)
		})
	}
}

func TestStore_QueryTransactions_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	seedLedger(t, s)

	got, err := s.QueryTransactions(context.Background(), TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i-1].ID, got[i].ID)
	}
}

func TestStore_GetTransaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	recorded := insertTxn(t, s, sellTxn(1, "AAPL", 5, "120", "-3.25"))

	got, err := s.GetTransaction(ctx, recorded.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, recorded.Reference, got.Reference)
	require.NotNil(t, got.RealizedGain)
	assert.Equal(t, "-3.25", got.RealizedGain.String())

	missing, err := s.GetTransaction(ctx, recorded.ID+100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_Summarize(t *testing.T) {
	s := newTestStore(t)
	seedLedger(t, s)

	summary, err := s.Summarize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(4), summary.TotalTrades)
	assert.Equal(t, int64(3), summary.BuyCount)
	assert.Equal(t, int64(1), summary.SellCount)
	assert.Equal(t, int64(2), summary.DistinctUsers)
	assert.Equal(t, "2112", summary.TotalBought.String()) // 1000 + 1002 + 110
	assert.Equal(t, "600", summary.TotalSold.String())
	assert.Equal(t, "100", summary.RealizedGain.String())
}

func TestStore_Summarize_Empty(t *testing.T) {
	s := newTestStore(t)

	summary, err := s.Summarize(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.TotalTrades)
	assert.True(t, summary.TotalBought.IsZero())
	assert.True(t, summary.RealizedGain.IsZero())
}
