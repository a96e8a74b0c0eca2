package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/stockledger/internal/domain"
	"github.com/shopspring/decimal"
)

// transactionsColumns is the list of columns for the transactions table.
// Column order must match scanTransaction().
const transactionsColumns = `id, reference, user_id, symbol, quantity, price, transaction_type, realized_gain, executed_at`

// InsertTransaction appends a transaction. ID, Reference and ExecutedAt are
// assigned here; values set by the caller are ignored.
func (t *Tx) InsertTransaction(ctx context.Context, txn domain.Transaction) (domain.Transaction, error) {
	txn.Symbol = domain.NormalizeSymbol(txn.Symbol)
	if err := txn.Validate(); err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to insert transaction: %w", err)
	}

	txn.Reference = t.store.reference()
	txn.ExecutedAt = t.store.stamp()

	var realizedGain decimal.NullDecimal
	if txn.RealizedGain != nil {
		realizedGain = decimal.NewNullDecimal(*txn.RealizedGain)
	}

	result, err := t.q.ExecContext(ctx, `
		INSERT INTO transactions
		(reference, user_id, symbol, quantity, price, transaction_type, realized_gain, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		txn.Reference,
		txn.UserID,
		txn.Symbol,
		txn.Quantity,
		txn.Price,
		string(txn.Type),
		realizedGain,
		txn.ExecutedAt.UnixMilli(),
	)
	if err != nil {
		return domain.Transaction{}, domain.NewStoreError("insert transaction", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return domain.Transaction{}, domain.NewStoreError("insert transaction", err)
	}
	txn.ID = id

	t.store.log.Debug().
		Int64("user_id", txn.UserID).
		Str("symbol", txn.Symbol).
		Str("type", string(txn.Type)).
		Int64("quantity", txn.Quantity).
		Str("reference", txn.Reference).
		Msg("Transaction recorded")

	return txn, nil
}

// ListTransactions returns every transaction for a user, newest first.
// Ties on executed_at are broken by insertion order, newest first.
func (s *Store) ListTransactions(ctx context.Context, userID int64) ([]domain.Transaction, error) {
	query := "SELECT " + transactionsColumns + `
		FROM transactions
		WHERE user_id = ?
		ORDER BY executed_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, domain.NewStoreError("list transactions", err)
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, domain.NewStoreError("scan transaction", err)
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("list transactions", err)
	}

	return transactions, nil
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		txn          domain.Transaction
		txnType      string
		realizedGain decimal.NullDecimal
		executedAt   int64
	)

	err := row.Scan(
		&txn.ID,
		&txn.Reference,
		&txn.UserID,
		&txn.Symbol,
		&txn.Quantity,
		&txn.Price,
		&txnType,
		&realizedGain,
		&executedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}

	txn.Type = domain.TransactionType(txnType)
	txn.ExecutedAt = time.UnixMilli(executedAt).UTC()
	if realizedGain.Valid {
		gain := realizedGain.Decimal
		txn.RealizedGain = &gain
	}
	return txn, nil
}

// TransactionFilter narrows a ledger-wide transaction query. Zero values match everything.
type TransactionFilter struct {
	Symbol string
	Type   domain.TransactionType
	UserID int64
	Limit  int
}

// DefaultQueryLimit caps QueryTransactions when no limit is given
const DefaultQueryLimit = 100

// QueryTransactions returns transactions across all users, newest first
func (s *Store) QueryTransactions(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, error) {
	query := "SELECT " + transactionsColumns + " FROM transactions WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, domain.NormalizeSymbol(filter.Symbol))
	}
	if filter.Type != "" {
		query += " AND transaction_type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.UserID > 0 {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	query += " ORDER BY executed_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewStoreError("query transactions", err)
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, domain.NewStoreError("scan transaction", err)
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("query transactions", err)
	}

	return transactions, nil
}

// GetTransaction returns one transaction by ID, nil if it does not exist
func (s *Store) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+transactionsColumns+" FROM transactions WHERE id = ?", id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStoreError("get transaction", err)
	}
	return &txn, nil
}

// TradeSummary aggregates the whole ledger
type TradeSummary struct {
	TotalBought   decimal.Decimal `json:"total_bought"`
	TotalSold     decimal.Decimal `json:"total_sold"`
	RealizedGain  decimal.Decimal `json:"realized_gain"`
	TotalTrades   int64           `json:"total_trades"`
	BuyCount      int64           `json:"buy_count"`
	SellCount     int64           `json:"sell_count"`
	DistinctUsers int64           `json:"distinct_users"`
}

// Summarize totals every transaction in the ledger.
// Amounts are summed as decimals in Go since they are stored as text.
func (s *Store) Summarize(ctx context.Context) (TradeSummary, error) {
	summary := TradeSummary{
		TotalBought:  decimal.Zero,
		TotalSold:    decimal.Zero,
		RealizedGain: decimal.Zero,
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_type, quantity, price, realized_gain
		FROM transactions
	`)
	if err != nil {
		return TradeSummary{}, domain.NewStoreError("summarize transactions", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			txnType string
			qty     int64
			price   decimal.Decimal
			gain    decimal.NullDecimal
		)
		if err := rows.Scan(&txnType, &qty, &price, &gain); err != nil {
			return TradeSummary{}, domain.NewStoreError("scan summary row", err)
		}

		total := price.Mul(decimal.NewFromInt(qty))
		summary.TotalTrades++
		switch domain.TransactionType(txnType) {
		case domain.TransactionTypeBuy:
			summary.BuyCount++
			summary.TotalBought = summary.TotalBought.Add(total)
		case domain.TransactionTypeSell:
			summary.SellCount++
			summary.TotalSold = summary.TotalSold.Add(total)
		}
		if gain.Valid {
			summary.RealizedGain = summary.RealizedGain.Add(gain.Decimal)
		}
	}
	if err := rows.Err(); err != nil {
		return TradeSummary{}, domain.NewStoreError("summarize transactions", err)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT user_id) FROM transactions").Scan(&summary.DistinctUsers); err != nil {
		return TradeSummary{}, domain.NewStoreError("count users", err)
	}

	return summary, nil
}
