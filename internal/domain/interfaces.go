package domain

import "context"

// PriceSource provides market data for symbols.
// Implementations return errors matching ErrUnknownSymbol or ErrPriceUnavailable.
// Timeouts are taken from ctx.
type PriceSource interface {
	// GetPrice returns the latest daily bar for a symbol
	GetPrice(ctx context.Context, symbol string) (*PricePoint, error)

	// GetCompanyOverview returns company fundamentals for a symbol
	GetCompanyOverview(ctx context.Context, symbol string) (*CompanyOverview, error)

	// GetHistoricalPrices returns daily bars for a symbol, newest first
	GetHistoricalPrices(ctx context.Context, symbol string, size OutputSize) (*PriceHistory, error)
}

// LedgerTx is the write handle passed to LedgerStore.WithTransaction.
// Everything done through it commits or rolls back together.
type LedgerTx interface {
	// GetPosition returns the position for (userID, symbol), nil if none exists
	GetPosition(ctx context.Context, userID int64, symbol string) (*Position, error)

	// UpsertPosition writes next. prev is the row GetPosition returned in this
	// transaction (nil for a first buy); a row that changed since then is a conflict.
	UpsertPosition(ctx context.Context, prev *Position, next Position) error

	// DecrementPosition removes quantity shares only if at least that many are held.
	// Returns ErrInsufficientShares otherwise. The returned position is post-decrement.
	DecrementPosition(ctx context.Context, userID int64, symbol string, quantity int64) (*Position, error)

	// InsertTransaction appends t to the ledger and returns it with ID,
	// Reference and ExecutedAt assigned
	InsertTransaction(ctx context.Context, t Transaction) (Transaction, error)
}

// LedgerStore owns positions and transactions
type LedgerStore interface {
	// WithTransaction runs fn atomically. If fn returns an error nothing it wrote is kept.
	WithTransaction(ctx context.Context, fn func(tx LedgerTx) error) error

	// GetPosition returns the committed position for (userID, symbol), nil if none exists
	GetPosition(ctx context.Context, userID int64, symbol string) (*Position, error)

	// ListPositions returns a user's positions ordered by symbol
	ListPositions(ctx context.Context, userID int64, openOnly bool) ([]Position, error)

	// ListTransactions returns a user's transactions, newest first
	ListTransactions(ctx context.Context, userID int64) ([]Transaction, error)
}
