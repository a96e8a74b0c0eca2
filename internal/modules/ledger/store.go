// Package ledger persists positions and the append-only transaction history.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aristath/stockledger/internal/database"
	"github.com/aristath/stockledger/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CommitObserver receives the outcome of every WithTransaction call
type CommitObserver interface {
	ObserveCommit(d time.Duration, err error)
}

// Store handles ledger database operations.
// Writes go through WithTransaction; reads outside a transaction see committed state only.
type Store struct {
	db        *sql.DB // ledger.db - positions and transactions tables
	now       func() time.Time
	reference func() string
	observer  CommitObserver
	log       zerolog.Logger
}

// queryer is the subset of *sql.DB and *sql.Tx the repositories need
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// NewStore creates a new ledger store
func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{
		db:        db,
		now:       time.Now,
		reference: func() string { return uuid.New().String() },
		log:       log.With().Str("repo", "ledger").Logger(),
	}
}

// SetClock replaces the clock used to stamp writes
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// SetObserver sets the commit observer (nil disables it)
func (s *Store) SetObserver(o CommitObserver) {
	s.observer = o
}

// WithTransaction runs fn in one database transaction.
// Errors returned by fn are passed through unchanged after rollback; failures of
// the transaction itself (begin, commit, panic) are reported as *domain.StoreError.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	start := time.Now()

	var fnErr error
	err := database.WithTransactionContext(ctx, s.db, func(sqlTx *sql.Tx) error {
		fnErr = fn(&Tx{q: sqlTx, store: s})
		return fnErr
	})

	if s.observer != nil {
		s.observer.ObserveCommit(time.Since(start), err)
	}

	switch {
	case err == nil:
		return nil
	case fnErr != nil:
		return fnErr
	}

	op := "transaction"
	var txErr *database.TxError
	if errors.As(err, &txErr) {
		op = txErr.Stage + " transaction"
		err = txErr.Err
	}
	s.log.Error().Err(err).Str("op", op).Msg("Ledger transaction failed")
	return domain.NewStoreError(op, err)
}

// stamp returns the store clock truncated to the stored precision
func (s *Store) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Tx is the write handle passed to fn by WithTransaction
type Tx struct {
	q     queryer
	store *Store
}

var (
	_ domain.LedgerStore = (*Store)(nil)
	_ domain.LedgerTx    = (*Tx)(nil)
)
