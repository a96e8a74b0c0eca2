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

// positionsColumns is the list of columns for the positions table.
// Column order must match scanPosition().
const positionsColumns = `user_id, symbol, quantity, average_price, version, created_at, updated_at`

// rowScanner is implemented by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// GetPosition returns the position as seen inside this transaction
func (t *Tx) GetPosition(ctx context.Context, userID int64, symbol string) (*domain.Position, error) {
	return getPosition(ctx, t.q, userID, symbol)
}

// UpsertPosition inserts or updates a position with compare-and-swap on the
// version read by GetPosition. A lost race is a store conflict.
func (t *Tx) UpsertPosition(ctx context.Context, prev *domain.Position, next domain.Position) error {
	if next.Quantity < 0 {
		return fmt.Errorf("%w: position quantity cannot be negative", domain.ErrInvalidArgument)
	}

	now := t.store.stamp().UnixMilli()
	symbol := domain.NormalizeSymbol(next.Symbol)

	if prev == nil {
		result, err := t.q.ExecContext(ctx, `
			INSERT INTO positions (user_id, symbol, quantity, average_price, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT(user_id, symbol) DO NOTHING
		`, next.UserID, symbol, next.Quantity, next.AveragePrice, now, now)
		if err != nil {
			return domain.NewStoreError("insert position", err)
		}
		return expectOneRow(result, "insert position", next.UserID, symbol)
	}

	result, err := t.q.ExecContext(ctx, `
		UPDATE positions
		SET quantity = ?, average_price = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND symbol = ? AND version = ?
	`, next.Quantity, next.AveragePrice, now, next.UserID, symbol, prev.Version)
	if err != nil {
		return domain.NewStoreError("update position", err)
	}
	return expectOneRow(result, "update position", next.UserID, symbol)
}

// DecrementPosition subtracts quantity in a single conditional statement, so the
// check and the write cannot be separated by another writer.
func (t *Tx) DecrementPosition(ctx context.Context, userID int64, symbol string, quantity int64) (*domain.Position, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidArgument)
	}

	row := t.q.QueryRowContext(ctx, `
		UPDATE positions
		SET quantity = quantity - ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND symbol = ? AND quantity >= ?
		RETURNING `+positionsColumns,
		quantity, t.store.stamp().UnixMilli(), userID, domain.NormalizeSymbol(symbol), quantity)

	pos, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInsufficientShares, domain.NormalizeSymbol(symbol))
	}
	if err != nil {
		return nil, domain.NewStoreError("decrement position", err)
	}
	return pos, nil
}

// GetPosition returns the committed position for (userID, symbol)
func (s *Store) GetPosition(ctx context.Context, userID int64, symbol string) (*domain.Position, error) {
	return getPosition(ctx, s.db, userID, symbol)
}

// ListPositions returns a user's positions ordered by symbol.
// With openOnly, positions sold down to zero are left out.
func (s *Store) ListPositions(ctx context.Context, userID int64, openOnly bool) ([]domain.Position, error) {
	query := "SELECT " + positionsColumns + " FROM positions WHERE user_id = ?"
	if openOnly {
		query += " AND quantity > 0"
	}
	query += " ORDER BY symbol ASC"

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, domain.NewStoreError("list positions", err)
	}
	defer rows.Close()

	positions := make([]domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, domain.NewStoreError("scan position", err)
		}
		positions = append(positions, *pos)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("list positions", err)
	}

	return positions, nil
}

func getPosition(ctx context.Context, q queryer, userID int64, symbol string) (*domain.Position, error) {
	query := "SELECT " + positionsColumns + " FROM positions WHERE user_id = ? AND symbol = ?"

	pos, err := scanPosition(q.QueryRowContext(ctx, query, userID, domain.NormalizeSymbol(symbol)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStoreError("get position", err)
	}
	return pos, nil
}

func scanPosition(row rowScanner) (*domain.Position, error) {
	var (
		pos       domain.Position
		avgPrice  decimal.Decimal
		createdAt int64
		updatedAt int64
	)

	if err := row.Scan(&pos.UserID, &pos.Symbol, &pos.Quantity, &avgPrice, &pos.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	pos.AveragePrice = avgPrice
	pos.CreatedAt = time.UnixMilli(createdAt).UTC()
	pos.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &pos, nil
}

func expectOneRow(result sql.Result, op string, userID int64, symbol string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return domain.NewStoreError(op, err)
	}
	if n != 1 {
		return domain.NewStoreError(op, fmt.Errorf("position %d/%s was modified concurrently", userID, symbol))
	}
	return nil
}
