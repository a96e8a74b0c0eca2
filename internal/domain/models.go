// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the side of a ledger transaction
type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "BUY"
	TransactionTypeSell TransactionType = "SELL"
)

// TransactionTypeFromString parses a transaction type, case-insensitively
func TransactionTypeFromString(s string) (TransactionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return TransactionTypeBuy, nil
	case "SELL":
		return TransactionTypeSell, nil
	default:
		return "", fmt.Errorf("%w: invalid transaction type %q", ErrInvalidArgument, s)
	}
}

// IsBuy reports whether the type is BUY
func (t TransactionType) IsBuy() bool {
	return t == TransactionTypeBuy
}

// IsSell reports whether the type is SELL
func (t TransactionType) IsSell() bool {
	return t == TransactionTypeSell
}

// Position is a user's aggregate holding in one symbol.
// AveragePrice is only meaningful while Quantity > 0.
type Position struct {
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	AveragePrice decimal.Decimal `json:"average_price"`
	Symbol       string          `json:"symbol"`
	UserID       int64           `json:"user_id"`
	Quantity     int64           `json:"quantity"`
	Version      int64           `json:"-"` // bumped on every write, used for compare-and-swap
}

// IsOpen reports whether the position still holds shares
func (p Position) IsOpen() bool {
	return p.Quantity > 0
}

// CostBasis returns quantity * average price, zero for an empty position
func (p Position) CostBasis() decimal.Decimal {
	if p.Quantity <= 0 {
		return decimal.Zero
	}
	return p.AveragePrice.Mul(decimal.NewFromInt(p.Quantity))
}

// Transaction is an immutable ledger entry
type Transaction struct {
	ExecutedAt   time.Time        `json:"executed_at"`
	RealizedGain *decimal.Decimal `json:"realized_gain,omitempty"` // SELL only
	Price        decimal.Decimal  `json:"price"`
	Reference    string           `json:"reference"`
	Symbol       string           `json:"symbol"`
	Type         TransactionType  `json:"type"`
	ID           int64            `json:"id"`
	UserID       int64            `json:"user_id"`
	Quantity     int64            `json:"quantity"`
}

// Total returns price * quantity
func (t Transaction) Total() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}

// Validate checks the invariants of a transaction before it is written
func (t Transaction) Validate() error {
	if t.UserID <= 0 {
		return fmt.Errorf("%w: user id must be positive, got %d", ErrInvalidArgument, t.UserID)
	}
	if t.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidArgument)
	}
	if t.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidArgument, t.Quantity)
	}
	if !t.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive, got %s", ErrInvalidArgument, t.Price)
	}
	if !t.Type.IsBuy() && !t.Type.IsSell() {
		return fmt.Errorf("%w: invalid transaction type %q", ErrInvalidArgument, t.Type)
	}
	return nil
}

// PricePoint is one daily bar as reported by a price source
type PricePoint struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Symbol string          `json:"symbol"`
	Volume int64           `json:"volume"`
}

// Price returns the price used to execute trades (the close)
func (p PricePoint) Price() decimal.Decimal {
	return p.Close
}

// PriceHistory is a series of daily bars, newest first
type PriceHistory struct {
	Symbol string       `json:"symbol"`
	Data   []PricePoint `json:"data"`
}

// CompanyOverview holds company fundamentals.
// Fields holds every attribute the source returned; numeric ones are also parsed into the typed fields.
type CompanyOverview struct {
	Fields               map[string]string `json:"fields"`
	PERatio              *float64          `json:"pe_ratio,omitempty"`
	EPS                  *float64          `json:"eps,omitempty"`
	Beta                 *float64          `json:"beta,omitempty"`
	DividendYield        *float64          `json:"dividend_yield,omitempty"`
	FiftyTwoWeekHigh     *float64          `json:"52_week_high,omitempty"`
	FiftyTwoWeekLow      *float64          `json:"52_week_low,omitempty"`
	Symbol               string            `json:"symbol"`
	Name                 string            `json:"name"`
	Description          string            `json:"description"`
	Exchange             string            `json:"exchange"`
	Currency             string            `json:"currency"`
	Sector               string            `json:"sector"`
	Industry             string            `json:"industry"`
	MarketCapitalization int64             `json:"market_capitalization"`
}

// OutputSize selects how much history a price source returns
type OutputSize string

const (
	// OutputSizeCompact returns the latest 100 data points
	OutputSizeCompact OutputSize = "compact"
	// OutputSizeFull returns the full available history
	OutputSizeFull OutputSize = "full"
)

// ParseOutputSize validates an output size, defaulting to compact when empty
func ParseOutputSize(s string) (OutputSize, error) {
	switch OutputSize(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputSizeCompact:
		return OutputSizeCompact, nil
	case OutputSizeFull:
		return OutputSizeFull, nil
	default:
		return "", fmt.Errorf("%w: outputsize must be either compact or full", ErrInvalidArgument)
	}
}

// NormalizeSymbol upper-cases and trims a ticker symbol
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidateSymbol normalizes a symbol and rejects empty ones
func ValidateSymbol(symbol string) (string, error) {
	s := NormalizeSymbol(symbol)
	if s == "" {
		return "", fmt.Errorf("%w: symbol is required", ErrInvalidArgument)
	}
	return s, nil
}

// ValidateQuantity rejects non-positive trade quantities
func ValidateQuantity(quantity int64) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidArgument)
	}
	return nil
}
