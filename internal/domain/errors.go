package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the portfolio engine. Callers classify with errors.Is.
var (
	// ErrInvalidArgument is a caller error (bad quantity, symbol, user id)
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownSymbol means the price source does not know the symbol
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrPriceUnavailable means the price source could not produce a price right now
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrInsufficientShares means a sell asked for more shares than are held
	ErrInsufficientShares = errors.New("insufficient shares for sale")
	// ErrStore is an infrastructure failure in the ledger store
	ErrStore = errors.New("ledger store failure")
)

// PricingError reports that a trade or valuation could not be priced
type PricingError struct {
	Err    error
	Symbol string
}

func (e *PricingError) Error() string {
	return fmt.Sprintf("could not price %s: %v", e.Symbol, e.Err)
}

func (e *PricingError) Unwrap() error {
	return e.Err
}

// NewPricingError wraps a price source failure. Errors that are not already
// classified as unknown-symbol or price-unavailable are classified as unavailable.
func NewPricingError(symbol string, err error) *PricingError {
	if !errors.Is(err, ErrUnknownSymbol) && !errors.Is(err, ErrPriceUnavailable) {
		err = fmt.Errorf("%w: %w", ErrPriceUnavailable, err)
	}
	return &PricingError{Symbol: symbol, Err: err}
}

// StoreError reports that the ledger could not read or record data
type StoreError struct {
	Err error
	Op  string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("ledger store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is makes every StoreError match ErrStore
func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

// NewStoreError wraps an infrastructure failure for the given operation
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}
