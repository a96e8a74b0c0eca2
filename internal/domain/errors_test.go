package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPricingError_Classification(t *testing.T) {
	unknown := NewPricingError("ZZZZ", fmt.Errorf("lookup: %w", ErrUnknownSymbol))
	assert.True(t, errors.Is(unknown, ErrUnknownSymbol))
	assert.False(t, errors.Is(unknown, ErrPriceUnavailable))

	// Unclassified failures (timeouts, transport errors) become price-unavailable
	timeout := NewPricingError("AAPL", context.DeadlineExceeded)
	assert.True(t, errors.Is(timeout, ErrPriceUnavailable))
	assert.True(t, errors.Is(timeout, context.DeadlineExceeded))
	assert.Contains(t, timeout.Error(), "AAPL")

	var pe *PricingError
	assert.True(t, errors.As(fmt.Errorf("buy: %w", timeout), &pe))
	assert.Equal(t, "AAPL", pe.Symbol)
}

func TestStoreError_MatchesErrStore(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := fmt.Errorf("buy: %w", NewStoreError("commit", cause))

	assert.True(t, errors.Is(err, ErrStore))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrPriceUnavailable))

	var se *StoreError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "commit", se.Op)
}
