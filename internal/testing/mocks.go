package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/stockledger/internal/domain"
	"github.com/shopspring/decimal"
)

// MockPriceSource is a mock implementation of domain.PriceSource for testing
type MockPriceSource struct {
	mu        sync.RWMutex
	prices    map[string]decimal.Decimal
	overviews map[string]*domain.CompanyOverview
	histories map[string]*domain.PriceHistory
	errs      map[string]error
	err       error
	delay     time.Duration
	calls     map[string]int
}

// NewMockPriceSource creates a new mock price source
func NewMockPriceSource() *MockPriceSource {
	return &MockPriceSource{
		prices:    make(map[string]decimal.Decimal),
		overviews: make(map[string]*domain.CompanyOverview),
		histories: make(map[string]*domain.PriceHistory),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
	}
}

// SetPrice sets the close price returned for a symbol
func (m *MockPriceSource) SetPrice(symbol string, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[domain.NormalizeSymbol(symbol)] = decimal.RequireFromString(price)
}

// SetOverview sets the company overview returned for a symbol
func (m *MockPriceSource) SetOverview(overview *domain.CompanyOverview) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overviews[domain.NormalizeSymbol(overview.Symbol)] = overview
}

// SetHistory sets the price history returned for a symbol
func (m *MockPriceSource) SetHistory(history *domain.PriceHistory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histories[domain.NormalizeSymbol(history.Symbol)] = history
}

// SetSymbolError makes every call for one symbol fail with err
func (m *MockPriceSource) SetSymbolError(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[domain.NormalizeSymbol(symbol)] = err
}

// SetError sets the error to return for every symbol
func (m *MockPriceSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay makes every call block for d or until the context is done
func (m *MockPriceSource) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns how many times the symbol was requested, across all methods
func (m *MockPriceSource) Calls(symbol string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[domain.NormalizeSymbol(symbol)]
}

// before records the call, applies the delay and returns any configured error
func (m *MockPriceSource) before(ctx context.Context, symbol string) error {
	m.mu.Lock()
	symbol = domain.NormalizeSymbol(symbol)
	m.calls[symbol]++
	delay := m.delay
	err := m.err
	if symErr, ok := m.errs[symbol]; ok {
		err = symErr
	}
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", domain.ErrPriceUnavailable, ctx.Err())
		case <-timer.C:
		}
	}
	return err
}

// GetPrice returns the configured price as the close of today's bar
func (m *MockPriceSource) GetPrice(ctx context.Context, symbol string) (*domain.PricePoint, error) {
	if err := m.before(ctx, symbol); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	symbol = domain.NormalizeSymbol(symbol)
	price, ok := m.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, symbol)
	}
	return &domain.PricePoint{
		Symbol: symbol,
		Date:   time.Now().UTC().Truncate(24 * time.Hour),
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
	}, nil
}

// GetCompanyOverview returns the configured overview
func (m *MockPriceSource) GetCompanyOverview(ctx context.Context, symbol string) (*domain.CompanyOverview, error) {
	if err := m.before(ctx, symbol); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	symbol = domain.NormalizeSymbol(symbol)
	overview, ok := m.overviews[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, symbol)
	}
	return overview, nil
}

// GetHistoricalPrices returns the configured history
func (m *MockPriceSource) GetHistoricalPrices(ctx context.Context, symbol string, size domain.OutputSize) (*domain.PriceHistory, error) {
	if err := m.before(ctx, symbol); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	symbol = domain.NormalizeSymbol(symbol)
	history, ok := m.histories[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, symbol)
	}
	return history, nil
}

var _ domain.PriceSource = (*MockPriceSource)(nil)
