package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/stockledger/internal/domain"
	"github.com/aristath/stockledger/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultPriceTimeout bounds a single price lookup when none is configured
const DefaultPriceTimeout = 10 * time.Second

// TradeObserver is notified of every trade attempt and its outcome
type TradeObserver interface {
	ObserveTrade(tradeType, outcome string)
}

// PortfolioService executes trades and values portfolios.
//
// It holds no state of its own: positions and transactions live in the
// LedgerStore, prices come from the PriceSource. Prices are always resolved
// before a ledger transaction is opened, so no lock is held across network I/O.
//
// Dependencies:
//   - domain.LedgerStore: positions and append-only transactions
//   - domain.PriceSource: current prices, fundamentals and history (optionally cached)
type PortfolioService struct {
	store        domain.LedgerStore
	prices       domain.PriceSource
	observer     TradeObserver
	priceTimeout time.Duration
	log          zerolog.Logger
}

// NewPortfolioService creates a new portfolio service
func NewPortfolioService(
	store domain.LedgerStore,
	prices domain.PriceSource,
	priceTimeout time.Duration,
	log zerolog.Logger,
) *PortfolioService {
	if priceTimeout <= 0 {
		priceTimeout = DefaultPriceTimeout
	}
	return &PortfolioService{
		store:        store,
		prices:       prices,
		priceTimeout: priceTimeout,
		log:          log.With().Str("service", "portfolio").Logger(),
	}
}

// SetObserver sets the trade observer (nil disables it)
func (s *PortfolioService) SetObserver(o TradeObserver) {
	s.observer = o
}

// GetPortfolio values every open position of a user at the current price.
// If any price cannot be fetched the whole call fails; no partial portfolio is returned.
func (s *PortfolioService) GetPortfolio(ctx context.Context, userID int64) (*PortfolioView, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	positions, err := s.store.ListPositions(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}

	view := &PortfolioView{
		UserID:        userID,
		Holdings:      make([]HoldingView, 0, len(positions)),
		TotalValue:    decimal.Zero,
		TotalCost:     decimal.Zero,
		TotalGainLoss: decimal.Zero,
	}

	for _, pos := range positions {
		quote, err := s.fetchPrice(ctx, pos.Symbol)
		if err != nil {
			s.log.Warn().Err(err).Int64("user_id", userID).Str("symbol", pos.Symbol).Msg("Portfolio valuation aborted")
			return nil, err
		}

		v := Value(pos, quote.Price())
		view.Holdings = append(view.Holdings, HoldingView{
			Symbol:       pos.Symbol,
			Quantity:     pos.Quantity,
			AveragePrice: pos.AveragePrice,
			CurrentPrice: quote.Price(),
			TotalValue:   v.CurrentValue,
			CostBasis:    v.CostBasis,
			GainLoss:     v.GainLoss,
			GainLossPct:  v.GainLossPct.Round(2),
		})
		view.TotalValue = view.TotalValue.Add(v.CurrentValue)
		view.TotalCost = view.TotalCost.Add(v.CostBasis)
		view.TotalGainLoss = view.TotalGainLoss.Add(v.GainLoss)
	}

	return view, nil
}

// Buy purchases quantity shares of symbol at the current price.
// The position update and the BUY transaction commit together or not at all.
func (s *PortfolioService) Buy(ctx context.Context, userID int64, symbol string, quantity int64) (*TradeRecord, error) {
	symbol, err := validateTrade(userID, symbol, quantity)
	if err != nil {
		s.observe(domain.TransactionTypeBuy, err)
		return nil, err
	}

	quote, err := s.fetchPrice(ctx, symbol)
	if err != nil {
		s.observe(domain.TransactionTypeBuy, err)
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Buy rejected: no price")
		return nil, err
	}
	price := quote.Price()

	var (
		recorded domain.Transaction
		after    domain.Position
	)
	err = s.store.WithTransaction(ctx, func(tx domain.LedgerTx) error {
		prev, err := tx.GetPosition(ctx, userID, symbol)
		if err != nil {
			return err
		}

		after, err = ApplyBuy(prev, userID, symbol, quantity, price)
		if err != nil {
			return err
		}
		if err := tx.UpsertPosition(ctx, prev, after); err != nil {
			return err
		}

		recorded, err = tx.InsertTransaction(ctx, domain.Transaction{
			UserID:   userID,
			Symbol:   symbol,
			Quantity: quantity,
			Price:    price,
			Type:     domain.TransactionTypeBuy,
		})
		return err
	})
	s.observe(domain.TransactionTypeBuy, err)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Str("symbol", symbol).Msg("Buy not recorded")
		return nil, fmt.Errorf("failed to record buy: %w", err)
	}

	total := recorded.Total()
	record := newTradeRecord(recorded, after)
	record.TotalCost = &total

	s.log.Info().
		Int64("user_id", userID).
		Str("symbol", symbol).
		Str("side", string(domain.TransactionTypeBuy)).
		Int64("quantity", quantity).
		Str("price", price.String()).
		Int64("transaction_id", recorded.ID).
		Msg("Buy executed")

	return record, nil
}

// Sell sells quantity shares of symbol at the current price.
// The sufficiency check and the decrement are a single conditional update, so
// concurrent sells can never take a position below zero.
func (s *PortfolioService) Sell(ctx context.Context, userID int64, symbol string, quantity int64) (*TradeRecord, error) {
	symbol, err := validateTrade(userID, symbol, quantity)
	if err != nil {
		s.observe(domain.TransactionTypeSell, err)
		return nil, err
	}

	// Early rejection without a price lookup. The conditional decrement inside
	// the transaction is what enforces the invariant.
	current, err := s.store.GetPosition(ctx, userID, symbol)
	if err != nil {
		s.observe(domain.TransactionTypeSell, err)
		return nil, fmt.Errorf("failed to load position: %w", err)
	}
	if _, err := ApplySell(current, quantity); err != nil {
		s.observe(domain.TransactionTypeSell, err)
		s.log.Warn().Int64("user_id", userID).Str("symbol", symbol).Int64("quantity", quantity).Msg("Sell rejected: insufficient shares")
		return nil, err
	}

	quote, err := s.fetchPrice(ctx, symbol)
	if err != nil {
		s.observe(domain.TransactionTypeSell, err)
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Sell rejected: no price")
		return nil, err
	}
	price := quote.Price()

	var (
		recorded domain.Transaction
		after    domain.Position
	)
	err = s.store.WithTransaction(ctx, func(tx domain.LedgerTx) error {
		prev, err := tx.GetPosition(ctx, userID, symbol)
		if err != nil {
			return err
		}
		if _, err := ApplySell(prev, quantity); err != nil {
			return err
		}

		remaining, err := tx.DecrementPosition(ctx, userID, symbol, quantity)
		if err != nil {
			return err
		}
		after = *remaining

		gain := RealizedGain(prev.AveragePrice, price, quantity)
		recorded, err = tx.InsertTransaction(ctx, domain.Transaction{
			UserID:       userID,
			Symbol:       symbol,
			Quantity:     quantity,
			Price:        price,
			Type:         domain.TransactionTypeSell,
			RealizedGain: &gain,
		})
		return err
	})
	s.observe(domain.TransactionTypeSell, err)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientShares) {
			s.log.Warn().Int64("user_id", userID).Str("symbol", symbol).Int64("quantity", quantity).Msg("Sell rejected: insufficient shares")
			return nil, err
		}
		s.log.Error().Err(err).Int64("user_id", userID).Str("symbol", symbol).Msg("Sell not recorded")
		return nil, fmt.Errorf("failed to record sell: %w", err)
	}

	total := recorded.Total()
	record := newTradeRecord(recorded, after)
	record.TotalProceeds = &total

	s.log.Info().
		Int64("user_id", userID).
		Str("symbol", symbol).
		Str("side", string(domain.TransactionTypeSell)).
		Int64("quantity", quantity).
		Str("price", price.String()).
		Int64("transaction_id", recorded.ID).
		Msg("Sell executed")

	return record, nil
}

// GetTransactionHistory returns a user's transactions, newest first
func (s *PortfolioService) GetTransactionHistory(ctx context.Context, userID int64) ([]TransactionView, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	transactions, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	views := make([]TransactionView, 0, len(transactions))
	for _, t := range transactions {
		views = append(views, newTransactionView(t))
	}
	return views, nil
}

// GetStockInfo combines the current price, company overview and compact
// history for a symbol. Fails if any of the three lookups fails.
func (s *PortfolioService) GetStockInfo(ctx context.Context, symbol string) (*StockInfo, error) {
	symbol, err := domain.ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}

	quote, err := s.fetchPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	overview, err := s.fetchOverview(ctx, symbol)
	if err != nil {
		return nil, err
	}
	history, err := s.fetchHistory(ctx, symbol, domain.OutputSizeCompact)
	if err != nil {
		return nil, err
	}

	return &StockInfo{
		CurrentPrice:   quote,
		CompanyInfo:    overview,
		HistoricalData: history,
	}, nil
}

// GetStockPrice returns the latest daily bar for a symbol
func (s *PortfolioService) GetStockPrice(ctx context.Context, symbol string) (*domain.PricePoint, error) {
	symbol, err := domain.ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return s.fetchPrice(ctx, symbol)
}

// GetCompanyInfo returns company fundamentals for a symbol
func (s *PortfolioService) GetCompanyInfo(ctx context.Context, symbol string) (*domain.CompanyOverview, error) {
	symbol, err := domain.ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	return s.fetchOverview(ctx, symbol)
}

// GetHistoricalData returns daily bars for a symbol. outputSize is "compact"
// (the default when empty) or "full".
func (s *PortfolioService) GetHistoricalData(ctx context.Context, symbol string, outputSize string) (*domain.PriceHistory, error) {
	symbol, err := domain.ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	size, err := domain.ParseOutputSize(outputSize)
	if err != nil {
		return nil, err
	}
	return s.fetchHistory(ctx, symbol, size)
}

func (s *PortfolioService) fetchPrice(ctx context.Context, symbol string) (*domain.PricePoint, error) {
	ctx, cancel := context.WithTimeout(ctx, s.priceTimeout)
	defer cancel()

	quote, err := s.prices.GetPrice(ctx, symbol)
	if err != nil {
		return nil, domain.NewPricingError(symbol, err)
	}
	if quote == nil || !quote.Price().IsPositive() {
		return nil, domain.NewPricingError(symbol, fmt.Errorf("%w: no usable close price", domain.ErrPriceUnavailable))
	}
	return quote, nil
}

func (s *PortfolioService) fetchOverview(ctx context.Context, symbol string) (*domain.CompanyOverview, error) {
	ctx, cancel := context.WithTimeout(ctx, s.priceTimeout)
	defer cancel()

	overview, err := s.prices.GetCompanyOverview(ctx, symbol)
	if err != nil {
		return nil, domain.NewPricingError(symbol, err)
	}
	return overview, nil
}

func (s *PortfolioService) fetchHistory(ctx context.Context, symbol string, size domain.OutputSize) (*domain.PriceHistory, error) {
	ctx, cancel := context.WithTimeout(ctx, s.priceTimeout)
	defer cancel()

	history, err := s.prices.GetHistoricalPrices(ctx, symbol, size)
	if err != nil {
		return nil, domain.NewPricingError(symbol, err)
	}
	return history, nil
}

// observe reports a trade outcome classified from its error
func (s *PortfolioService) observe(t domain.TransactionType, err error) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveTrade(string(t), outcomeFor(err))
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeExecuted
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInsufficientShares):
		return metrics.OutcomeRejected
	case errors.Is(err, domain.ErrUnknownSymbol), errors.Is(err, domain.ErrPriceUnavailable):
		return metrics.OutcomePriceUnavailable
	default:
		return metrics.OutcomeStoreFailure
	}
}

func newTradeRecord(t domain.Transaction, after domain.Position) *TradeRecord {
	return &TradeRecord{
		TransactionID:     t.ID,
		Reference:         t.Reference,
		Symbol:            t.Symbol,
		Type:              t.Type,
		Quantity:          t.Quantity,
		Price:             t.Price,
		RealizedGain:      t.RealizedGain,
		AveragePrice:      after.AveragePrice,
		RemainingQuantity: after.Quantity,
		Timestamp:         t.ExecutedAt,
	}
}

func validateUserID(userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user id must be positive, got %d", domain.ErrInvalidArgument, userID)
	}
	return nil
}

func validateTrade(userID int64, symbol string, quantity int64) (string, error) {
	if err := validateUserID(userID); err != nil {
		return "", err
	}
	if err := domain.ValidateQuantity(quantity); err != nil {
		return "", err
	}
	return domain.ValidateSymbol(symbol)
}
