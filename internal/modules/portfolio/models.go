package portfolio

import (
	"time"

	"github.com/aristath/stockledger/internal/domain"
	"github.com/shopspring/decimal"
)

// HoldingView is one open position valued at the current price
type HoldingView struct {
	AveragePrice decimal.Decimal `json:"average_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	TotalValue   decimal.Decimal `json:"total_value"`
	CostBasis    decimal.Decimal `json:"cost_basis"`
	GainLoss     decimal.Decimal `json:"gain_loss"`
	GainLossPct  decimal.Decimal `json:"gain_loss_pct"`
	Symbol       string          `json:"symbol"`
	Quantity     int64           `json:"quantity"`
}

// PortfolioView is a user's valued portfolio
type PortfolioView struct {
	Holdings      []HoldingView   `json:"holdings"`
	TotalValue    decimal.Decimal `json:"total_value"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	TotalGainLoss decimal.Decimal `json:"total_gain_loss"`
	UserID        int64           `json:"user_id"`
}

// TradeRecord is the result of an executed buy or sell.
// TotalCost is set for buys, TotalProceeds for sells.
type TradeRecord struct {
	Timestamp         time.Time              `json:"timestamp"`
	TotalCost         *decimal.Decimal       `json:"total_cost,omitempty"`
	TotalProceeds     *decimal.Decimal       `json:"total_proceeds,omitempty"`
	RealizedGain      *decimal.Decimal       `json:"realized_gain,omitempty"`
	Price             decimal.Decimal        `json:"price"`
	AveragePrice      decimal.Decimal        `json:"average_price"` // position average after the trade
	Reference         string                 `json:"reference"`
	Symbol            string                 `json:"symbol"`
	Type              domain.TransactionType `json:"type"`
	TransactionID     int64                  `json:"transaction_id"`
	Quantity          int64                  `json:"quantity"`
	RemainingQuantity int64                  `json:"remaining_quantity"` // position quantity after the trade
}

// Total returns the cost of a buy or the proceeds of a sell
func (r TradeRecord) Total() decimal.Decimal {
	switch {
	case r.TotalCost != nil:
		return *r.TotalCost
	case r.TotalProceeds != nil:
		return *r.TotalProceeds
	default:
		return r.Price.Mul(decimal.NewFromInt(r.Quantity))
	}
}

// TransactionView is a ledger entry as shown in the history
type TransactionView struct {
	Timestamp     time.Time              `json:"timestamp"`
	RealizedGain  *decimal.Decimal       `json:"realized_gain,omitempty"`
	Price         decimal.Decimal        `json:"price"`
	Total         decimal.Decimal        `json:"total"`
	Reference     string                 `json:"reference"`
	Symbol        string                 `json:"symbol"`
	Type          domain.TransactionType `json:"type"`
	TransactionID int64                  `json:"transaction_id"`
	Quantity      int64                  `json:"quantity"`
}

// StockInfo combines the current price, company fundamentals and recent history
type StockInfo struct {
	CurrentPrice   *domain.PricePoint      `json:"current_price"`
	CompanyInfo    *domain.CompanyOverview `json:"company_info"`
	HistoricalData *domain.PriceHistory    `json:"historical_data"`
}

func newTransactionView(t domain.Transaction) TransactionView {
	return TransactionView{
		TransactionID: t.ID,
		Reference:     t.Reference,
		Symbol:        t.Symbol,
		Quantity:      t.Quantity,
		Price:         t.Price,
		Type:          t.Type,
		Timestamp:     t.ExecutedAt,
		Total:         t.Total(),
		RealizedGain:  t.RealizedGain,
	}
}
