package portfolio

import (
	"fmt"

	"github.com/aristath/stockledger/internal/domain"
	"github.com/shopspring/decimal"
)

// AveragePricePrecision is the number of decimal places kept on a position's
// average price. Divisions are rounded half away from zero to this precision.
const AveragePricePrecision = 10

// ApplyBuy returns the position after buying quantity shares at price.
// prev may be nil (first buy) or an emptied position; in both cases the
// new average is the buy price.
func ApplyBuy(prev *domain.Position, userID int64, symbol string, quantity int64, price decimal.Decimal) (domain.Position, error) {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return domain.Position{}, err
	}
	if !price.IsPositive() {
		return domain.Position{}, fmt.Errorf("%w: price must be positive, got %s", domain.ErrInvalidArgument, price)
	}

	if prev == nil || prev.Quantity <= 0 {
		next := domain.Position{
			UserID:       userID,
			Symbol:       symbol,
			Quantity:     quantity,
			AveragePrice: price,
		}
		if prev != nil {
			next.CreatedAt = prev.CreatedAt
			next.Version = prev.Version
		}
		return next, nil
	}

	held := decimal.NewFromInt(prev.Quantity)
	bought := decimal.NewFromInt(quantity)
	total := prev.Quantity + quantity

	// (q*a + n*p) / (q+n)
	avg := held.Mul(prev.AveragePrice).
		Add(bought.Mul(price)).
		DivRound(decimal.NewFromInt(total), AveragePricePrecision)

	next := *prev
	next.Quantity = total
	next.AveragePrice = avg
	return next, nil
}

// ApplySell returns the position after selling quantity shares.
// The average price is unchanged by a sale. Returns ErrInsufficientShares when
// prev does not hold at least quantity shares.
func ApplySell(prev *domain.Position, quantity int64) (domain.Position, error) {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return domain.Position{}, err
	}
	if prev == nil || prev.Quantity < quantity {
		held := int64(0)
		if prev != nil {
			held = prev.Quantity
		}
		return domain.Position{}, fmt.Errorf("%w: requested %d, held %d", domain.ErrInsufficientShares, quantity, held)
	}

	next := *prev
	next.Quantity -= quantity
	return next, nil
}

// RealizedGain is (price - average) * quantity for a sale against avgPrice
func RealizedGain(avgPrice, price decimal.Decimal, quantity int64) decimal.Decimal {
	return price.Sub(avgPrice).Mul(decimal.NewFromInt(quantity))
}

// Valuation is the market view of one position at a price
type Valuation struct {
	CostBasis    decimal.Decimal
	CurrentValue decimal.Decimal
	GainLoss     decimal.Decimal
	GainLossPct  decimal.Decimal // percent of cost basis, zero when the basis is zero
}

// Value values a position at price
func Value(pos domain.Position, price decimal.Decimal) Valuation {
	qty := decimal.NewFromInt(pos.Quantity)
	v := Valuation{
		CostBasis:    pos.CostBasis(),
		CurrentValue: price.Mul(qty),
	}
	v.GainLoss = v.CurrentValue.Sub(v.CostBasis)
	if v.CostBasis.IsPositive() {
		v.GainLossPct = v.GainLoss.Div(v.CostBasis).Mul(decimal.NewFromInt(100))
	}
	return v
}
