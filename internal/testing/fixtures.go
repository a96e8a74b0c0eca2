package testing

import (
	"time"

	"github.com/aristath/stockledger/internal/domain"
	"github.com/shopspring/decimal"
)

// NewOverviewFixture returns a company overview with the common fields populated
func NewOverviewFixture(symbol, name string) *domain.CompanyOverview {
	pe := 28.5
	beta := 1.2
	return &domain.CompanyOverview{
		Symbol:               symbol,
		Name:                 name,
		Description:          name + " designs and sells things.",
		Exchange:             "NASDAQ",
		Currency:             "USD",
		Sector:               "TECHNOLOGY",
		Industry:             "ELECTRONIC COMPUTERS",
		MarketCapitalization: 3000000000000,
		PERatio:              &pe,
		Beta:                 &beta,
		Fields: map[string]string{
			"Symbol":   symbol,
			"Name":     name,
			"Exchange": "NASDAQ",
			"PERatio":  "28.5",
			"Beta":     "1.2",
		},
	}
}

// NewHistoryFixture returns days daily bars ending today, newest first,
// with closes stepping down by one from start
func NewHistoryFixture(symbol string, start float64, days int) *domain.PriceHistory {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	data := make([]domain.PricePoint, 0, days)
	for i := 0; i < days; i++ {
		c := decimal.NewFromFloat(start - float64(i))
		data = append(data, domain.PricePoint{
			Symbol: symbol,
			Date:   today.AddDate(0, 0, -i),
			Open:   c,
			High:   c.Add(decimal.NewFromInt(1)),
			Low:    c.Sub(decimal.NewFromInt(1)),
			Close:  c,
			Volume: int64(1000 * (i + 1)),
		})
	}
	return &domain.PriceHistory{Symbol: symbol, Data: data}
}
