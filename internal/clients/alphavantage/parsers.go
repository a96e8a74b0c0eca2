package alphavantage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/stockledger/internal/domain"
	"github.com/shopspring/decimal"
)

// dailyBar is one entry of "Time Series (Daily)"
type dailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// parseDailyTimeSeries parses a TIME_SERIES_DAILY response, newest first
func parseDailyTimeSeries(data []byte) ([]domain.PricePoint, error) {
	var response struct {
		TimeSeries map[string]dailyBar `json:"Time Series (Daily)"`
	}
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPriceUnavailable, err)
	}
	if response.TimeSeries == nil {
		return nil, fmt.Errorf("%w: response has no daily time series", domain.ErrPriceUnavailable)
	}

	prices := make([]domain.PricePoint, 0, len(response.TimeSeries))
	for dateStr, bar := range response.TimeSeries {
		date := parseDate(dateStr)
		if date.IsZero() {
			continue
		}

		closePrice, err := parseDecimal(bar.Close)
		if err != nil {
			return nil, fmt.Errorf("%w: close on %s: %w", domain.ErrPriceUnavailable, dateStr, err)
		}

		prices = append(prices, domain.PricePoint{
			Date:   date,
			Open:   parseDecimalOrZero(bar.Open),
			High:   parseDecimalOrZero(bar.High),
			Low:    parseDecimalOrZero(bar.Low),
			Close:  closePrice,
			Volume: parseInt64(bar.Volume),
		})
	}

	sort.Slice(prices, func(i, j int) bool {
		return prices[i].Date.After(prices[j].Date)
	})

	return prices, nil
}

// parseCompanyOverview parses an OVERVIEW response
func parseCompanyOverview(data []byte) (*domain.CompanyOverview, error) {
	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPriceUnavailable, err)
	}

	return &domain.CompanyOverview{
		Fields:               fields,
		Symbol:               fields["Symbol"],
		Name:                 fields["Name"],
		Description:          fields["Description"],
		Exchange:             fields["Exchange"],
		Currency:             fields["Currency"],
		Sector:               fields["Sector"],
		Industry:             fields["Industry"],
		MarketCapitalization: parseInt64(fields["MarketCapitalization"]),
		PERatio:              parseFloat64Ptr(fields["PERatio"]),
		EPS:                  parseFloat64Ptr(fields["EPS"]),
		Beta:                 parseFloat64Ptr(fields["Beta"]),
		DividendYield:        parseFloat64Ptr(fields["DividendYield"]),
		FiftyTwoWeekHigh:     parseFloat64Ptr(fields["52WeekHigh"]),
		FiftyTwoWeekLow:      parseFloat64Ptr(fields["52WeekLow"]),
	}, nil
}

// isBlank reports whether Alpha Vantage used one of its "no value" markers
func isBlank(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "None", "null", "-":
		return true
	}
	return false
}

// parseDecimal parses a price string exactly
func parseDecimal(s string) (decimal.Decimal, error) {
	if isBlank(s) {
		return decimal.Zero, fmt.Errorf("empty value")
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}

func parseDecimalOrZero(s string) decimal.Decimal {
	v, err := parseDecimal(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}

// parseFloat64Ptr parses a numeric field, nil for blanks and junk.
// Percent signs are stripped.
func parseFloat64Ptr(s string) *float64 {
	if isBlank(s) {
		return nil
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseInt64 parses integer fields, including ones sent in float or exponent form
func parseInt64(s string) int64 {
	if isBlank(s) {
		return 0
	}
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}

// parseDate parses YYYY-MM-DD, zero time on failure
func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
