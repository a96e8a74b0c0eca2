package clientdata

import "time"

// Default TTLs, added to the store time to compute expires_at.
const (
	// TTLCurrentPrice bounds how stale a trade or valuation price may be
	TTLCurrentPrice = 15 * time.Minute
	// TTLCompanyOverview - fundamentals change with quarterly filings
	TTLCompanyOverview = 7 * 24 * time.Hour
	// TTLPriceHistory - a new daily bar appears once per trading day
	TTLPriceHistory = 12 * time.Hour
)

// TTLConfig holds the TTL per cached payload kind
type TTLConfig struct {
	Price    time.Duration
	Overview time.Duration
	History  time.Duration
}

// DefaultTTLConfig returns the package defaults
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		Price:    TTLCurrentPrice,
		Overview: TTLCompanyOverview,
		History:  TTLPriceHistory,
	}
}

// withDefaults fills zero TTLs from the defaults
func (c TTLConfig) withDefaults() TTLConfig {
	d := DefaultTTLConfig()
	if c.Price <= 0 {
		c.Price = d.Price
	}
	if c.Overview <= 0 {
		c.Overview = d.Overview
	}
	if c.History <= 0 {
		c.History = d.History
	}
	return c
}
