package clientdata

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aristath/stockledger/internal/domain"
	"github.com/aristath/stockledger/internal/metrics"
	"github.com/rs/zerolog"
)

// LookupObserver is told whether each cache lookup hit
type LookupObserver interface {
	ObserveCacheLookup(operation string, hit bool)
}

// CachedPriceSource wraps a PriceSource with a Cache.
// Fresh entries are served without calling the source. Cache failures are
// logged and never fail a lookup. Expired overview and history entries are
// served when the source is unavailable and the cache keeps stale data;
// quotes never are.
type CachedPriceSource struct {
	source   domain.PriceSource
	cache    Cache
	ttl      TTLConfig
	observer LookupObserver
	log      zerolog.Logger
}

// NewCachedPriceSource creates the decorator. Zero TTLs take the package defaults.
func NewCachedPriceSource(source domain.PriceSource, cache Cache, ttl TTLConfig, log zerolog.Logger) *CachedPriceSource {
	return &CachedPriceSource{
		source: source,
		cache:  cache,
		ttl:    ttl.withDefaults(),
		log:    log.With().Str("component", "price_cache").Logger(),
	}
}

// SetObserver sets the lookup observer (nil disables it)
func (c *CachedPriceSource) SetObserver(o LookupObserver) {
	c.observer = o
}

// GetPrice returns the cached quote or fetches and caches a new one
func (c *CachedPriceSource) GetPrice(ctx context.Context, symbol string) (*domain.PricePoint, error) {
	symbol = domain.NormalizeSymbol(symbol)

	var cached domain.PricePoint
	if c.lookup(ctx, metrics.PriceOperationQuote, TablePrices, symbol, &cached) {
		return &cached, nil
	}

	price, err := c.source.GetPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	c.store(ctx, TablePrices, symbol, price, c.ttl.Price)
	return price, nil
}

// GetCompanyOverview returns the cached overview or fetches and caches a new one
func (c *CachedPriceSource) GetCompanyOverview(ctx context.Context, symbol string) (*domain.CompanyOverview, error) {
	symbol = domain.NormalizeSymbol(symbol)

	var cached domain.CompanyOverview
	if c.lookup(ctx, metrics.PriceOperationOverview, TableOverviews, symbol, &cached) {
		return &cached, nil
	}

	overview, err := c.source.GetCompanyOverview(ctx, symbol)
	if err != nil {
		if c.stale(ctx, err, TableOverviews, symbol, &cached) {
			return &cached, nil
		}
		return nil, err
	}

	c.store(ctx, TableOverviews, symbol, overview, c.ttl.Overview)
	return overview, nil
}

// GetHistoricalPrices returns the cached series or fetches and caches a new one
func (c *CachedPriceSource) GetHistoricalPrices(ctx context.Context, symbol string, size domain.OutputSize) (*domain.PriceHistory, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if size == "" {
		size = domain.OutputSizeCompact
	}
	key := symbol + ":" + string(size)

	var cached domain.PriceHistory
	if c.lookup(ctx, metrics.PriceOperationHistory, TableHistory, key, &cached) {
		return &cached, nil
	}

	history, err := c.source.GetHistoricalPrices(ctx, symbol, size)
	if err != nil {
		if c.stale(ctx, err, TableHistory, key, &cached) {
			return &cached, nil
		}
		return nil, err
	}

	c.store(ctx, TableHistory, key, history, c.ttl.History)
	return history, nil
}

// lookup decodes a fresh entry into dst and reports whether one was found
func (c *CachedPriceSource) lookup(ctx context.Context, operation, table, key string, dst interface{}) bool {
	hit := false
	defer func() {
		if c.observer != nil {
			c.observer.ObserveCacheLookup(operation, hit)
		}
	}()

	data, err := c.cache.GetIfFresh(ctx, table, key)
	if err != nil {
		c.log.Warn().Err(err).Str("table", table).Str("key", key).Msg("Price cache read failed")
		return false
	}
	if data == nil {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.log.Warn().Err(err).Str("table", table).Str("key", key).Msg("Discarding undecodable cache entry")
		return false
	}

	hit = true
	return true
}

// stale serves an expired entry when the source is temporarily unavailable
func (c *CachedPriceSource) stale(ctx context.Context, sourceErr error, table, key string, dst interface{}) bool {
	if !errors.Is(sourceErr, domain.ErrPriceUnavailable) {
		return false
	}
	reader, ok := c.cache.(StaleReader)
	if !ok {
		return false
	}

	data, err := reader.Get(ctx, table, key)
	if err != nil || data == nil {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false
	}

	c.log.Warn().Err(sourceErr).Str("table", table).Str("key", key).Msg("Serving stale cache entry")
	return true
}

func (c *CachedPriceSource) store(ctx context.Context, table, key string, data interface{}, ttl time.Duration) {
	if err := c.cache.Store(ctx, table, key, data, ttl); err != nil {
		c.log.Warn().Err(err).Str("table", table).Str("key", key).Msg("Price cache write failed")
	}
}

var _ domain.PriceSource = (*CachedPriceSource)(nil)
