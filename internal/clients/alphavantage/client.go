// Package alphavantage provides a client for the Alpha Vantage market data API.
// It implements domain.PriceSource. Responses are not cached here; wrap the
// client in clientdata.CachedPriceSource for that.
package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/aristath/stockledger/internal/domain"
	"github.com/aristath/stockledger/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://www.alphavantage.co/query"
	// DefaultDailyLimit is the free tier request budget
	DefaultDailyLimit = 25
)

// ErrRateLimitExceeded is returned once the daily request budget is spent.
// It matches domain.ErrPriceUnavailable.
type ErrRateLimitExceeded struct {
	Limit int
}

func (e ErrRateLimitExceeded) Error() string {
	return fmt.Sprintf("alpha vantage daily request limit of %d reached", e.Limit)
}

// Is classifies the error as a temporary price outage
func (e ErrRateLimitExceeded) Is(target error) bool {
	return target == domain.ErrPriceUnavailable
}

// FetchObserver receives the latency and outcome of every API request
type FetchObserver interface {
	ObservePriceFetch(operation string, d time.Duration, err error)
}

// Client is the Alpha Vantage API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	observer   FetchObserver
	log        zerolog.Logger

	mu            sync.Mutex
	dailyLimit    int
	requestsToday int
}

// NewClient creates a new Alpha Vantage client with the free tier daily limit.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		dailyLimit: DefaultDailyLimit,
		log:        log.With().Str("component", "alphavantage").Logger(),
	}
}

// SetDailyLimit changes the request budget (premium keys allow more)
func (c *Client) SetDailyLimit(limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit > 0 {
		c.dailyLimit = limit
	}
}

// SetObserver sets the fetch observer (nil disables it)
func (c *Client) SetObserver(o FetchObserver) {
	c.observer = o
}

// GetRemainingRequests returns how many requests are left today
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dailyLimit - c.requestsToday
}

// ResetDailyCounter restores the full daily budget. Called by the scheduler at midnight.
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestsToday = 0
	c.log.Debug().Msg("Daily request counter reset")
}

// checkRateLimit consumes one request from the budget
func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.requestsToday >= c.dailyLimit {
		return ErrRateLimitExceeded{Limit: c.dailyLimit}
	}
	c.requestsToday++
	return nil
}

// GetPrice returns the most recent daily bar for a symbol
func (c *Client) GetPrice(ctx context.Context, symbol string) (*domain.PricePoint, error) {
	symbol = domain.NormalizeSymbol(symbol)

	body, err := c.doRequest(ctx, metrics.PriceOperationQuote, "TIME_SERIES_DAILY", map[string]string{
		"symbol": symbol,
	})
	if err != nil {
		return nil, err
	}

	prices, err := parseDailyTimeSeries(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price for %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("%w: no daily prices for %s", domain.ErrUnknownSymbol, symbol)
	}

	latest := prices[0]
	latest.Symbol = symbol
	return &latest, nil
}

// GetHistoricalPrices returns daily bars for a symbol, newest first
func (c *Client) GetHistoricalPrices(ctx context.Context, symbol string, size domain.OutputSize) (*domain.PriceHistory, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if size == "" {
		size = domain.OutputSizeCompact
	}

	body, err := c.doRequest(ctx, metrics.PriceOperationHistory, "TIME_SERIES_DAILY", map[string]string{
		"symbol":     symbol,
		"outputsize": string(size),
	})
	if err != nil {
		return nil, err
	}

	prices, err := parseDailyTimeSeries(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse history for %s: %w", symbol, err)
	}
	for i := range prices {
		prices[i].Symbol = symbol
	}

	return &domain.PriceHistory{Symbol: symbol, Data: prices}, nil
}

// GetCompanyOverview returns company fundamentals for a symbol
func (c *Client) GetCompanyOverview(ctx context.Context, symbol string) (*domain.CompanyOverview, error) {
	symbol = domain.NormalizeSymbol(symbol)

	body, err := c.doRequest(ctx, metrics.PriceOperationOverview, "OVERVIEW", map[string]string{
		"symbol": symbol,
	})
	if err != nil {
		return nil, err
	}

	overview, err := parseCompanyOverview(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse overview for %s: %w", symbol, err)
	}
	if overview.Symbol == "" {
		// Unknown symbols come back as an empty object
		return nil, fmt.Errorf("%w: no company overview for %s", domain.ErrUnknownSymbol, symbol)
	}

	return overview, nil
}

// doRequest performs a GET against the query endpoint and returns the body.
// API-level errors embedded in a 200 response are classified here.
func (c *Client) doRequest(ctx context.Context, operation, function string, params map[string]string) (body []byte, err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObservePriceFetch(operation, time.Since(start), err)
		}
	}()

	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: alpha vantage API key not configured", domain.ErrPriceUnavailable)
	}
	if err := c.checkRateLimit(); err != nil {
		c.log.Warn().Str("function", function).Msg("Daily request limit reached")
		return nil, err
	}

	query := url.Values{}
	query.Set("function", function)
	query.Set("apikey", c.apiKey)
	for k, v := range params {
		query.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.log.Debug().Str("function", function).Str("symbol", params["symbol"]).Msg("Alpha Vantage request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", domain.ErrPriceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", domain.ErrPriceUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Error().Int("status", resp.StatusCode).Str("function", function).Msg("Alpha Vantage API error")
		return nil, fmt.Errorf("%w: API error (status %d)", domain.ErrPriceUnavailable, resp.StatusCode)
	}

	if err := checkAPIError(body); err != nil {
		c.log.Warn().Err(err).Str("function", function).Str("symbol", params["symbol"]).Msg("Alpha Vantage rejected request")
		return nil, err
	}

	return body, nil
}

// checkAPIError inspects the message fields Alpha Vantage returns with status 200
func checkAPIError(body []byte) error {
	var envelope struct {
		ErrorMessage string `json:"Error Message"`
		Note         string `json:"Note"`
		Information  string `json:"Information"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return fmt.Errorf("%w: malformed response: %w", domain.ErrPriceUnavailable, err)
		}
		// Non-object payloads are left to the specific parser
		return nil
	}

	switch {
	case envelope.ErrorMessage != "":
		return fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, envelope.ErrorMessage)
	case envelope.Note != "":
		return fmt.Errorf("%w: %s", domain.ErrPriceUnavailable, envelope.Note)
	case envelope.Information != "":
		return fmt.Errorf("%w: %s", domain.ErrPriceUnavailable, envelope.Information)
	}
	return nil
}

var _ domain.PriceSource = (*Client)(nil)
