package alphavantage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aristath/stockledger/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dailySeriesJSON = `{
	"Meta Data": {
		"1. Information": "Daily Prices (open, high, low, close) and Volumes",
		"2. Symbol": "IBM"
	},
	"Time Series (Daily)": {
		"2024-01-12": {
			"1. open": "184.50",
			"2. high": "185.50",
			"3. low": "184.00",
			"4. close": "185.00",
			"5. volume": "3214567"
		},
		"2024-01-15": {
			"1. open": "185.00",
			"2. high": "186.50",
			"3. low": "184.50",
			"4. close": "186.20",
			"5. volume": "3456789"
		}
	}
}`

const overviewJSON = `{
	"Symbol": "IBM",
	"AssetType": "Common Stock",
	"Name": "International Business Machines",
	"Description": "IBM is a technology company.",
	"Exchange": "NYSE",
	"Currency": "USD",
	"Country": "USA",
	"Sector": "Technology",
	"Industry": "Information Technology Services",
	"MarketCapitalization": "125000000000",
	"PERatio": "20.5",
	"EPS": "9.05",
	"DividendYield": "None",
	"52WeekHigh": "200.00",
	"52WeekLow": "120.00",
	"Beta": "0.95"
}`

// newTestClient returns a client pointed at an httptest server running handler
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("test-key", zerolog.Nop())
	client.baseURL = server.URL
	return client
}

type recordingFetchObserver struct {
	mu         sync.Mutex
	operations []string
	failures   int
}

func (o *recordingFetchObserver) ObservePriceFetch(operation string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.operations = append(o.operations, operation)
	if err != nil {
		o.failures++
	}
}

// TestNewClient tests client creation.
func TestNewClient(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	assert.NotNil(t, client)
	assert.Equal(t, "test-key", client.apiKey)
	assert.Equal(t, defaultBaseURL, client.baseURL)
	assert.Equal(t, 25, client.GetRemainingRequests())
}

// TestRateLimiting tests the rate limiting functionality.
func TestRateLimiting(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	// Simulate using all requests
	for i := 0; i < 25; i++ {
		remaining := client.GetRemainingRequests()
		assert.Equal(t, 25-i, remaining)
		err := client.checkRateLimit()
		require.NoError(t, err)
	}

	// 26th request should fail
	err := client.checkRateLimit()
	assert.Error(t, err)
	assert.IsType(t, ErrRateLimitExceeded{}, err)
	assert.True(t, errors.Is(err, domain.ErrPriceUnavailable))
}

// TestResetDailyCounter tests counter reset.
func TestResetDailyCounter(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	for i := 0; i < 10; i++ {
		_ = client.checkRateLimit()
	}
	assert.Equal(t, 15, client.GetRemainingRequests())

	client.ResetDailyCounter()
	assert.Equal(t, 25, client.GetRemainingRequests())
}

func TestSetDailyLimit(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	client.SetDailyLimit(500)
	assert.Equal(t, 500, client.GetRemainingRequests())

	client.SetDailyLimit(0)
	assert.Equal(t, 500, client.GetRemainingRequests(), "non-positive limits are ignored")
}

func TestGetPrice(t *testing.T) {
	var gotQuery map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"function": q.Get("function"),
			"symbol":   q.Get("symbol"),
			"apikey":   q.Get("apikey"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(dailySeriesJSON))
	})
	observer := &recordingFetchObserver{}
	client.SetObserver(observer)

	quote, err := client.GetPrice(context.Background(), "ibm")
	require.NoError(t, err)

	assert.Equal(t, "TIME_SERIES_DAILY", gotQuery["function"])
	assert.Equal(t, "IBM", gotQuery["symbol"])
	assert.Equal(t, "test-key", gotQuery["apikey"])

	assert.Equal(t, "IBM", quote.Symbol)
	assert.Equal(t, 15, quote.Date.Day(), "latest bar is returned")
	assert.True(t, decimal.RequireFromString("186.20").Equal(quote.Close))
	assert.True(t, decimal.RequireFromString("186.20").Equal(quote.Price()))
	assert.Equal(t, int64(3456789), quote.Volume)

	assert.Equal(t, 24, client.GetRemainingRequests())
	assert.Equal(t, []string{"quote"}, observer.operations)
	assert.Equal(t, 0, observer.failures)
}

func TestGetHistoricalPrices(t *testing.T) {
	var gotSize string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotSize = r.URL.Query().Get("outputsize")
		_, _ = w.Write([]byte(dailySeriesJSON))
	})

	history, err := client.GetHistoricalPrices(context.Background(), "IBM", domain.OutputSizeFull)
	require.NoError(t, err)
	assert.Equal(t, "full", gotSize)
	assert.Equal(t, "IBM", history.Symbol)
	require.Len(t, history.Data, 2)
	assert.True(t, history.Data[0].Date.After(history.Data[1].Date))
	assert.Equal(t, "IBM", history.Data[1].Symbol)

	_, err = client.GetHistoricalPrices(context.Background(), "IBM", "")
	require.NoError(t, err)
	assert.Equal(t, "compact", gotSize)
}

func TestGetCompanyOverview(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "OVERVIEW", r.URL.Query().Get("function"))
		_, _ = w.Write([]byte(overviewJSON))
	})

	overview, err := client.GetCompanyOverview(context.Background(), "IBM")
	require.NoError(t, err)

	assert.Equal(t, "IBM", overview.Symbol)
	assert.Equal(t, "International Business Machines", overview.Name)
	assert.Equal(t, "Common Stock", overview.Fields["AssetType"])
	assert.Equal(t, int64(125000000000), overview.MarketCapitalization)
	require.NotNil(t, overview.PERatio)
	assert.Equal(t, 20.5, *overview.PERatio)
	assert.Nil(t, overview.DividendYield)
	require.NotNil(t, overview.FiftyTwoWeekLow)
	assert.Equal(t, 120.0, *overview.FiftyTwoWeekLow)
}

func TestClientErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		call    func(c *Client) error
		wantErr error
	}{
		{
			name:    "invalid symbol",
			status:  http.StatusOK,
			body:    `{"Error Message": "Invalid API call. Please retry or visit the documentation."}`,
			wantErr: domain.ErrUnknownSymbol,
		},
		{
			name:    "throttled",
			status:  http.StatusOK,
			body:    `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`,
			wantErr: domain.ErrPriceUnavailable,
		},
		{
			name:    "premium endpoint",
			status:  http.StatusOK,
			body:    `{"Information": "This is a premium endpoint."}`,
			wantErr: domain.ErrPriceUnavailable,
		},
		{
			name:    "server error",
			status:  http.StatusBadGateway,
			body:    `bad gateway`,
			wantErr: domain.ErrPriceUnavailable,
		},
		{
			name:    "malformed body",
			status:  http.StatusOK,
			body:    `{"Time Series (Daily)": `,
			wantErr: domain.ErrPriceUnavailable,
		},
		{
			name:    "missing series",
			status:  http.StatusOK,
			body:    `{"Meta Data": {}}`,
			wantErr: domain.ErrPriceUnavailable,
		},
		{
			name:    "empty series",
			status:  http.StatusOK,
			body:    `{"Time Series (Daily)": {}}`,
			wantErr: domain.ErrUnknownSymbol,
		},
		{
			name:   "unknown overview",
			status: http.StatusOK,
			body:   `{}`,
			call: func(c *Client) error {
				_, err := c.GetCompanyOverview(context.Background(), "NOPE")
				return err
			},
			wantErr: domain.ErrUnknownSymbol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			call := tt.call
			if call == nil {
				call = func(c *Client) error {
					_, err := c.GetPrice(context.Background(), "NOPE")
					return err
				}
			}

			err := call(client)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestGetPrice_ContextTimeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.GetPrice(ctx, "IBM")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPriceUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestGetPrice_BudgetExhausted(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(dailySeriesJSON))
	})
	client.SetDailyLimit(1)

	_, err := client.GetPrice(context.Background(), "IBM")
	require.NoError(t, err)

	_, err = client.GetPrice(context.Background(), "IBM")
	require.Error(t, err)
	assert.IsType(t, ErrRateLimitExceeded{}, err)
	assert.Equal(t, 1, calls, "no request is sent once the budget is spent")
}

func TestGetPrice_MissingAPIKey(t *testing.T) {
	client := NewClient("", zerolog.Nop())

	_, err := client.GetPrice(context.Background(), "IBM")
	assert.True(t, errors.Is(err, domain.ErrPriceUnavailable))
}

// TestParseFloat64Ptr tests nullable float parsing.
func TestParseFloat64Ptr(t *testing.T) {
	tests := []struct {
		input    string
		isNil    bool
		expected float64
	}{
		{"123.45", false, 123.45},
		{"50.5%", false, 50.5},
		{"None", true, 0},
		{"", true, 0},
		{"null", true, 0},
		{"-", true, 0},
		{"invalid", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseFloat64Ptr(tt.input)
			if tt.isNil {
				assert.Nil(t, result)
			} else {
				require.NotNil(t, result)
				assert.Equal(t, tt.expected, *result)
			}
		})
	}
}

// TestParseInt64 tests integer parsing.
func TestParseInt64(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"12345", 12345},
		{"0", 0},
		{"None", 0},
		{"", 0},
		{"1.5E10", 15000000000},
		{"123.45", 123},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseInt64(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// TestParseDate tests date parsing.
func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		year  int
		month time.Month
		day   int
	}{
		{"2024-01-15", 2024, time.January, 15},
		{"2023-12-31", 2023, time.December, 31},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseDate(tt.input)
			assert.Equal(t, tt.year, result.Year())
			assert.Equal(t, tt.month, result.Month())
			assert.Equal(t, tt.day, result.Day())
		})
	}

	assert.True(t, parseDate("15/01/2024").IsZero())
}

func TestParseDecimal(t *testing.T) {
	v, err := parseDecimal(" 186.2000 ")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("186.2").Equal(v))

	_, err = parseDecimal("None")
	assert.Error(t, err)

	assert.True(t, parseDecimalOrZero("abc").IsZero())
}

// TestParseDailyTimeSeries tests daily time series parsing.
func TestParseDailyTimeSeries(t *testing.T) {
	prices, err := parseDailyTimeSeries([]byte(dailySeriesJSON))
	require.NoError(t, err)
	require.Len(t, prices, 2)

	// Should be sorted newest first
	assert.Equal(t, 2024, prices[0].Date.Year())
	assert.Equal(t, time.January, prices[0].Date.Month())
	assert.Equal(t, 15, prices[0].Date.Day())
	assert.True(t, decimal.RequireFromString("185").Equal(prices[0].Open))
	assert.True(t, decimal.RequireFromString("186.5").Equal(prices[0].High))
	assert.True(t, decimal.RequireFromString("184.5").Equal(prices[0].Low))
	assert.True(t, decimal.RequireFromString("186.2").Equal(prices[0].Close))
	assert.Equal(t, int64(3456789), prices[0].Volume)
}

func TestParseDailyTimeSeries_BadClose(t *testing.T) {
	_, err := parseDailyTimeSeries([]byte(`{"Time Series (Daily)": {"2024-01-15": {"4. close": "None"}}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPriceUnavailable))
}
