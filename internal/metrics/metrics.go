// Package metrics holds the Prometheus collectors for the ledger service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Trade outcomes
const (
	OutcomeExecuted           = "executed"
	OutcomeRejected           = "rejected" // invalid argument or insufficient shares
	OutcomePriceUnavailable   = "price_unavailable"
	OutcomeStoreFailure       = "store_failure"
	CacheResultHit            = "hit"
	CacheResultMiss           = "miss"
	PriceOperationQuote       = "quote"
	PriceOperationOverview    = "overview"
	PriceOperationHistory     = "history"
	defaultNamespace          = "stockledger"
	defaultLatencyBucketStart = 0.001
)

// Metrics holds all Prometheus metrics for the service.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	TradesTotal          *prometheus.CounterVec   // labels: type, outcome
	LedgerCommitDur      prometheus.Histogram     // successful WithTransaction calls
	LedgerCommitFailures prometheus.Counter       // rolled back or failed to commit
	PriceFetchDur        *prometheus.HistogramVec // labels: operation
	PriceFetchFailures   *prometheus.CounterVec   // labels: operation
	PriceCacheLookups    *prometheus.CounterVec   // labels: operation, result
	CacheEntriesExpired  prometheus.Counter
	BackupsTotal         *prometheus.CounterVec // labels: outcome
}

// New creates the metrics and registers them on a private registry
// together with the Go runtime and process collectors.
func New() *Metrics {
	buckets := prometheus.ExponentialBuckets(defaultLatencyBucketStart, 2, 14)

	m := &Metrics{
		registry: prometheus.NewRegistry(),

		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: defaultNamespace,
			Name:      "trades_total",
			Help:      "Trades attempted, by type and outcome",
		}, []string{"type", "outcome"}),
		LedgerCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: defaultNamespace,
			Name:      "ledger_commit_duration_seconds",
			Help:      "Ledger transaction latency from BEGIN to COMMIT",
			Buckets:   buckets,
		}),
		LedgerCommitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: defaultNamespace,
			Name:      "ledger_commit_failures_total",
			Help:      "Ledger transactions that rolled back",
		}),
		PriceFetchDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: defaultNamespace,
			Name:      "price_fetch_duration_seconds",
			Help:      "Price source request latency",
			Buckets:   buckets,
		}, []string{"operation"}),
		PriceFetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: defaultNamespace,
			Name:      "price_fetch_failures_total",
			Help:      "Price source requests that returned an error",
		}, []string{"operation"}),
		PriceCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: defaultNamespace,
			Name:      "price_cache_lookups_total",
			Help:      "Price cache lookups, by operation and hit or miss",
		}, []string{"operation", "result"}),
		CacheEntriesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: defaultNamespace,
			Name:      "cache_entries_expired_total",
			Help:      "Expired cache rows removed by the cleanup job",
		}),
		BackupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: defaultNamespace,
			Name:      "backups_total",
			Help:      "Ledger backups, by outcome",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.TradesTotal,
		m.LedgerCommitDur,
		m.LedgerCommitFailures,
		m.PriceFetchDur,
		m.PriceFetchFailures,
		m.PriceCacheLookups,
		m.CacheEntriesExpired,
		m.BackupsTotal,
	)

	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTrade counts one trade attempt
func (m *Metrics) ObserveTrade(tradeType, outcome string) {
	if m == nil {
		return
	}
	m.TradesTotal.WithLabelValues(tradeType, outcome).Inc()
}

// ObserveCommit records a ledger transaction result
func (m *Metrics) ObserveCommit(d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.LedgerCommitFailures.Inc()
		return
	}
	m.LedgerCommitDur.Observe(d.Seconds())
}

// ObservePriceFetch records a price source request
func (m *Metrics) ObservePriceFetch(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.PriceFetchDur.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil {
		m.PriceFetchFailures.WithLabelValues(operation).Inc()
	}
}

// ObserveCacheLookup counts a price cache hit or miss
func (m *Metrics) ObserveCacheLookup(operation string, hit bool) {
	if m == nil {
		return
	}
	result := CacheResultMiss
	if hit {
		result = CacheResultHit
	}
	m.PriceCacheLookups.WithLabelValues(operation, result).Inc()
}

// ObserveExpired adds n removed cache rows
func (m *Metrics) ObserveExpired(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.CacheEntriesExpired.Add(float64(n))
}

// ObserveBackup counts one backup run
func (m *Metrics) ObserveBackup(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.BackupsTotal.WithLabelValues(outcome).Inc()
}
