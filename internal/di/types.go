// Package di provides dependency injection type definitions.
package di

import (
	"github.com/aristath/stockledger/internal/clientdata"
	"github.com/aristath/stockledger/internal/clients/alphavantage"
	"github.com/aristath/stockledger/internal/database"
	"github.com/aristath/stockledger/internal/domain"
	"github.com/aristath/stockledger/internal/metrics"
	"github.com/aristath/stockledger/internal/modules/ledger"
	"github.com/aristath/stockledger/internal/modules/portfolio"
	ledgerhandlers "github.com/aristath/stockledger/internal/modules/ledger/handlers"
	portfoliohandlers "github.com/aristath/stockledger/internal/modules/portfolio/handlers"
	"github.com/aristath/stockledger/internal/reliability"
	"github.com/aristath/stockledger/internal/scheduler"
)

// Container holds all dependencies for the application.
// It is created by Wire() and owns the database connections.
type Container struct {
	// Databases
	LedgerDB     *database.DB
	ClientDataDB *database.DB // nil unless the sqlite price cache is selected

	Metrics *metrics.Metrics

	// Clients
	AlphaVantage *alphavantage.Client

	// Price cache (all nil when caching is disabled)
	ClientDataRepo *clientdata.Repository
	RedisStore     *clientdata.RedisStore
	PriceCache     clientdata.Cache

	// PriceSource is what the portfolio service reads quotes from
	PriceSource domain.PriceSource

	// Ledger and services
	LedgerStore      *ledger.Store
	PortfolioService *portfolio.PortfolioService
	PortfolioHandler *portfoliohandlers.Handler
	LedgerHandler    *ledgerhandlers.Handler

	// Reliability (nil when backups are disabled)
	BackupService *reliability.BackupService

	Scheduler *scheduler.Scheduler
}

// JobInstances holds references to the registered background jobs
type JobInstances struct {
	CacheCleanup   scheduler.Job // nil unless the sqlite price cache is selected
	WALCheckpoint  scheduler.Job
	IntegrityCheck scheduler.Job
	BudgetReset    scheduler.Job
	DiskSpace      scheduler.Job
	Backup         scheduler.Job // nil when backups are disabled
}

// Close releases connections held by the container. Safe to call more than once.
func (c *Container) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.RedisStore != nil {
		record(c.RedisStore.Close())
		c.RedisStore = nil
	}
	if c.ClientDataDB != nil {
		record(c.ClientDataDB.Close())
		c.ClientDataDB = nil
	}
	if c.LedgerDB != nil {
		record(c.LedgerDB.Close())
		c.LedgerDB = nil
	}
	return firstErr
}
