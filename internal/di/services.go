package di

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stockledger/internal/clientdata"
	"github.com/aristath/stockledger/internal/clients/alphavantage"
	"github.com/aristath/stockledger/internal/config"
	"github.com/aristath/stockledger/internal/metrics"
	"github.com/aristath/stockledger/internal/modules/ledger"
	"github.com/aristath/stockledger/internal/modules/portfolio"
	ledgerhandlers "github.com/aristath/stockledger/internal/modules/ledger/handlers"
	portfoliohandlers "github.com/aristath/stockledger/internal/modules/portfolio/handlers"
	"github.com/aristath/stockledger/internal/reliability"
)

// InitializeServices creates clients, the price cache chain, the ledger store
// and the portfolio service. Databases must already be open.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.LedgerDB == nil {
		return fmt.Errorf("container databases not initialized")
	}

	container.Metrics = metrics.New()

	// Market data
	av := alphavantage.NewClient(cfg.AlphaVantageAPIKey, log)
	av.SetDailyLimit(cfg.AlphaVantageDailyLimit)
	av.SetObserver(container.Metrics)
	container.AlphaVantage = av
	if cfg.AlphaVantageAPIKey == "" {
		log.Warn().Msg("Alpha Vantage API key not configured - price lookups will fail")
	}

	if err := initializePriceCache(ctx, container, cfg, log); err != nil {
		return err
	}

	if container.PriceCache != nil {
		cached := clientdata.NewCachedPriceSource(av, container.PriceCache, clientdata.TTLConfig{
			Price: cfg.Cache.TTL,
		}, log)
		cached.SetObserver(container.Metrics)
		container.PriceSource = cached
	} else {
		container.PriceSource = av
	}

	// Ledger
	store := ledger.NewStore(container.LedgerDB.Conn(), log)
	store.SetObserver(container.Metrics)
	container.LedgerStore = store

	service := portfolio.NewPortfolioService(store, container.PriceSource, cfg.PriceTimeout, log)
	service.SetObserver(container.Metrics)
	container.PortfolioService = service
	container.PortfolioHandler = portfoliohandlers.NewHandler(service, log)
	container.LedgerHandler = ledgerhandlers.NewHandler(store, log)

	// Backups
	if cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(ctx, reliability.S3Config{
			Bucket:          cfg.Backup.Bucket,
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup client: %w", err)
		}
		backup := reliability.NewBackupService(s3Client, cfg.DataDir, log, container.LedgerDB)
		backup.SetObserver(container.Metrics)
		container.BackupService = backup
	}

	log.Info().Msg("Services initialized")
	return nil
}

// initializePriceCache selects the cache backend named in the configuration
func initializePriceCache(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	switch cfg.Cache.Backend {
	case config.CacheBackendSQLite:
		if container.ClientDataDB == nil {
			return fmt.Errorf("client_data database not initialized")
		}
		repo := clientdata.NewRepository(container.ClientDataDB.Conn())
		container.ClientDataRepo = repo
		container.PriceCache = repo

	case config.CacheBackendRedis:
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		store, err := clientdata.NewRedisStore(pingCtx, clientdata.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to connect to redis price cache: %w", err)
		}
		container.RedisStore = store
		container.PriceCache = store

	case config.CacheBackendNone:
		log.Info().Msg("Price cache disabled")

	default:
		return fmt.Errorf("unknown price cache backend %q", cfg.Cache.Backend)
	}
	return nil
}
