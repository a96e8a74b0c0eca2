package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/stockledger/internal/config"
	"github.com/aristath/stockledger/internal/database"
)

// InitializeDatabases opens the ledger database and, for the sqlite price
// cache, the client_data database. Schemas are applied to both.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// ledger.db - positions and the append-only transaction log
	ledgerDB, err := database.New(database.Config{
		Path:    cfg.DBPath,
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger database: %w", err)
	}
	container.LedgerDB = ledgerDB

	// client_data.db - market data response cache
	if cfg.Cache.Backend == config.CacheBackendSQLite {
		clientDataDB, err := database.New(database.Config{
			Path:    cfg.ClientDataPath(),
			Profile: database.ProfileCache,
			Name:    "client_data",
		})
		if err != nil {
			ledgerDB.Close()
			return nil, fmt.Errorf("failed to initialize client_data database: %w", err)
		}
		container.ClientDataDB = clientDataDB
	}

	for _, db := range []*database.DB{container.LedgerDB, container.ClientDataDB} {
		if db == nil {
			continue
		}
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().
		Str("ledger", ledgerDB.Path()).
		Str("cache_backend", cfg.Cache.Backend).
		Msg("Databases initialized and schemas applied")

	return container, nil
}
