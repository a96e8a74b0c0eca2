package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/stockledger/internal/database"
	"github.com/rs/zerolog"
)

const integrityCheckTimeout = 5 * time.Minute

// CheckCoreDatabasesJob verifies integrity of the ledger database
type CheckCoreDatabasesJob struct {
	log      zerolog.Logger
	ledgerDB *database.DB
}

// NewCheckCoreDatabasesJob creates a new CheckCoreDatabasesJob
func NewCheckCoreDatabasesJob(ledgerDB *database.DB) *CheckCoreDatabasesJob {
	return &CheckCoreDatabasesJob{
		log:      zerolog.Nop(),
		ledgerDB: ledgerDB,
	}
}

// SetLogger sets the logger for the job
func (j *CheckCoreDatabasesJob) SetLogger(log zerolog.Logger) {
	j.log = log.With().Str("job", j.Name()).Logger()
}

// Name returns the job name
func (j *CheckCoreDatabasesJob) Name() string {
	return "check_core_databases"
}

// Run executes the check core databases job
func (j *CheckCoreDatabasesJob) Run() error {
	if j.ledgerDB == nil {
		j.log.Warn().Msg("Ledger database not initialized, skipping")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), integrityCheckTimeout)
	defer cancel()

	if err := j.ledgerDB.HealthCheck(ctx); err != nil {
		// Ledger corruption is critical - cannot auto-recover
		j.log.Error().Err(err).Msg("Ledger integrity check failed")
		return fmt.Errorf("database %s is corrupted: %w", j.ledgerDB.Name(), err)
	}

	j.log.Info().Msg("Ledger integrity check passed")
	return nil
}
