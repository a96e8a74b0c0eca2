package clientdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// cleanupTimeout bounds one cleanup run
const cleanupTimeout = time.Minute

// ExpiryObserver is told how many entries each cleanup removed
type ExpiryObserver interface {
	ObserveExpired(n int64)
}

// CleanupJob removes expired entries from all client data tables.
// It should be scheduled to run hourly.
type CleanupJob struct {
	repo     *Repository
	observer ExpiryObserver
	log      zerolog.Logger
}

// NewCleanupJob creates a new client data cleanup job.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "client_data_cleanup").Logger(),
	}
}

// SetObserver sets the expiry observer (nil disables it)
func (j *CleanupJob) SetObserver(o ExpiryObserver) {
	j.observer = o
}

// Run executes the cleanup job, removing all expired entries from all tables.
func (j *CleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	results, err := j.repo.DeleteAllExpired(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired client data")
		return err
	}

	var totalDeleted int64
	for table, count := range results {
		if count > 0 {
			j.log.Debug().
				Str("table", table).
				Int64("deleted", count).
				Msg("Cleaned up expired cache entries")
			totalDeleted += count
		}
	}

	if j.observer != nil {
		j.observer.ObserveExpired(totalDeleted)
	}

	if totalDeleted > 0 {
		j.log.Info().
			Int64("total_deleted", totalDeleted).
			Msg("Client data cleanup completed")
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}
