package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/stockledger/internal/clientdata"
	"github.com/aristath/stockledger/internal/config"
	"github.com/aristath/stockledger/internal/database"
	"github.com/aristath/stockledger/internal/reliability"
	"github.com/aristath/stockledger/internal/scheduler"
)

// minFreeDiskBytes is the free space below which the disk job warns
const minFreeDiskBytes = 500 * 1024 * 1024

// RegisterJobs creates the background jobs and adds them to a new scheduler.
// The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	sched := scheduler.New(log)
	container.Scheduler = sched
	jobs := &JobInstances{}

	add := func(schedule string, job scheduler.Job) error {
		if err := sched.AddJob(schedule, job); err != nil {
			return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
		}
		return nil
	}

	if container.ClientDataRepo != nil {
		cleanup := clientdata.NewCleanupJob(container.ClientDataRepo, log)
		cleanup.SetObserver(container.Metrics)
		if err := add(cfg.Schedules.CacheCleanup, cleanup); err != nil {
			return nil, err
		}
		jobs.CacheCleanup = cleanup
	}

	databases := map[string]*database.DB{"ledger": container.LedgerDB}
	if container.ClientDataDB != nil {
		databases["client_data"] = container.ClientDataDB
	}
	walJob := scheduler.NewCheckWALCheckpointsJob(databases)
	walJob.SetLogger(log)
	if err := add(cfg.Schedules.WALCheckpoint, walJob); err != nil {
		return nil, err
	}
	jobs.WALCheckpoint = walJob

	integrityJob := scheduler.NewCheckCoreDatabasesJob(container.LedgerDB)
	integrityJob.SetLogger(log)
	if err := add(cfg.Schedules.IntegrityCheck, integrityJob); err != nil {
		return nil, err
	}
	jobs.IntegrityCheck = integrityJob

	budgetJob := scheduler.NewResetRequestBudgetJob(container.AlphaVantage, log)
	if err := add(cfg.Schedules.BudgetReset, budgetJob); err != nil {
		return nil, err
	}
	jobs.BudgetReset = budgetJob

	diskJob := reliability.NewDiskSpaceJob(cfg.DataDir, minFreeDiskBytes, log)
	if err := add("@hourly", diskJob); err != nil {
		return nil, err
	}
	jobs.DiskSpace = diskJob

	if container.BackupService != nil {
		backupJob := reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)
		if err := add(cfg.Schedules.Backup, backupJob); err != nil {
			return nil, err
		}
		jobs.Backup = backupJob
	}

	log.Info().Strs("jobs", sched.Jobs()).Msg("Background jobs registered")
	return jobs, nil
}
