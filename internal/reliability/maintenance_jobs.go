package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

const backupJobTimeout = 30 * time.Minute

// BackupJob uploads a ledger backup and rotates old ones (scheduled nightly)
type BackupJob struct {
	service       *BackupService
	retentionDays int
	log           zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(service *BackupService, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service:       service,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "ledger_backup").Logger(),
	}
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupJobTimeout)
	defer cancel()

	archive, err := j.service.CreateAndUploadBackup(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Backup failed")
		return err
	}

	deleted, err := j.service.RotateOldBackups(ctx, j.retentionDays)
	if err != nil {
		// The new backup is already stored
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	j.log.Info().Str("archive", archive).Int("rotated", deleted).Msg("Ledger backup job completed")
	return nil
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "ledger_backup"
}

// DiskSpaceJob fails when the data volume runs low on free space
type DiskSpaceJob struct {
	dataDir     string
	minFreeByte uint64
	log         zerolog.Logger
}

// NewDiskSpaceJob creates a new disk space check job. minFreeBytes defaults to 500MB.
func NewDiskSpaceJob(dataDir string, minFreeBytes uint64, log zerolog.Logger) *DiskSpaceJob {
	if minFreeBytes == 0 {
		minFreeBytes = 500 * 1024 * 1024
	}
	return &DiskSpaceJob{
		dataDir:     dataDir,
		minFreeByte: minFreeBytes,
		log:         log.With().Str("job", "disk_space").Logger(),
	}
}

// Run checks free space on the data directory's volume
func (j *DiskSpaceJob) Run() error {
	usage, err := disk.Usage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(usage.Free) / 1e9
	j.log.Debug().Float64("available_gb", availableGB).Float64("used_percent", usage.UsedPercent).Msg("Disk space check")

	if usage.Free < j.minFreeByte {
		j.log.Error().Float64("available_gb", availableGB).Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("only %.2f GB free on %s", availableGB, j.dataDir)
	}

	return nil
}

// Name returns the job name for scheduler
func (j *DiskSpaceJob) Name() string {
	return "disk_space"
}
