package scheduler

import (
	"github.com/aristath/stockledger/internal/database"
	"github.com/rs/zerolog"
)

// walFramesThreshold is the WAL size, in frames, above which a TRUNCATE checkpoint is forced
const walFramesThreshold = 1000

// CheckWALCheckpointsJob keeps WAL files bounded on every open database
type CheckWALCheckpointsJob struct {
	log       zerolog.Logger
	databases map[string]*database.DB
}

// NewCheckWALCheckpointsJob creates a new CheckWALCheckpointsJob.
// Nil databases are skipped.
func NewCheckWALCheckpointsJob(databases map[string]*database.DB) *CheckWALCheckpointsJob {
	return &CheckWALCheckpointsJob{
		log:       zerolog.Nop(),
		databases: databases,
	}
}

// SetLogger sets the logger for the job
func (j *CheckWALCheckpointsJob) SetLogger(log zerolog.Logger) {
	j.log = log.With().Str("job", j.Name()).Logger()
}

// Name returns the job name
func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

// Run executes the check WAL checkpoints job
func (j *CheckWALCheckpointsJob) Run() error {
	checkedCount := 0
	for name, db := range j.databases {
		if db == nil {
			continue
		}

		// PRAGMA wal_checkpoint returns: busy, log, checkpointed
		var busy, walFrames, checkpointed int
		err := db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &walFrames, &checkpointed)
		if err != nil {
			j.log.Warn().
				Err(err).
				Str("database", name).
				Msg("Failed to check WAL checkpoint")
			continue
		}

		if walFrames > walFramesThreshold {
			j.log.Warn().
				Str("database", name).
				Int("wal_frames", walFrames).
				Int("checkpointed", checkpointed).
				Msg("WAL file is large, forcing checkpoint")
			if err := db.WALCheckpoint("TRUNCATE"); err != nil {
				j.log.Warn().Err(err).Str("database", name).Msg("Forced checkpoint failed")
			}
		} else {
			j.log.Debug().
				Str("database", name).
				Int("wal_frames", walFrames).
				Msg("WAL checkpoint status OK")
		}

		checkedCount++
	}

	j.log.Debug().
		Int("checked", checkedCount).
		Msg("WAL checkpoint check completed")

	return nil
}
