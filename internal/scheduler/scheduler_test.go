package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/stockledger/internal/database"
	testhelpers "github.com/aristath/stockledger/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	panic bool
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run() error {
	j.runs.Add(1)
	if j.panic {
		panic("boom")
	}
	return j.err
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("@hourly", &countingJob{name: "hourly"}))
	require.NoError(t, s.AddJob("0 0 3 * * *", &countingJob{name: "nightly"}))
	assert.ElementsMatch(t, []string{"hourly", "nightly"}, s.Jobs())

	err := s.AddJob("not a schedule", &countingJob{name: "broken"})
	assert.Error(t, err)
	assert.Len(t, s.Jobs(), 2)
}

func TestScheduler_RunsJobsOnSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "fast"}
	failing := &countingJob{name: "failing", err: errors.New("nope")}
	panicking := &countingJob{name: "panicking", panic: true}

	require.NoError(t, s.AddJob("@every 1s", job))
	require.NoError(t, s.AddJob("@every 1s", failing))
	require.NoError(t, s.AddJob("@every 1s", panicking))

	s.Start()
	assert.Eventually(t, func() bool {
		return job.runs.Load() >= 1 && failing.runs.Load() >= 1 && panicking.runs.Load() >= 1
	}, 5*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "manual", err: errors.New("failed")}

	err := s.RunNow(job)
	assert.EqualError(t, err, "failed")
	assert.Equal(t, int32(1), job.runs.Load())
}

type fakeBudget struct {
	used  int
	limit int
}

func (b *fakeBudget) ResetDailyCounter()        { b.used = 0 }
func (b *fakeBudget) GetRemainingRequests() int { return b.limit - b.used }

func TestResetRequestBudgetJob(t *testing.T) {
	budget := &fakeBudget{used: 20, limit: 25}
	job := NewResetRequestBudgetJob(budget, zerolog.Nop())

	assert.Equal(t, "reset_request_budget", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, 25, budget.GetRemainingRequests())
}

func TestCheckWALCheckpointsJob_Name(t *testing.T) {
	job := NewCheckWALCheckpointsJob(nil)
	assert.Equal(t, "check_wal_checkpoints", job.Name())
}

func TestCheckWALCheckpointsJob_Run(t *testing.T) {
	ledger, cleanup := testhelpers.NewTestDB(t, "ledger")
	defer cleanup()

	job := NewCheckWALCheckpointsJob(map[string]*database.DB{
		"ledger":      ledger,
		"client_data": nil, // should handle nil databases gracefully
	})
	job.SetLogger(zerolog.Nop())

	assert.NoError(t, job.Run())
}

func TestCheckCoreDatabasesJob_Run(t *testing.T) {
	t.Run("no database", func(t *testing.T) {
		job := NewCheckCoreDatabasesJob(nil)
		assert.Equal(t, "check_core_databases", job.Name())
		assert.NoError(t, job.Run())
	})

	t.Run("healthy ledger", func(t *testing.T) {
		ledger, cleanup := testhelpers.NewTestDB(t, "ledger")
		defer cleanup()

		job := NewCheckCoreDatabasesJob(ledger)
		job.SetLogger(zerolog.Nop())
		assert.NoError(t, job.Run())
	})

	t.Run("closed ledger", func(t *testing.T) {
		ledger, cleanup := testhelpers.NewTestDB(t, "ledger")
		cleanup()

		job := NewCheckCoreDatabasesJob(ledger)
		assert.Error(t, job.Run())
	})
}
