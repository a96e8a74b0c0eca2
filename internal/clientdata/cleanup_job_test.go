package clientdata

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExpiryObserver struct {
	observed []int64
}

func (o *recordingExpiryObserver) ObserveExpired(n int64) {
	o.observed = append(o.observed, n)
}

func TestCleanupJobName(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	job := NewCleanupJob(NewRepository(db), zerolog.Nop())
	assert.Equal(t, "client_data_cleanup", job.Name())
}

func TestCleanupJobRun(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	clock := &fixedClock{now: time.Now()}
	repo := NewRepository(db)
	repo.SetClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, TablePrices, "AAPL", "x", time.Minute))
	require.NoError(t, repo.Store(ctx, TableOverviews, "AAPL", "x", time.Minute))
	require.NoError(t, repo.Store(ctx, TableHistory, "AAPL:compact", "x", 48*time.Hour))

	clock.now = clock.now.Add(time.Hour)

	observer := &recordingExpiryObserver{}
	job := NewCleanupJob(repo, zerolog.Nop())
	job.SetObserver(observer)

	require.NoError(t, job.Run())
	assert.Equal(t, []int64{2}, observer.observed)

	var remaining int
	require.NoError(t, db.QueryRow(`
		SELECT (SELECT COUNT(*) FROM current_prices)
		     + (SELECT COUNT(*) FROM company_overview)
		     + (SELECT COUNT(*) FROM price_history)`).Scan(&remaining))
	assert.Equal(t, 1, remaining)

	// Second run has nothing to do
	require.NoError(t, job.Run())
	assert.Equal(t, []int64{2, 0}, observer.observed)
}

func TestCleanupJobRun_DatabaseError(t *testing.T) {
	db := setupTestDB(t)
	job := NewCleanupJob(NewRepository(db), zerolog.Nop())
	require.NoError(t, db.Close())

	assert.Error(t, job.Run())
}
