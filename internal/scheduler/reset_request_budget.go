package scheduler

import "github.com/rs/zerolog"

// RequestBudget is a market data client with a daily request allowance
type RequestBudget interface {
	ResetDailyCounter()
	GetRemainingRequests() int
}

// ResetRequestBudgetJob restores the market data request budget, scheduled at midnight
type ResetRequestBudgetJob struct {
	budget RequestBudget
	log    zerolog.Logger
}

// NewResetRequestBudgetJob creates a new ResetRequestBudgetJob
func NewResetRequestBudgetJob(budget RequestBudget, log zerolog.Logger) *ResetRequestBudgetJob {
	return &ResetRequestBudgetJob{
		budget: budget,
		log:    log.With().Str("job", "reset_request_budget").Logger(),
	}
}

// Name returns the job name
func (j *ResetRequestBudgetJob) Name() string {
	return "reset_request_budget"
}

// Run resets the counter
func (j *ResetRequestBudgetJob) Run() error {
	unused := j.budget.GetRemainingRequests()
	j.budget.ResetDailyCounter()
	j.log.Info().
		Int("unused", unused).
		Int("remaining", j.budget.GetRemainingRequests()).
		Msg("Market data request budget reset")
	return nil
}
