package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/stockledger/internal/database"
)

// RequestBudget reports the remaining market data requests for the day
type RequestBudget interface {
	GetRemainingRequests() int
}

// JobLister lists the names of scheduled jobs
type JobLister interface {
	Jobs() []string
}

// ledgerTables must exist for the ledger to be usable
var ledgerTables = []string{"positions", "transactions"}

// SystemHandlers handles monitoring endpoints
type SystemHandlers struct {
	log          zerolog.Logger
	dataDir      string
	startupTime  time.Time
	ledgerDB     *database.DB
	clientDataDB *database.DB
	budget       RequestBudget
	jobs         JobLister
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	ledgerDB, clientDataDB *database.DB,
	budget RequestBudget,
) *SystemHandlers {
	return &SystemHandlers{
		log:          log.With().Str("component", "system_handlers").Logger(),
		dataDir:      dataDir,
		startupTime:  time.Now(),
		ledgerDB:     ledgerDB,
		clientDataDB: clientDataDB,
		budget:       budget,
	}
}

// SetJobs registers the scheduler so its jobs show up in the status response
func (h *SystemHandlers) SetJobs(jobs JobLister) {
	h.jobs = jobs
}

// DBInfo represents information about a single database
type DBInfo struct {
	Name          string  `json:"name"`
	Path          string  `json:"path"`
	SizeMB        float64 `json:"size_mb"`
	WALSizeMB     float64 `json:"wal_size_mb"`
	PageCount     int64   `json:"page_count"`
	FreelistCount int64   `json:"freelist_count"`
}

// SystemStatusResponse represents the system status payload
type SystemStatusResponse struct {
	Status            string   `json:"status"`
	UptimeSeconds     int64    `json:"uptime_seconds"`
	Goroutines        int      `json:"goroutines"`
	CPUPercent        float64  `json:"cpu_percent"`
	MemoryPercent     float64  `json:"memory_percent"`
	Databases         []DBInfo `json:"databases"`
	RemainingRequests *int     `json:"remaining_market_data_requests,omitempty"`
	Jobs              []string `json:"jobs,omitempty"`
	LastChecked       string   `json:"last_checked"`
}

// HandleDBCheck verifies the ledger database is reachable and intact
func (h *SystemHandlers) HandleDBCheck(w http.ResponseWriter, r *http.Request) {
	if h.ledgerDB == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ledger database not configured"}, h.log)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.ledgerDB.QuickCheck(ctx); err != nil {
		h.log.Error().Err(err).Msg("Ledger database check failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()}, h.log)
		return
	}
	if err := h.ledgerDB.CheckTables(ctx, ledgerTables...); err != nil {
		h.log.Error().Err(err).Msg("Ledger tables missing")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()}, h.log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"database_status": "healthy"}, h.log)
}

// HandleSystemStatus returns process, host and database status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Databases:     []DBInfo{},
		LastChecked:   time.Now().Format(time.RFC3339),
	}

	for _, db := range []*database.DB{h.ledgerDB, h.clientDataDB} {
		if db == nil {
			continue
		}
		info, err := dbInfo(db)
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			response.Status = "degraded"
			continue
		}
		response.Databases = append(response.Databases, info)
	}

	if h.budget != nil {
		remaining := h.budget.GetRemainingRequests()
		response.RemainingRequests = &remaining
	}
	if h.jobs != nil {
		response.Jobs = h.jobs.Jobs()
	}

	writeJSON(w, http.StatusOK, response, h.log)
}

func dbInfo(db *database.DB) (DBInfo, error) {
	stats, err := db.GetStats()
	if err != nil {
		return DBInfo{}, err
	}
	return DBInfo{
		Name:          db.Name(),
		Path:          db.Path(),
		SizeMB:        float64(stats.SizeBytes) / 1024 / 1024,
		WALSizeMB:     float64(stats.WALSizeBytes) / 1024 / 1024,
		PageCount:     stats.PageCount,
		FreelistCount: stats.FreelistCount,
	}, nil
}

// getSystemStats calculates CPU and RAM usage percentages.
// CPU is sampled over 100ms to keep the endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
