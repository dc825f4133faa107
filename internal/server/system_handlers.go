package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/qrepeater/internal/database"
	"github.com/aristath/qrepeater/internal/events"
	"github.com/aristath/qrepeater/internal/modules/simulation"
	"github.com/aristath/qrepeater/internal/scheduler"
)

// counter is satisfied by the run and sweep repositories
type counter interface {
	Count(ctx context.Context) (int, error)
}

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	db          *database.DB
	simulator   *simulation.Simulator
	runs        counter
	sweeps      counter
	bus         *events.Bus
	scheduler   *scheduler.Scheduler

	// Set after job registration
	maintenanceJob scheduler.Job
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	db *database.DB,
	simulator *simulation.Simulator,
	runs counter,
	sweeps counter,
	bus *events.Bus,
	sched *scheduler.Scheduler,
) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("service", "system").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		db:          db,
		simulator:   simulator,
		runs:        runs,
		sweeps:      sweeps,
		bus:         bus,
		scheduler:   sched,
	}
}

// SetMaintenanceJob registers the database maintenance job for manual triggering
func (h *SystemHandlers) SetMaintenanceJob(job scheduler.Job) {
	h.maintenanceJob = job
}

// SystemStatusResponse represents system status
type SystemStatusResponse struct {
	Status        string  `json:"status"` // "healthy" or "degraded"
	UptimeSeconds float64 `json:"uptime_seconds"`
	Workers       int     `json:"workers"`
	GoRoutines    int     `json:"goroutines"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	Runs          int     `json:"runs"`
	Sweeps        int     `json:"sweeps"`
	Subscribers   int     `json:"subscribers"`
	Database      string  `json:"database"` // "ok" or the health check error
}

// DatabaseStatsResponse represents database statistics
type DatabaseStatsResponse struct {
	Name        string         `json:"name"`
	Path        string         `json:"path"`
	SizeMB      float64        `json:"size_mb"`
	WALSizeMB   float64        `json:"wal_size_mb"`
	RowCounts   map[string]int `json:"row_counts"`
	LastChecked string         `json:"last_checked"`
}

// DiskUsageResponse represents disk usage statistics
type DiskUsageResponse struct {
	DataDirMB   float64 `json:"data_dir_mb"`
	TotalMB     float64 `json:"total_mb"`
	AvailableMB float64 `json:"available_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// JobsStatusResponse lists scheduled jobs
type JobsStatusResponse struct {
	Jobs []scheduler.Entry `json:"jobs"`
}

// GetSystemStatusSnapshot returns a snapshot of the current system status.
// Counting errors degrade the status instead of failing the call.
func (h *SystemHandlers) GetSystemStatusSnapshot(ctx context.Context) (SystemStatusResponse, error) {
	var firstErr error
	recordErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: time.Since(h.startupTime).Seconds(),
		GoRoutines:    runtime.NumGoroutine(),
		Subscribers:   h.bus.Subscribers(),
		Database:      "ok",
	}
	if h.simulator != nil {
		response.Workers = h.simulator.Workers()
	}

	response.CPUPercent, response.MemoryPercent = h.getSystemStats()

	if h.runs != nil {
		n, err := h.runs.Count(ctx)
		recordErr(err)
		response.Runs = n
	}
	if h.sweeps != nil {
		n, err := h.sweeps.Count(ctx)
		recordErr(err)
		response.Sweeps = n
	}

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			recordErr(err)
			response.Database = err.Error()
		}
	}

	if firstErr != nil {
		response.Status = "degraded"
	}
	return response, firstErr
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	response, err := h.GetSystemStatusSnapshot(r.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("System status collected with warnings")
	}

	h.writeJSON(w, response)
}

// HandleModel handles GET /api/system/model with the physical link constants
func (h *SystemHandlers) HandleModel(w http.ResponseWriter, r *http.Request) {
	if h.simulator == nil {
		http.Error(w, "Simulator not available", http.StatusServiceUnavailable)
		return
	}
	h.writeJSON(w, h.simulator.Model())
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	if h.db == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	response := DatabaseStatsResponse{
		Name:        h.db.Name(),
		Path:        h.db.Path(),
		SizeMB:      fileSizeMB(h.db.Path()),
		WALSizeMB:   fileSizeMB(h.db.Path() + "-wal"),
		RowCounts:   make(map[string]int),
		LastChecked: time.Now().Format(time.RFC3339),
	}

	for _, table := range []string{"simulation_runs", "sweeps", "sweep_points"} {
		var n int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		if err := h.db.Conn().QueryRowContext(r.Context(), query).Scan(&n); err != nil {
			h.log.Warn().Err(err).Str("table", table).Msg("Failed to count rows")
			continue
		}
		response.RowCounts[table] = n
	}

	h.writeJSON(w, response)
}

// HandleDiskUsage handles GET /api/system/disk
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting disk usage")

	response := DiskUsageResponse{
		DataDirMB: h.getDirSize(h.dataDir),
	}

	usage, err := disk.Usage(h.dataDir)
	if err != nil {
		h.log.Warn().Err(err).Str("dir", h.dataDir).Msg("Failed to read filesystem usage")
	} else {
		response.TotalMB = float64(usage.Total) / 1024 / 1024
		response.AvailableMB = float64(usage.Free) / 1024 / 1024
		response.UsedPercent = usage.UsedPercent
	}

	h.writeJSON(w, response)
}

// HandleJobsStatus handles GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	response := JobsStatusResponse{Jobs: []scheduler.Entry{}}
	if h.scheduler != nil {
		response.Jobs = h.scheduler.Entries()
	}
	h.writeJSON(w, response)
}

// HandleTriggerMaintenance handles POST /api/system/jobs/maintenance
func (h *SystemHandlers) HandleTriggerMaintenance(w http.ResponseWriter, r *http.Request) {
	if h.maintenanceJob == nil {
		http.Error(w, "Maintenance job not registered", http.StatusServiceUnavailable)
		return
	}

	var err error
	if h.scheduler != nil {
		err = h.scheduler.RunNow(h.maintenanceJob)
	} else {
		err = h.maintenanceJob.Run()
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Maintenance job failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{
		"status":  "success",
		"message": "Database maintenance completed",
	})
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats returns CPU and RAM usage percentages. CPU is sampled over
// 100ms to keep the call fast.
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

func fileSizeMB(path string) float64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return float64(info.Size()) / 1024 / 1024
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
