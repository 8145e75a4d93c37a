package server

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/leenamkee/quant-portfolio/internal/scheduler"
)

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	appDBPath   string
	priceDBPath string
	scheduler   *scheduler.Scheduler
	refreshJob  scheduler.Job
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, appDBPath, priceDBPath string, sched *scheduler.Scheduler) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
		appDBPath:   appDBPath,
		priceDBPath: priceDBPath,
		scheduler:   sched,
	}
}

// SetRefreshJob registers the price refresh job for manual triggering.
// Called after job registration in main.go.
func (h *SystemHandlers) SetRefreshJob(job scheduler.Job) {
	h.refreshJob = job
}

// HandleStats handles GET /api/system/stats.
func (h *SystemHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.getSystemStats()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := map[string]interface{}{
		"status":       "running",
		"uptime_hours": time.Since(h.startupTime).Hours(),
		"cpu_percent":  cpuPercent,
		"ram_percent":  ramPercent,
		"process": map[string]interface{}{
			"alloc_mb":   m.Alloc / 1024 / 1024,
			"sys_mb":     m.Sys / 1024 / 1024,
			"num_gc":     m.NumGC,
			"goroutines": runtime.NumGoroutine(),
		},
		"databases": map[string]interface{}{
			"app_mb":   fileSizeMB(h.appDBPath),
			"price_mb": fileSizeMB(h.priceDBPath),
		},
	}

	if jobs := h.scheduler.Jobs(); len(jobs) > 0 {
		response["jobs"] = jobs
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleTriggerRefresh handles POST /api/system/jobs/refresh: runs the
// price cache refresh immediately instead of waiting for the schedule.
func (h *SystemHandlers) HandleTriggerRefresh(w http.ResponseWriter, r *http.Request) {
	if h.refreshJob == nil {
		h.log.Warn().Msg("Refresh job not registered yet")
		h.writeError(w, http.StatusServiceUnavailable, "Refresh job not registered")
		return
	}

	h.log.Info().Msg("Manual price refresh triggered")

	if err := h.scheduler.RunNow(h.refreshJob.Name()); err != nil {
		h.log.Error().Err(err).Msg("Manual price refresh failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"job":    h.refreshJob.Name(),
	})
}

// getSystemStats calculates CPU and RAM usage percentages. The CPU
// sample runs over 100ms so the endpoint stays responsive to pollers.
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

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *SystemHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
