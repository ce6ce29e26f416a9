package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/region23/desco-balance-bot/pkg/metrics"
)

// Статусы health check
const (
	StatusHealthy   = "healthy"
	StatusWarning   = "warning"
	StatusUnhealthy = "unhealthy"
)

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]string      `json:"checks"`
	Metrics   map[string]interface{} `json:"metrics,omitempty"`
}

// Pinger проверяет доступность хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

// SchedulerStatus отдает состояние планировщика
type SchedulerStatus interface {
	Buckets() []string
	FixedJobs() int
}

// HealthChecker проверяет состояние системы
type HealthChecker struct {
	storage   Pinger
	scheduler SchedulerStatus
	startTime time.Time
	version   string
}

// NewHealthChecker создает новый health checker
func NewHealthChecker(storage Pinger, scheduler SchedulerStatus, version string) *HealthChecker {
	return &HealthChecker{
		storage:   storage,
		scheduler: scheduler,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthHandler обрабатывает запросы health check
func (h *HealthChecker) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if response.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(response)
}

// Check собирает состояние всех компонентов
func (h *HealthChecker) Check(ctx context.Context) HealthResponse {
	checks := make(map[string]string)
	status := StatusHealthy

	degrade := func(to string) {
		if to == StatusUnhealthy || status == StatusHealthy {
			status = to
		}
	}

	if err := h.checkDatabase(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		degrade(StatusUnhealthy)
	} else {
		checks["database"] = StatusHealthy
	}

	if msg := h.checkScheduler(); msg != StatusHealthy {
		checks["scheduler"] = msg
		degrade(StatusUnhealthy)
	} else {
		checks["scheduler"] = StatusHealthy
	}

	checks["memory"] = checkMemory()
	if checks["memory"] != StatusHealthy {
		degrade(StatusWarning)
	}

	checks["goroutines"] = checkGoroutines()
	if checks["goroutines"] != StatusHealthy {
		degrade(StatusWarning)
	}

	return HealthResponse{
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Checks:    checks,
		Metrics:   h.collectMetrics(),
	}
}

func (h *HealthChecker) checkDatabase(ctx context.Context) error {
	if h.storage == nil {
		return nil
	}
	return h.storage.Ping(ctx)
}

func (h *HealthChecker) checkScheduler() string {
	if h.scheduler == nil {
		return StatusHealthy
	}
	if h.scheduler.FixedJobs() == 0 {
		return "unhealthy: scheduler is not running"
	}
	return StatusHealthy
}

// checkMemory проверяет использование памяти
func checkMemory() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	metrics.MemoryUsage.Set(float64(m.Alloc))

	const warningLimit = 256 * 1024 * 1024 // 256MB
	if m.Alloc > warningLimit {
		return "warning: memory usage > 256MB"
	}
	return StatusHealthy
}

// checkGoroutines проверяет количество горутин
func checkGoroutines() string {
	count := runtime.NumGoroutine()

	metrics.GoroutinesCount.Set(float64(count))

	const warningLimit = 500
	if count > warningLimit {
		return "warning: high goroutine count"
	}
	return StatusHealthy
}

// collectMetrics собирает основные метрики для health check
func (h *HealthChecker) collectMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	out := map[string]interface{}{
		"memory": map[string]interface{}{
			"alloc_bytes": m.Alloc,
			"sys_bytes":   m.Sys,
			"num_gc":      m.NumGC,
		},
		"runtime": map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"version":    runtime.Version(),
		},
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	}

	if h.scheduler != nil {
		out["scheduler"] = map[string]interface{}{
			"time_buckets": h.scheduler.Buckets(),
			"fixed_jobs":   h.scheduler.FixedJobs(),
		}
	}

	return out
}
