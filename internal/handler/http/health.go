package http

import (
	"Shortly-Backend/internal/analytics"
	"Shortly-Backend/internal/handler/response"
	"context"
	"net/http"
	"runtime"
	"time"

	"go.uber.org/zap"
)

const version = "1.0.0"

// Pinger проверяет доступность зависимости
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsProvider отдает счетчики обработчика аналитики
type StatsProvider interface {
	GetStats() analytics.Stats
}

// HealthHandler обработчик health checks
type HealthHandler struct {
	database  Pinger
	cache     Pinger
	analytics StatsProvider
	log       *zap.Logger
	startTime time.Time
}

// NewHealthHandler создает новый health handler. cache и analytics могут быть nil.
func NewHealthHandler(database Pinger, cache Pinger, analytics StatsProvider, log *zap.Logger) *HealthHandler {
	return &HealthHandler{
		database:  database,
		cache:     cache,
		analytics: analytics,
		log:       log,
		startTime: time.Now(),
	}
}

// HealthResponse структура ответа health check
type HealthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Version        string    `json:"version"`
	DatabaseStatus string    `json:"database_status"`
	CacheStatus    string    `json:"cache_status,omitempty"`
	Uptime         string    `json:"uptime"`
}

// Health проверяет базу данных и кеш
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:         "healthy",
		Timestamp:      time.Now(),
		Version:        version,
		DatabaseStatus: "healthy",
		Uptime:         time.Since(h.startTime).String(),
	}
	statusCode := http.StatusOK

	if err := h.database.Ping(ctx); err != nil {
		h.log.Error("database health check failed", zap.Error(err))
		resp.Status = "unhealthy"
		resp.DatabaseStatus = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	// кеш необязателен: его недоступность не делает сервис нездоровым
	if h.cache != nil {
		resp.CacheStatus = "healthy"
		if err := h.cache.Ping(ctx); err != nil {
			h.log.Warn("cache health check failed", zap.Error(err))
			resp.CacheStatus = "unhealthy"
		}
	}

	response.JSON(w, h.log, resp, statusCode)
}

// Ready readiness probe: готов, когда отвечает база данных
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.database.Ping(ctx); err != nil {
		h.log.Warn("readiness check failed", zap.Error(err))
		response.JSON(w, h.log, map[string]interface{}{
			"status":    "not_ready",
			"timestamp": time.Now(),
		}, http.StatusServiceUnavailable)
		return
	}

	response.JSON(w, h.log, map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now(),
	}, http.StatusOK)
}

// Metrics отдает базовые метрики процесса и аналитики
func (h *HealthHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	metrics := map[string]interface{}{
		"uptime_seconds":  time.Since(h.startTime).Seconds(),
		"timestamp":       time.Now(),
		"version":         version,
		"goroutines":      runtime.NumGoroutine(),
		"heap_alloc_byte": mem.HeapAlloc,
	}
	if h.analytics != nil {
		metrics["analytics"] = h.analytics.GetStats()
	}

	response.JSON(w, h.log, metrics, http.StatusOK)
}
