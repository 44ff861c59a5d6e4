// Package handlers содержит HTTP обработчики для API HUD
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"go.uber.org/zap"

	"hud-telemetry-service/internal/analytics"
	"hud-telemetry-service/internal/cache"
	"hud-telemetry-service/internal/metrics"
	"hud-telemetry-service/internal/models"
	"hud-telemetry-service/internal/simulator"
)

// Simulator операции симулятора, нужные API
type Simulator interface {
	Snapshot() models.Snapshot
	Logs(n int) []models.LogEntry
	Dispatch(command string) (models.CommandResponse, error)
	Subscribe() (<-chan models.Snapshot, func())
	Stats() simulator.Stats
	Running() bool
}

// Store чтение персистентной статистики
type Store interface {
	Ping(ctx context.Context) error
	GetCounter(ctx context.Context, key string) (int64, error)
	ScoreHistory(ctx context.Context, count int64) ([]models.ScorePoint, error)
}

// Handler содержит зависимости для HTTP обработчиков
type Handler struct {
	sim       Simulator
	store     Store
	profile   models.Profile
	ticker    models.Ticker
	logger    *zap.Logger
	startTime time.Time

	heartbeat time.Duration
}

// NewHandler создает новый обработчик; store может быть nil
func NewHandler(sim Simulator, store Store, profile models.Profile, ticker models.Ticker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sim:       sim,
		store:     store,
		profile:   profile,
		ticker:    ticker,
		logger:    logger,
		startTime: time.Now(),
		heartbeat: 15 * time.Second,
	}
}

// TelemetryHandler обрабатывает GET /telemetry - текущее окно, аномалии и скор
func (h *Handler) TelemetryHandler(w http.ResponseWriter, r *http.Request) {
	snap := h.sim.Snapshot()
	snap.Log = nil
	h.respondJSON(w, snap, http.StatusOK)
}

// AnomaliesHandler обрабатывает GET /telemetry/anomalies - только помеченные точки
func (h *Handler) AnomaliesHandler(w http.ResponseWriter, r *http.Request) {
	snap := h.sim.Snapshot()
	h.respondJSON(w, map[string]interface{}{
		"sequence":        snap.Sequence,
		"count":           snap.AnomalyCount,
		"threshold_ratio": analytics.AnomalyRatio,
		"anomalies":       snap.Anomalies(),
	}, http.StatusOK)
}

// HistoryHandler обрабатывает GET /telemetry/history - история скора из кэша
func (h *Handler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.respondError(w, "Cache not available", http.StatusServiceUnavailable)
		return
	}

	count, err := queryInt(r, "count", 50, 1, cache.ScoreHistoryLimit)
	if err != nil {
		h.respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	points, err := h.store.ScoreHistory(r.Context(), int64(count))
	if err != nil {
		h.logger.Warn("score history failed", zap.Error(err))
		h.respondError(w, "Failed to get score history", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, points, http.StatusOK)
}

// LogsHandler обрабатывает GET /logs - журнал от новых записей к старым,
// с необязательными фильтрами level и limit
func (h *Handler) LogsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0, 0, int(^uint(0)>>1))
	if err != nil {
		h.respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	entries := h.sim.Logs(0)
	if raw := r.URL.Query().Get("level"); raw != "" {
		level := models.Level(raw)
		if !level.Valid() {
			h.respondError(w, "invalid level parameter", http.StatusBadRequest)
			return
		}
		filtered := entries[:0]
		for _, e := range entries {
			if e.Level == level {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	h.respondJSON(w, entries, http.StatusOK)
}

// CommandHandler обрабатывает POST /commands - отправка текстовой команды
func (h *Handler) CommandHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.CommandsTotal.WithLabelValues("rejected").Inc()
		h.respondError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.sim.Dispatch(req.Command)
	switch {
	case errors.Is(err, simulator.ErrEmptyCommand):
		// пустая команда молча игнорируется
		metrics.CommandsTotal.WithLabelValues("ignored").Inc()
		w.WriteHeader(http.StatusNoContent)
		return
	case errors.Is(err, simulator.ErrStopped):
		metrics.CommandsTotal.WithLabelValues("rejected").Inc()
		h.respondError(w, "Simulator stopped", http.StatusServiceUnavailable)
		return
	case err != nil:
		metrics.CommandsTotal.WithLabelValues("rejected").Inc()
		h.respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	metrics.CommandsTotal.WithLabelValues("sent").Inc()
	h.respondJSON(w, resp, http.StatusAccepted)
}

// ProfileHandler обрабатывает GET /profile
func (h *Handler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, h.profile, http.StatusOK)
}

// TickerHandler обрабатывает GET /ticker
func (h *Handler) TickerHandler(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, h.ticker, http.StatusOK)
}

// HealthHandler обрабатывает GET /health - проверка здоровья
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disabled"
	if h.store != nil {
		redisStatus = "connected"
		if err := h.store.Ping(r.Context()); err != nil {
			redisStatus = "disconnected"
		}
	}

	status := models.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Redis:     redisStatus,
		Uptime:    time.Since(h.startTime).String(),
		Running:   h.sim.Running(),
	}
	if !status.Running {
		status.Status = "degraded"
	}

	h.respondJSON(w, status, http.StatusOK)
}

// StatsHandler обрабатывает GET /stats - статистика сервиса
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))

	st := h.sim.Stats()
	response := models.StatsResponse{
		Ticks:          int64(st.Ticks),
		AnomaliesCount: int64(st.AnomaliesTotal),
		Commands:       int64(st.Commands),
		LogEntries:     st.LogEntries,
		Score:          h.sim.Snapshot().Score,
		Source:         "memory",
	}

	if h.store != nil {
		if stored, err := h.storedCounters(r.Context()); err == nil {
			response.Ticks = stored[0]
			response.AnomaliesCount = stored[1]
			response.Commands = stored[2]
			response.Source = "redis"
		} else {
			h.logger.Warn("stats from cache failed", zap.Error(err))
		}
	}

	h.respondJSON(w, response, http.StatusOK)
}

func (h *Handler) storedCounters(ctx context.Context) ([3]int64, error) {
	var out [3]int64
	for i, key := range []string{cache.TicksKey, cache.AnomaliesKey, cache.CommandsKey} {
		v, err := h.store.GetCounter(ctx, key)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

// queryInt разбирает целый параметр запроса в пределах [lo, hi]
func queryInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, errors.New("invalid " + name + " parameter")
	}
	return n, nil
}

// respondJSON отправляет JSON ответ
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Debug("write response failed", zap.Error(err))
	}
}

// respondError отправляет ошибку в JSON формате
func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	h.respondJSON(w, map[string]string{"error": message}, status)
}
