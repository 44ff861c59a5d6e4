// Package metrics реализует экспорт метрик в Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hud-telemetry-service/internal/models"
)

// Prometheus метрики
var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hud_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hud_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint", "method"},
	)

	// TicksTotal количество тиков симулятора
	TicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hud_ticks_total",
			Help: "Total number of telemetry ticks",
		},
	)

	// AnomaliesDetected суммарное количество помеченных точек по всем тикам
	AnomaliesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hud_anomalies_detected_total",
			Help: "Total number of anomaly flags raised across ticks",
		},
	)

	// CurrentAnomalies количество аномалий в текущем окне
	CurrentAnomalies = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hud_current_anomalies",
			Help: "Number of anomalies in the current window",
		},
	)

	// PredictiveScore текущий скор
	PredictiveScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hud_predictive_score",
			Help: "Current placeholder predictive score in [0,100)",
		},
	)

	// LatestMetric последнее значение телеметрии
	LatestMetric = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hud_latest_metric",
			Help: "Most recent telemetry sample value",
		},
	)

	// CommandsTotal команды по состояниям
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hud_commands_total",
			Help: "Commands by outcome",
		},
		[]string{"state"},
	)

	// LogEntries количество записей в журнале
	LogEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hud_log_entries",
			Help: "Number of retained log entries",
		},
	)

	// StreamSubscribers количество подключенных SSE клиентов
	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hud_stream_subscribers",
			Help: "Number of connected event stream clients",
		},
	)

	// CacheErrors ошибки записи в кэш
	CacheErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hud_cache_errors_total",
			Help: "Total number of failed cache writes",
		},
	)

	// ActiveGoroutines количество активных горутин
	ActiveGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hud_active_goroutines",
			Help: "Number of active goroutines",
		},
	)
)

// UpdateSnapshotMetrics обновляет метрики по опубликованному снимку
func UpdateSnapshotMetrics(snap models.Snapshot) {
	CurrentAnomalies.Set(float64(snap.AnomalyCount))
	PredictiveScore.Set(snap.Score)
	LogEntries.Set(float64(len(snap.Log)))
	if last, ok := snap.Latest(); ok {
		LatestMetric.Set(last.Metric)
	}
	if snap.Reason == models.ReasonTick {
		TicksTotal.Inc()
		AnomaliesDetected.Add(float64(snap.AnomalyCount))
	}
}
