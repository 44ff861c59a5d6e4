package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"hud-telemetry-service/internal/metrics"
)

// NewRouter настраивает маршруты API и middleware
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/telemetry", h.TelemetryHandler).Methods(http.MethodGet)
	router.HandleFunc("/telemetry/anomalies", h.AnomaliesHandler).Methods(http.MethodGet)
	router.HandleFunc("/telemetry/history", h.HistoryHandler).Methods(http.MethodGet)
	router.HandleFunc("/logs", h.LogsHandler).Methods(http.MethodGet)
	router.HandleFunc("/commands", h.CommandHandler).Methods(http.MethodPost)
	router.HandleFunc("/profile", h.ProfileHandler).Methods(http.MethodGet)
	router.HandleFunc("/ticker", h.TickerHandler).Methods(http.MethodGet)
	router.HandleFunc("/stream", h.StreamHandler).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.StatsHandler).Methods(http.MethodGet)

	router.Use(loggingMiddleware(h.logger))
	router.Use(metricsMiddleware)

	return router
}

// statusRecorder запоминает код ответа и пропускает Flush для SSE
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func wrap(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

// loggingMiddleware логирует HTTP запросы
func loggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := wrap(w)
			next.ServeHTTP(rec, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

// metricsMiddleware считает запросы и их длительность по шаблону маршрута
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		start := time.Now()
		rec := wrap(w)
		next.ServeHTTP(rec, r)

		metrics.RequestDuration.WithLabelValues(endpoint, r.Method).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, strconv.Itoa(rec.status)).Inc()
	})
}
