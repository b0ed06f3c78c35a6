package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/argus/backend/internal/api/handlers"
	"github.com/wonny/argus/backend/internal/realtime"
	"github.com/wonny/argus/backend/pkg/logger"
	"github.com/wonny/argus/backend/pkg/metrics"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(pipeline *handlers.PipelineHandler, hub *realtime.Hub, rec *metrics.Recorder, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Prometheus metrics
	r.Handle("/metrics", rec.Handler()).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Weight endpoints ("latest"가 {date} 패턴보다 먼저 매칭되어야 함)
	api.HandleFunc("/weights/latest", pipeline.GetLatestWeights).Methods("GET")
	api.HandleFunc("/weights/{date}", pipeline.GetWeightsByDate).Methods("GET")

	// Run endpoints
	api.HandleFunc("/runs/latest", pipeline.GetLatestRun).Methods("GET")
	api.HandleFunc("/runs/{date}", pipeline.GetRunByDate).Methods("GET")
	api.HandleFunc("/runs", pipeline.TriggerRun).Methods("POST")

	// Score endpoints
	api.HandleFunc("/scores/{date}", pipeline.GetScoresByDate).Methods("GET")

	// WebSocket weight stream
	if hub != nil {
		r.HandleFunc("/ws/weights", hub.ServeWS).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "argus-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
