package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"integration-sync-platform/internal/database"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db    *database.Connection
	redis *redis.Client
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.Connection, redis *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// HandleHealthCheck handles the main health check endpoint
func (h *HealthHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	components := map[string]string{
		"database": "healthy",
		"redis":    "healthy",
	}
	overall := "healthy"

	if sqlDB, err := h.db.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		components["database"] = "unhealthy"
		overall = "unhealthy"
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		components["redis"] = "unhealthy"
		overall = "unhealthy"
	}

	status := http.StatusOK
	if overall != "healthy" {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, HealthResponse{
		Status:     overall,
		Timestamp:  time.Now().UTC(),
		Components: components,
	})
}

// HandleLivenessProbe handles Kubernetes liveness probe
func (h *HealthHandler) HandleLivenessProbe(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleReadinessProbe handles Kubernetes readiness probe
func (h *HealthHandler) HandleReadinessProbe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	sqlDB, err := h.db.DB.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Service Unavailable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
