package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/snarg/agrivoice/internal/audioconv"
	"github.com/snarg/agrivoice/internal/watch"
)

// HealthChecker is anything with a pingable backend. The Postgres store
// implements it; the memory store has nothing to check.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnChecker reports a long-lived connection's state.
type ConnChecker interface {
	IsConnected() bool
}

// WatcherSource exposes the directory watcher's snapshot.
type WatcherSource interface {
	Status() watch.Stats
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

type HealthHandler struct {
	db        HealthChecker
	mqtt      ConnChecker
	watcher   WatcherSource
	version   string
	startTime time.Time
}

func NewHealthHandler(db HealthChecker, mqtt ConnChecker, watcher WatcherSource, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		mqtt:      mqtt,
		watcher:   watcher,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			checks["database"] = "error"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "memory"
	}

	if h.mqtt != nil {
		if h.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	if audioconv.CheckFFmpeg() {
		checks["ffmpeg"] = "ok"
	} else {
		checks["ffmpeg"] = "missing"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	if h.watcher != nil {
		checks["file_watcher"] = h.watcher.Status().Status
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(resp)
}
