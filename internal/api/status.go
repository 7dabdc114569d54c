package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/snarg/agrivoice/internal/watch"
)

// PoolSource exposes the worker pool's lifetime counters.
type PoolSource interface {
	Stats() (processed, failed int64)
}

type StatusResponse struct {
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Watcher       *watch.Stats `json:"watcher,omitempty"`
	Processed     int64        `json:"tasks_processed"`
	Failed        int64        `json:"tasks_failed"`
}

type StatusHandler struct {
	watcher   WatcherSource
	pool      PoolSource
	version   string
	startTime time.Time
}

func NewStatusHandler(watcher WatcherSource, pool PoolSource, version string, startTime time.Time) *StatusHandler {
	return &StatusHandler{watcher: watcher, pool: pool, version: version, startTime: startTime}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}
	if h.watcher != nil {
		s := h.watcher.Status()
		resp.Watcher = &s
	}
	if h.pool != nil {
		resp.Processed, resp.Failed = h.pool.Stats()
	}
	WriteJSON(w, http.StatusOK, resp)
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error envelope.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}
