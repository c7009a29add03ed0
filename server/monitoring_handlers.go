package server

import (
	"net/http"
	"time"

	"youtubeSearch/core"
)

// MonitoringHandlers serves /health and /stats.
type MonitoringHandlers struct {
	svc     Service
	health  *core.HealthMonitor
	cache   *core.CacheManager
	version string
}

// HealthCheckHandler runs the registered probes with a short timeout.
func (h *MonitoringHandlers) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	resp := core.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Unix(),
		Version:   h.version,
	}
	if h.health != nil {
		status, checks := h.health.Check(r.Context(), 2*time.Second)
		resp.Status = status
		if len(checks) > 0 {
			resp.Services = make(map[string]string, len(checks))
			for name, c := range checks {
				resp.Services[name] = c.Status
			}
		}
	}
	core.WriteJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	Store         *core.StoreStats      `json:"store,omitempty"`
	StoreError    string                `json:"store_error,omitempty"`
	Cache         core.CacheMetrics     `json:"cache"`
	Processing    *core.ProcessingStats `json:"processing,omitempty"`
	System        core.SystemInfo       `json:"system"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	Timestamp     int64                 `json:"timestamp"`
}

func (h *MonitoringHandlers) StatsHandler(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		Cache:     h.cache.GetMetrics(),
		System:    core.CollectSystemInfo(),
		Timestamp: time.Now().Unix(),
	}
	if h.svc != nil {
		if st, err := h.svc.Store().Stats(r.Context()); err != nil {
			resp.StoreError = err.Error()
		} else {
			resp.Store = &st
		}
	}
	if h.health != nil {
		stats := h.health.Stats()
		resp.Processing = &stats
		resp.UptimeSeconds = int64(h.health.Uptime().Seconds())
	}
	core.WriteJSON(w, http.StatusOK, resp)
}
