package api

import (
	"net/http"
	"time"

	"github.com/snarg/ta-engine/internal/mqttclient"
	"github.com/snarg/ta-engine/internal/store"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

type HealthHandler struct {
	db        *store.DB          // nil = cache disabled
	mqtt      *mqttclient.Client // nil = not configured
	version   string
	startTime time.Time
}

func NewHealthHandler(db *store.DB, mqtt *mqttclient.Client, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		mqtt:      mqtt,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Cache check. The cache is optional infrastructure: down degrades,
	// it does not make the service unhealthy.
	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			checks["cache"] = "error"
			status = "degraded"
		} else {
			checks["cache"] = "ok"
		}
	} else {
		checks["cache"] = "not_configured"
	}

	// MQTT check
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

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	})
}
