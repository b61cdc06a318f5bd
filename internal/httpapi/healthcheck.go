package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"surfsup-server/internal/utils"
)

// Pinger is implemented by the result cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusReporter is implemented by the MQTT subscriber.
type StatusReporter interface {
	Status() string
}

// HealthDeps lists what /healthz checks. Cache and MQTT are nil when turned off.
type HealthDeps struct {
	DB    *sql.DB
	Cache Pinger
	MQTT  StatusReporter
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	deps HealthDeps
}

func NewHealthchecker(deps HealthDeps) healthchecker {
	return &healthcheckerImpl{deps: deps}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var ok int
	if err := h.deps.DB.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
		slog.Error("failed to check database connectivity", "request_id", utils.RequestID(r.Context()), "error", err)
		utils.WriteError(w, http.StatusServiceUnavailable, "failed to check database connectivity")
		return
	}

	// The cache and the broker are optional; losing them degrades but does not fail the service.
	cacheState := "disabled"
	if h.deps.Cache != nil {
		cacheState = "ok"
		if err := h.deps.Cache.Ping(ctx); err != nil {
			slog.Warn("cache ping failed", "error", err)
			cacheState = "unavailable"
		}
	}
	mqttState := "disabled"
	if h.deps.MQTT != nil {
		mqttState = h.deps.MQTT.Status()
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"cache":  cacheState,
		"mqtt":   mqttState,
	})
}

func registerHealthcheck(mux *http.ServeMux, deps HealthDeps) {
	healthchecker := NewHealthchecker(deps)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
