// Package api implements the HTTP surface of the gatekeeper service:
// authentication, whitelist administration, probe endpoints, and health
// checks, wired together with gorilla/mux.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"gatekeeper/internal/auth"
	"gatekeeper/internal/models"
	"gatekeeper/internal/storage"
	"gatekeeper/internal/version"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	storage     storage.Storage
	authService *auth.Service
	logger      *slog.Logger
	probes      *probeCounters
}

// NewHandlers creates the handler set.
func NewHandlers(store storage.Storage, authService *auth.Service, logger *slog.Logger) *Handlers {
	return &Handlers{
		storage:     store,
		authService: authService,
		logger:      logger,
		probes:      newProbeCounters(),
	}
}

// HealthCheck reports overall service health including storage reachability.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = version.Get().Version

	if err := h.storage.Ping(r.Context()); err != nil {
		h.logger.Error("storage health check failed", "error", err)
		response.Status = models.StatusUnhealthy
		response.AddComponent("storage", models.StatusUnhealthy, err.Error())
		h.writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}
	response.AddComponent("storage", models.StatusHealthy, "")

	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, models.NewErrorResponse(message, code))
}

func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", models.ErrorCodeBadRequest)
		return false
	}
	return true
}
