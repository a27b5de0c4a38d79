package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/handlers/response"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports whether one dependency is reachable
type HealthCheck func(ctx context.Context) error

// HealthHandler serves the liveness check
type HealthHandler struct {
	checks map[string]HealthCheck
	logger primary.Logger
}

func NewHealthHandler(checks map[string]HealthCheck, logger primary.Logger) *HealthHandler {
	return &HealthHandler{
		checks: checks,
		logger: logger,
	}
}

func (h *HealthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", h.Health).Methods("GET")
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := map[string]string{}
	code := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("Health check failed", "check", name, "error", err)
			status[name] = "down"
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "up"
	}
	response.WriteJson(w, code, status)
}
