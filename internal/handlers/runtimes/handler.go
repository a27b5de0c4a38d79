package runtimes

import (
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/services/submission"
	"gitlab.com/autograder.net/internal/handlers"
	"gitlab.com/autograder.net/internal/handlers/response"
)

// RuntimeHandler exposes the sandbox runtime catalog
type RuntimeHandler struct {
	submissionService submission.ISubmissionService
	logger            primary.Logger
}

func NewRuntimeHandler(submissionService submission.ISubmissionService, logger primary.Logger) *RuntimeHandler {
	return &RuntimeHandler{
		submissionService: submissionService,
		logger:            logger,
	}
}

func (h *RuntimeHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/runtimes", h.GetRuntimes).Methods("GET")
	router.HandleFunc("/api/runtimes/invalidate", h.Invalidate).Methods("POST")
}

func (h *RuntimeHandler) GetRuntimes(w http.ResponseWriter, r *http.Request) {
	runtimes, err := h.submissionService.ListRuntimes(r.Context())
	if err != nil {
		response.Error(w, h.logger, "Failed to get runtimes", err)
		return
	}
	response.WriteSuccess(w, runtimes)
}

func (h *RuntimeHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.submissionService.InvalidateRuntimes(r.Context(), handlers.PrincipalFrom(r.Context())); err != nil {
		response.Error(w, h.logger, "Failed to invalidate runtimes", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
