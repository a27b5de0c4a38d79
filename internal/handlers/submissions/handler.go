package submissions

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/services/submission"
	"gitlab.com/autograder.net/internal/handlers"
	"gitlab.com/autograder.net/internal/handlers/response"
	"gitlab.com/autograder.net/internal/static/errs"
)

// SubmissionHandler handles submission API requests
type SubmissionHandler struct {
	submissionService submission.ISubmissionService
	logger            primary.Logger
}

func NewSubmissionHandler(submissionService submission.ISubmissionService, logger primary.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService: submissionService,
		logger:            logger,
	}
}

// RegisterRoutes registers the API routes on an authenticated router
func (h *SubmissionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/submissions", h.CreateSubmission).Methods("POST")
	router.HandleFunc("/api/submissions", h.ListSubmissions).Methods("GET")
	router.HandleFunc("/api/submissions/{submissionId:[0-9]+}", h.GetSubmission).Methods("GET")
	router.HandleFunc("/api/submissions/{submissionId:[0-9]+}/detail", h.GetDetails).Methods("GET")
}

func (h *SubmissionHandler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Failed to decode request", "error", err)
		response.WriteError(w, response.ErrorMessage{Message: "invalid request", StatusCode: http.StatusBadRequest})
		return
	}

	created, err := h.submissionService.CreateSubmission(r.Context(), handlers.PrincipalFrom(r.Context()), submission.CreateSubmissionInput{
		ProblemID: req.ProblemID,
		Language:  req.Language,
		Version:   req.Version,
		Filename:  req.Filename,
		Code:      req.Code,
	})
	if err != nil {
		response.Error(w, h.logger, "Failed to create submission", err)
		return
	}

	response.WriteJson(w, http.StatusAccepted, CreateSubmissionResponse{
		SubmissionID: created.ID,
		Status:       string(created.Status),
	})
}

func (h *SubmissionHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	in := submission.ListSubmissionsInput{
		Own: query.Get("own") == "true",
	}

	var err error
	if raw := query.Get("problemId"); raw != "" {
		problemID, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			response.WriteError(w, response.ErrorMessage{Message: "invalid problemId", StatusCode: http.StatusBadRequest})
			return
		}
		in.ProblemID = &problemID
	}
	if in.PageNo, err = intParam(query.Get("pageNo")); err != nil {
		response.WriteError(w, response.ErrorMessage{Message: "invalid pageNo", StatusCode: http.StatusBadRequest})
		return
	}
	if in.PageSize, err = intParam(query.Get("pageSize")); err != nil {
		response.WriteError(w, response.ErrorMessage{Message: "invalid pageSize", StatusCode: http.StatusBadRequest})
		return
	}

	list, err := h.submissionService.ListSubmissions(r.Context(), handlers.PrincipalFrom(r.Context()), in)
	if err != nil {
		response.Error(w, h.logger, "Failed to list submissions", err)
		return
	}
	response.WriteSuccess(w, list)
}

func (h *SubmissionHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID, err := pathID(r)
	if err != nil {
		response.Error(w, h.logger, "Invalid submission id", err)
		return
	}

	snapshot, err := h.submissionService.GetSnapshot(r.Context(), handlers.PrincipalFrom(r.Context()), submissionID)
	if err != nil {
		response.Error(w, h.logger, "Failed to get submission", err)
		return
	}
	response.WriteSuccess(w, snapshot)
}

func (h *SubmissionHandler) GetDetails(w http.ResponseWriter, r *http.Request) {
	submissionID, err := pathID(r)
	if err != nil {
		response.Error(w, h.logger, "Invalid submission id", err)
		return
	}

	details, err := h.submissionService.GetDetails(r.Context(), handlers.PrincipalFrom(r.Context()), submissionID)
	if err != nil {
		response.Error(w, h.logger, "Failed to get submission details", err)
		return
	}
	response.WriteSuccess(w, details)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["submissionId"], 10, 64)
	if err != nil {
		return 0, errors.Join(errs.ErrInvalidRequest, err)
	}
	return id, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
