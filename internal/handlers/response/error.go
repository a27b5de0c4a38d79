package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/static/errs"
)

type ErrorMessage struct {
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

func WriteError(w http.ResponseWriter, err ErrorMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_ = json.NewEncoder(w).Encode(err)
}

func WriteSuccess(w http.ResponseWriter, data interface{}) {
	WriteJson(w, http.StatusOK, data)
}

func WriteJson(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// FromError maps a service error onto the HTTP status the caller sees.
// Store and sandbox internals are never echoed back.
func FromError(err error) ErrorMessage {
	switch {
	case errors.Is(err, errs.ErrInvalidRequest):
		return ErrorMessage{Message: err.Error(), StatusCode: http.StatusBadRequest}
	case errors.Is(err, errs.ErrForbidden):
		return ErrorMessage{Message: "forbidden", StatusCode: http.StatusForbidden}
	case errors.Is(err, errs.ErrNotFound):
		return ErrorMessage{Message: "not found", StatusCode: http.StatusNotFound}
	case errors.Is(err, errs.ErrStoreUnavailable),
		errors.Is(err, errs.ErrSandboxUnavailable),
		errors.Is(err, errs.ErrQueueClosed):
		return ErrorMessage{Message: "service unavailable", StatusCode: http.StatusServiceUnavailable}
	case errors.Is(err, errs.ErrSandboxRejected), errors.Is(err, errs.ErrSandboxProtocol):
		return ErrorMessage{Message: "sandbox error", StatusCode: http.StatusBadGateway}
	default:
		return ErrorMessage{Message: "internal error", StatusCode: http.StatusInternalServerError}
	}
}

// Error logs server-side failures and writes the mapped error
func Error(w http.ResponseWriter, logger primary.Logger, msg string, err error) {
	em := FromError(err)
	if em.StatusCode >= http.StatusInternalServerError {
		logger.Error(msg, "error", err)
	} else {
		logger.Debug(msg, "error", err)
	}
	WriteError(w, em)
}
