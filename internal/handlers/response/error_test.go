package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/autograder.net/internal/static/errs"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: code is required", errs.ErrInvalidRequest), http.StatusBadRequest},
		{errs.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("failed to get submission: %w", errs.ErrNotFound), http.StatusNotFound},
		{errs.Store("GetSubmission", errors.New("dial tcp")), http.StatusServiceUnavailable},
		{errs.ErrSandboxUnavailable, http.StatusServiceUnavailable},
		{&errs.SandboxRejectedError{StatusCode: 400, Body: "bad"}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, FromError(tt.err).StatusCode, tt.err.Error())
	}
}

func TestStoreDetailsAreNotLeaked(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, FromError(errs.Store("GetSubmission", errors.New("password authentication failed"))))

	var body ErrorMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "service unavailable", body.Message)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
