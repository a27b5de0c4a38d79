package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrAlreadyClaimed     = errors.New("submission already claimed")
	ErrClaimLost          = errors.New("submission claim lost")
	ErrQueueClosed        = errors.New("queue closed")
	ErrSandboxUnavailable = errors.New("sandbox unavailable")
	ErrSandboxRejected    = errors.New("sandbox rejected request")
	ErrSandboxProtocol    = errors.New("sandbox protocol error")
)

// SandboxRejectedError carries the status and body of a non-2xx sandbox response.
type SandboxRejectedError struct {
	StatusCode int
	Body       string
}

func (e *SandboxRejectedError) Error() string {
	return fmt.Sprintf("sandbox rejected request: status %d: %s", e.StatusCode, e.Body)
}

func (e *SandboxRejectedError) Unwrap() error {
	return ErrSandboxRejected
}

// Store wraps a persistence failure so callers can match ErrStoreUnavailable.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
