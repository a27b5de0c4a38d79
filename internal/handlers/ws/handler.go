package ws

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/autograder.net/internal/adapter/websocket/hub"
	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/services/submission"
	"gitlab.com/autograder.net/internal/handlers"
	"gitlab.com/autograder.net/internal/handlers/response"
)

// SnapshotRequest asks for the current snapshot of a submission to be broadcast
type SnapshotRequest struct {
	SubmissionID int64 `json:"submissionId"`
}

// ErrorPayload is sent back on the errors topic
type ErrorPayload struct {
	SubmissionID int64  `json:"submissionId,omitempty"`
	Message      string `json:"message"`
}

// SubmissionSocketHandler lets live viewers request snapshot broadcasts
type SubmissionSocketHandler struct {
	hub               *hub.Hub
	submissionService submission.ISubmissionService
	logger            primary.Logger
}

func NewSubmissionSocketHandler(h *hub.Hub, submissionService submission.ISubmissionService, logger primary.Logger) *SubmissionSocketHandler {
	return &SubmissionSocketHandler{
		hub:               h,
		submissionService: submissionService,
		logger:            logger,
	}
}

func (h *SubmissionSocketHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws/submissions", h.Connect).Methods("GET")
}

func (h *SubmissionSocketHandler) Connect(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.Serve(w, r, h.onMessage); err != nil {
		h.logger.Debug("WebSocket session ended", "error", err)
	}
}

func (h *SubmissionSocketHandler) onMessage(ctx context.Context, c *hub.Client, msg []byte) {
	var req SnapshotRequest
	if err := json.Unmarshal(msg, &req); err != nil || req.SubmissionID <= 0 {
		h.reply(c, ErrorPayload{Message: "expected {\"submissionId\": <id>}"})
		return
	}

	err := h.submissionService.RequestBroadcast(ctx, handlers.PrincipalFrom(ctx), req.SubmissionID)
	if err != nil {
		em := response.FromError(err)
		if em.StatusCode >= http.StatusInternalServerError {
			h.logger.Error("Failed to broadcast snapshot", "submissionId", req.SubmissionID, "error", err)
		}
		h.reply(c, ErrorPayload{SubmissionID: req.SubmissionID, Message: em.Message})
	}
}

func (h *SubmissionSocketHandler) reply(c *hub.Client, payload ErrorPayload) {
	if err := c.Send(hub.TopicErrors, payload); err != nil {
		h.logger.Debug("Failed to send error to client", "client", c.ID, "error", err)
	}
}
