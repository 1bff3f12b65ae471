package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/skillswap/backend/internal/logging"
	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/notify"
)

// NotificationHandler resends the email for a swap request the caller is a
// party to. Recipient, subject and content come from the stored request.
type NotificationHandler struct {
	Ledger     SwapLedger
	Dispatcher NotificationDispatcher
}

type notificationRequest struct {
	RequestID string           `json:"requestId"`
	Type      notify.EventType `json:"type"`
}

type notificationResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	EmailPreview string `json:"emailPreview"`
}

// Email handles POST /api/v1/notifications/email.
func (h NotificationHandler) Email(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var req notificationRequest
	if err := decodeJSON(r, w, &req); err != nil {
		logging.FromContext(ctx).Warn("invalid notification payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.RequestID) == "" {
		respondError(ctx, w, models.NewValidationError("requestId", "request id is required"))
		return
	}

	n, err := h.Ledger.NotificationFor(ctx, actor, req.RequestID, req.Type)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	outcome, err := h.Dispatcher.Dispatch(ctx, n)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			respondError(ctx, w, err)
			return
		}
		logging.FromContext(ctx).Error("notification dispatch failed", "type", n.Type, "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to send email notification")
		return
	}

	respondJSON(ctx, w, http.StatusOK, notificationResponse{
		Success:      true,
		Message:      "Email notification sent successfully",
		EmailPreview: outcome.Preview,
	})
}
