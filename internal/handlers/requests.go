package handlers

import (
	"context"
	"net/http"

	"github.com/skillswap/backend/internal/logging"
	"github.com/skillswap/backend/internal/models"
)

// RequestHandler exposes the swap request ledger.
type RequestHandler struct {
	Ledger SwapLedger
}

type createRequestPayload struct {
	ToUserID string `json:"toUserId"`
	Message  string `json:"message"`
}

type requestsResponse struct {
	Sent     []models.SwapRequest `json:"sent"`
	Received []models.SwapRequest `json:"received"`
}

// List handles GET /api/v1/requests.
func (h RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	sent, received, err := h.Ledger.ListFor(r.Context(), actor.UserID)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, requestsResponse{Sent: sent, Received: received})
}

// Create handles POST /api/v1/requests.
func (h RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var payload createRequestPayload
	if err := decodeJSON(r, w, &payload); err != nil {
		logging.FromContext(r.Context()).Warn("invalid swap request payload", "error", err)
		respondMessage(r.Context(), w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := h.Ledger.Create(r.Context(), actor, payload.ToUserID, payload.Message)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusCreated, req)
}

// Get handles GET /api/v1/requests/{id}.
func (h RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req, err := h.Ledger.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, req)
}

// Accept handles POST /api/v1/requests/{id}/accept.
func (h RequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.Ledger.Accept)
}

// Reject handles POST /api/v1/requests/{id}/reject.
func (h RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.Ledger.Reject)
}

type transition func(ctx context.Context, actor models.Actor, id string) (models.SwapRequest, error)

func (h RequestHandler) respond(w http.ResponseWriter, r *http.Request, op transition) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	req, err := op(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, req)
}

// Delete handles DELETE /api/v1/requests/{id}, withdrawing a pending request.
func (h RequestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := h.Ledger.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
