package handlers

import (
	"net/http"
	"strings"

	"github.com/skillswap/backend/internal/logging"
	"github.com/skillswap/backend/internal/realtime"
)

const maxBroadcastLength = 500

// AdminHandler serves the moderation views. Every route also sits behind the
// admin middleware; handlers still obtain the capability from the actor.
type AdminHandler struct {
	Profiles ProfileService
	Ledger   SwapLedger
	Feed     realtime.Feed
}

// Stats handles GET /api/v1/admin/stats.
func (h AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	capability, ok := adminFrom(w, r)
	if !ok {
		return
	}
	stats, err := h.Profiles.Stats(r.Context(), capability)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, stats)
}

// ListProfiles handles GET /api/v1/admin/profiles.
func (h AdminHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	capability, ok := adminFrom(w, r)
	if !ok {
		return
	}
	all, err := h.Profiles.AdminList(r.Context(), capability)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"profiles": all})
}

// Requests handles GET /api/v1/admin/requests.
func (h AdminHandler) Requests(w http.ResponseWriter, r *http.Request) {
	capability, ok := adminFrom(w, r)
	if !ok {
		return
	}
	all, err := h.Ledger.AdminList(r.Context(), capability)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"requests": all})
}

// DeleteProfile handles DELETE /api/v1/admin/profiles/{userId}.
func (h AdminHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	capability, ok := adminFrom(w, r)
	if !ok {
		return
	}
	if err := h.Profiles.AdminDelete(r.Context(), capability, r.PathValue("userId")); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteRequest handles DELETE /api/v1/admin/requests/{id}.
func (h AdminHandler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	capability, ok := adminFrom(w, r)
	if !ok {
		return
	}
	if err := h.Ledger.AdminDelete(r.Context(), capability, r.PathValue("id")); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type broadcastRequest struct {
	Message string `json:"message"`
}

// Broadcast handles POST /api/v1/admin/broadcast, pushing a message to every
// open profile stream.
func (h AdminHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	capability, ok := adminFrom(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var req broadcastRequest
	if err := decodeJSON(r, w, &req); err != nil {
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" || len(message) > maxBroadcastLength {
		respondMessage(ctx, w, http.StatusBadRequest, "message must be between 1 and 500 characters")
		return
	}
	if h.Feed == nil {
		respondMessage(ctx, w, http.StatusServiceUnavailable, "broadcasts are unavailable")
		return
	}

	if err := h.Feed.Publish(ctx, realtime.NewBroadcast(message)); err != nil {
		logging.FromContext(ctx).Error("broadcast publish failed", "error", err)
		respondMessage(ctx, w, http.StatusServiceUnavailable, "service temporarily unavailable, please retry")
		return
	}
	logging.FromContext(ctx).Info("admin broadcast sent", "admin_id", capability.GrantedTo())
	respondJSON(ctx, w, http.StatusAccepted, map[string]string{"status": "sent"})
}
