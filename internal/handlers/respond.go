package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/skillswap/backend/internal/auth"
	"github.com/skillswap/backend/internal/logging"
	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/repositories"
)

const maxJSONBody = 1 << 20

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondMessage(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, map[string]string{"error": message})
}

// respondError maps a domain error onto its HTTP status.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		respondMessage(ctx, w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, models.ErrSelfRequest):
		respondMessage(ctx, w, http.StatusBadRequest, models.ErrSelfRequest.Error())
	case errors.Is(err, models.ErrValidation):
		respondMessage(ctx, w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotAuthorized):
		respondMessage(ctx, w, http.StatusForbidden, "you are not allowed to perform this action")
	case errors.Is(err, models.ErrNotFound), errors.Is(err, repositories.ErrNotFound):
		respondMessage(ctx, w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrInvalidTransition):
		respondMessage(ctx, w, http.StatusConflict, "request has already been answered")
	case errors.Is(err, repositories.ErrConflict):
		respondMessage(ctx, w, http.StatusConflict, "resource already exists")
	case errors.Is(err, models.ErrUpstreamUnavailable):
		logging.FromContext(ctx).Error("upstream unavailable", "error", err)
		respondMessage(ctx, w, http.StatusServiceUnavailable, "service temporarily unavailable, please retry")
	default:
		logging.FromContext(ctx).Error("unhandled error", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, w http.ResponseWriter, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// actorFrom returns the actor stored by the auth middleware or writes a 401.
func actorFrom(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		respondMessage(r.Context(), w, http.StatusUnauthorized, "authentication required")
	}
	return actor, ok
}

// adminFrom returns the admin capability of the authenticated actor or writes
// a 401/403.
func adminFrom(w http.ResponseWriter, r *http.Request) (models.AdminCapability, bool) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return models.AdminCapability{}, false
	}
	capability, ok := actor.AdminCapability()
	if !ok {
		respondMessage(r.Context(), w, http.StatusForbidden, "admin access required")
	}
	return capability, ok
}
