package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/skillswap/backend/internal/auth"
	"github.com/skillswap/backend/internal/logging"
	"github.com/skillswap/backend/internal/models"
)

// Authenticator verifies bearer access tokens.
type Authenticator interface {
	Authenticate(accessToken string) (models.Actor, error)
}

// RequireAuth rejects requests without a valid access token and stores the
// verified actor on the request context. Websocket upgrades may pass the token
// in the access_token query parameter since browsers cannot set headers on them.
func RequireAuth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, "missing access token")
				return
			}

			actor, err := authn.Authenticate(token)
			if err != nil {
				logging.FromContext(r.Context()).Warn("access token rejected", "error", err)
				unauthorized(w, "invalid or expired access token")
				return
			}

			ctx := auth.WithActor(r.Context(), actor)
			ctx = logging.WithUserID(ctx, actor.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin lets through only actors holding the admin role. It expects
// RequireAuth to have run first.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := auth.ActorFromContext(r.Context())
		if !ok {
			unauthorized(w, "missing access token")
			return
		}
		if _, ok := actor.AdminCapability(); !ok {
			logging.FromContext(r.Context()).Warn("admin route refused")
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="skillswap"`)
	writeError(w, http.StatusUnauthorized, message)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
