package handlers

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skillswap/backend/internal/middleware"
	"github.com/skillswap/backend/internal/realtime"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users          UserStore
	Sessions       SessionManager
	Authenticator  middleware.Authenticator
	AuthLimiter    middleware.RateLimiter
	NotifyLimiter  middleware.RateLimiter
	Profiles       ProfileService
	Directory      ProfileDirectory
	Requests       SwapLedger
	Notifications  NotificationDispatcher
	Feed           realtime.Feed
	HealthCheck    func(ctx context.Context) error
	AllowedOrigins []string
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Check: deps.HealthCheck}
	authH := AuthHandler{Users: deps.Users, Sessions: deps.Sessions}
	profiles := ProfileHandler{Profiles: deps.Profiles, Directory: deps.Directory}
	stream := StreamHandler{Directory: deps.Directory, Feed: deps.Feed, AllowedOrigins: deps.AllowedOrigins}
	requests := RequestHandler{Ledger: deps.Requests}
	notifications := NotificationHandler{Ledger: deps.Requests, Dispatcher: deps.Notifications}
	admin := AdminHandler{Profiles: deps.Profiles, Ledger: deps.Requests, Feed: deps.Feed}

	limited := middleware.Limit(deps.AuthLimiter, "auth")
	notifyLimited := middleware.Limit(deps.NotifyLimiter, "notifications")
	authed := middleware.RequireAuth(deps.Authenticator)
	adminOnly := func(h http.HandlerFunc) http.Handler { return authed(middleware.RequireAdmin(h)) }
	protect := func(h http.HandlerFunc) http.Handler { return authed(h) }

	mux.HandleFunc("GET /healthz", health.Handle)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("POST /api/v1/auth/signup", limited(http.HandlerFunc(authH.SignUp)))
	mux.Handle("POST /api/v1/auth/login", limited(http.HandlerFunc(authH.Login)))
	mux.Handle("POST /api/v1/auth/refresh", limited(http.HandlerFunc(authH.Refresh)))
	mux.Handle("POST /api/v1/auth/logout", limited(http.HandlerFunc(authH.Logout)))
	mux.Handle("GET /api/v1/auth/session", protect(authH.Session))

	mux.Handle("GET /api/v1/profile", protect(profiles.Get))
	mux.Handle("PUT /api/v1/profile", protect(profiles.Save))
	mux.Handle("POST /api/v1/profile/picture", protect(profiles.UploadPicture))
	mux.Handle("GET /api/v1/profiles", protect(profiles.Browse))
	mux.Handle("GET /api/v1/profiles/stream", protect(stream.Serve))
	mux.Handle("GET /api/v1/profiles/{userId}", protect(profiles.GetPublic))

	mux.Handle("GET /api/v1/requests", protect(requests.List))
	mux.Handle("POST /api/v1/requests", protect(requests.Create))
	mux.Handle("GET /api/v1/requests/{id}", protect(requests.Get))
	mux.Handle("POST /api/v1/requests/{id}/accept", protect(requests.Accept))
	mux.Handle("POST /api/v1/requests/{id}/reject", protect(requests.Reject))
	mux.Handle("DELETE /api/v1/requests/{id}", protect(requests.Delete))

	mux.Handle("POST /api/v1/notifications/email", authed(notifyLimited(http.HandlerFunc(notifications.Email))))

	mux.Handle("GET /api/v1/admin/stats", adminOnly(admin.Stats))
	mux.Handle("GET /api/v1/admin/profiles", adminOnly(admin.ListProfiles))
	mux.Handle("GET /api/v1/admin/requests", adminOnly(admin.Requests))
	mux.Handle("DELETE /api/v1/admin/profiles/{userId}", adminOnly(admin.DeleteProfile))
	mux.Handle("DELETE /api/v1/admin/requests/{id}", adminOnly(admin.DeleteRequest))
	mux.Handle("POST /api/v1/admin/broadcast", adminOnly(admin.Broadcast))
}
