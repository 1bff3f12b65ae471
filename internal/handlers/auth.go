package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/skillswap/backend/internal/auth"
	"github.com/skillswap/backend/internal/logging"
	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/repositories"
)

const minPasswordLength = 8

// AuthHandler implements user authentication endpoints.
type AuthHandler struct {
	Users    UserStore
	Sessions SessionManager
	NowFunc  func() time.Time
}

// Login handles POST /api/v1/auth/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasSessions", h.Sessions != nil)
		respondMessage(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	var req loginRequest
	if err := decodeJSON(r, w, &req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		logger.Warn("login missing credentials", "email", req.Email)
		respondMessage(ctx, w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("login user lookup failed", "email", req.Email, "error", err)
			respondMessage(ctx, w, http.StatusServiceUnavailable, "unable to sign in right now")
			return
		}
		logger.Warn("login unknown email", "email", req.Email)
		respondMessage(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondMessage(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	actor := actorForUser(user)
	tokens, err := h.Sessions.Issue(ctx, actor)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "userId", user.ID)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: tokens, User: actor})
}

// SignUp handles POST /api/v1/auth/signup requests.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasSessions", h.Sessions != nil)
		respondMessage(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	var req signUpRequest
	if err := decodeJSON(r, w, &req); err != nil {
		logger.Warn("invalid signup payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		logger.Warn("signup missing credentials", "email", req.Email)
		respondMessage(ctx, w, http.StatusBadRequest, "email and password are required")
		return
	}

	addr, err := mail.ParseAddress(req.Email)
	if err != nil || addr.Address != req.Email {
		logger.Warn("signup invalid email", "email", req.Email, "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid email address")
		return
	}

	if len(req.Password) < minPasswordLength {
		logger.Warn("signup password too short", "email", req.Email)
		respondMessage(ctx, w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName, _, _ = strings.Cut(req.Email, "@")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("signup failed to hash password", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	now := h.now()
	user := models.User{
		ID:          uuid.NewString(),
		Email:       req.Email,
		Password:    string(hashed),
		DisplayName: displayName,
		Role:        models.RoleUser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("signup conflict", "email", req.Email)
			respondMessage(ctx, w, http.StatusConflict, "account already exists")
			return
		}
		logger.Error("signup failed to create user", "error", err, "email", req.Email)
		respondMessage(ctx, w, http.StatusServiceUnavailable, "failed to create account")
		return
	}

	actor := actorForUser(user)
	tokens, err := h.Sessions.Issue(ctx, actor)
	if err != nil {
		logger.Error("signup failed to issue session", "error", err, "userId", user.ID)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, authResponse{Tokens: tokens, User: actor})
}

// Refresh exchanges a refresh token for a new session.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Sessions == nil {
		logger.Error("session manager unavailable")
		respondMessage(ctx, w, http.StatusInternalServerError, "session service unavailable")
		return
	}

	var req refreshRequest
	if err := decodeJSON(r, w, &req); err != nil {
		logger.Warn("invalid refresh payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		logger.Warn("missing refresh token")
		respondMessage(ctx, w, http.StatusBadRequest, "refresh token is required")
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, auth.ErrRefreshTokenExpired) || errors.Is(err, auth.ErrSessionNotFound) {
			status = http.StatusUnauthorized
		}
		logger.Warn("refresh failed", "error", err, "status", status)
		respondMessage(ctx, w, status, "unable to refresh session")
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: tokens})
}

// Logout revokes a refresh token. Unknown tokens are not an error.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := decodeJSON(r, w, &req); err != nil {
		logging.FromContext(ctx).Warn("invalid logout payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if token := strings.TrimSpace(req.RefreshToken); token != "" && h.Sessions != nil {
		h.Sessions.Revoke(ctx, token)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/v1/auth/session and reports the caller's identity.
func (h AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, actor)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	Tokens models.SessionTokens `json:"tokens"`
	User   models.Actor         `json:"user,omitzero"`
}

func actorForUser(user models.User) models.Actor {
	role := user.Role
	if role == "" {
		role = models.RoleUser
	}
	return models.Actor{UserID: user.ID, Email: user.Email, DisplayName: user.DisplayName, Role: role}
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
