package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/skillswap/backend/internal/models"
)

var (
	// ErrSessionNotFound indicates the provided refresh token does not map to an active session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshTokenExpired indicates the refresh token has expired and cannot be used.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// SessionStore persists issued refresh tokens so they can survive process restarts.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Find(ctx context.Context, refreshToken string) (Session, error)
	Delete(ctx context.Context, refreshToken string) error
}

// UserLookup reloads the identity record behind a session.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// Session represents a refresh token issued to a user. The identity claims are
// kept alongside the token; Refresh replaces them with the current user record
// when the Manager has a UserLookup.
type Session struct {
	RefreshToken string
	UserID       string
	Email        string
	DisplayName  string
	Role         string
	ExpiresAt    time.Time
}

// Actor returns the identity the session was issued to.
func (s Session) Actor() models.Actor {
	return models.Actor{
		UserID:      s.UserID,
		Email:       s.Email,
		DisplayName: s.DisplayName,
		Role:        s.Role,
	}
}

// Manager manages the lifecycle of issued session tokens backed by a persistent store.
type Manager struct {
	accessTTL  time.Duration
	refreshTTL time.Duration

	signer *TokenSigner
	store  SessionStore
	now    func() time.Time

	// Users, when set, is consulted on every refresh so role and name changes
	// apply at the next access token.
	Users UserLookup
}

// NewManager constructs a Manager that issues access and refresh tokens with the provided TTLs.
func NewManager(accessTTL, refreshTTL time.Duration, signer *TokenSigner, store SessionStore) *Manager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	if signer == nil {
		panic("auth: token signer must not be nil")
	}
	return &Manager{
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		signer:     signer,
		store:      store,
		now:        time.Now,
	}
}

// Issue creates a new pair of access and refresh tokens for the provided actor.
func (m *Manager) Issue(ctx context.Context, actor models.Actor) (models.SessionTokens, error) {
	if actor.UserID == "" {
		return models.SessionTokens{}, errors.New("user id must be provided")
	}
	if actor.Role == "" {
		actor.Role = models.RoleUser
	}

	now := m.now().UTC()
	tokens := models.SessionTokens{
		AccessExpiresAt:  now.Add(m.accessTTL),
		RefreshExpiresAt: now.Add(m.refreshTTL),
	}

	accessToken, err := m.signer.Sign(actor, tokens.AccessExpiresAt)
	if err != nil {
		return models.SessionTokens{}, err
	}
	refreshToken, err := randomToken()
	if err != nil {
		return models.SessionTokens{}, err
	}
	tokens.AccessToken = accessToken
	tokens.RefreshToken = refreshToken

	if err := m.store.Save(ctx, Session{
		RefreshToken: refreshToken,
		UserID:       actor.UserID,
		Email:        actor.Email,
		DisplayName:  actor.DisplayName,
		Role:         actor.Role,
		ExpiresAt:    tokens.RefreshExpiresAt,
	}); err != nil {
		return models.SessionTokens{}, err
	}

	return tokens, nil
}

// Refresh exchanges a refresh token for a new session token pair.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error) {
	if refreshToken == "" {
		return models.SessionTokens{}, ErrSessionNotFound
	}

	session, err := m.store.Find(ctx, refreshToken)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if m.now().UTC().After(session.ExpiresAt) {
		_ = m.store.Delete(ctx, refreshToken)
		return models.SessionTokens{}, ErrRefreshTokenExpired
	}

	actor := session.Actor()
	if m.Users != nil {
		user, err := m.Users.FindByID(ctx, session.UserID)
		if err != nil {
			return models.SessionTokens{}, fmt.Errorf("reload user %s: %w", session.UserID, err)
		}
		actor = models.Actor{UserID: user.ID, Email: user.Email, DisplayName: user.DisplayName, Role: user.Role}
	}

	if err := m.store.Delete(ctx, refreshToken); err != nil {
		return models.SessionTokens{}, err
	}

	return m.Issue(ctx, actor)
}

// Authenticate verifies an access token and returns its actor.
func (m *Manager) Authenticate(accessToken string) (models.Actor, error) {
	return m.signer.Verify(accessToken)
}

// Revoke removes the provided refresh token from the active session store.
func (m *Manager) Revoke(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	_ = m.store.Delete(ctx, refreshToken)
}

func randomToken() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
