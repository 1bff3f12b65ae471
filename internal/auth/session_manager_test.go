package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/backend/internal/models"
)

func newTestManager(accessTTL, refreshTTL time.Duration) (*Manager, *InMemorySessionStore) {
	store := NewInMemorySessionStore()
	return NewManager(accessTTL, refreshTTL, NewTokenSigner("test-secret"), store), store
}

func TestManagerIssueAndRefresh(t *testing.T) {
	manager, store := newTestManager(time.Minute, time.Hour)
	actor := models.Actor{UserID: "user-1", Email: "ada@example.com", DisplayName: "Ada"}

	tokens, err := manager.Issue(context.Background(), actor)
	require.NoError(t, err)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)

	verified, err := manager.Authenticate(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", verified.UserID)
	assert.Equal(t, "ada@example.com", verified.Email)
	assert.Equal(t, "Ada", verified.DisplayName)
	assert.Equal(t, models.RoleUser, verified.Role)

	refreshed, err := manager.Refresh(context.Background(), tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, refreshed.RefreshToken)
	assert.False(t, store.Has(tokens.RefreshToken), "old token should have been removed")
	assert.True(t, store.Has(refreshed.RefreshToken))

	again, err := manager.Authenticate(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, verified, again)
}

func TestManagerIssueValidation(t *testing.T) {
	manager, _ := newTestManager(time.Minute, time.Hour)
	_, err := manager.Issue(context.Background(), models.Actor{})
	assert.Error(t, err)
}

func TestManagerRefreshFailures(t *testing.T) {
	manager, _ := newTestManager(time.Minute, time.Millisecond)
	actor := models.Actor{UserID: "user-1"}

	_, err := manager.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	tokens, err := manager.Issue(context.Background(), actor)
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)

	_, err = manager.Refresh(context.Background(), tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenExpired)

	tokens, err = manager.Issue(context.Background(), actor)
	require.NoError(t, err)
	manager.Revoke(context.Background(), tokens.RefreshToken)
	_, err = manager.Refresh(context.Background(), tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestTokenSignerRejectsTamperedAndExpiredTokens(t *testing.T) {
	signer := NewTokenSigner("secret-a")
	actor := models.Actor{UserID: "user-1", Role: models.RoleAdmin}

	token, err := signer.Sign(actor, time.Now().Add(time.Minute))
	require.NoError(t, err)

	got, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)

	other := NewTokenSigner("secret-b")
	_, err = other.Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	expired, err := signer.Sign(actor, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = signer.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.Verify("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestInMemorySessionStoreDeleteMissing(t *testing.T) {
	store := NewInMemorySessionStore()
	err := store.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

type userLookupStub struct {
	users map[string]models.User
	err   error
}

func (s userLookupStub) FindByID(_ context.Context, id string) (models.User, error) {
	if s.err != nil {
		return models.User{}, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return models.User{}, errors.New("no such user")
	}
	return user, nil
}

func TestManagerRefreshReloadsUser(t *testing.T) {
	manager, store := newTestManager(time.Minute, time.Hour)
	users := userLookupStub{users: map[string]models.User{
		"user-1": {ID: "user-1", Email: "ada@example.com", DisplayName: "Ada", Role: models.RoleUser},
	}}
	manager.Users = users

	tokens, err := manager.Issue(context.Background(), models.Actor{UserID: "user-1", Email: "ada@example.com", DisplayName: "Ada"})
	require.NoError(t, err)

	users.users["user-1"] = models.User{ID: "user-1", Email: "ada@example.com", DisplayName: "Ada L.", Role: models.RoleAdmin}
	refreshed, err := manager.Refresh(context.Background(), tokens.RefreshToken)
	require.NoError(t, err)

	actor, err := manager.Authenticate(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, actor.Role)
	assert.Equal(t, "Ada L.", actor.DisplayName)

	manager.Users = userLookupStub{err: errors.New("db down")}
	_, err = manager.Refresh(context.Background(), refreshed.RefreshToken)
	require.Error(t, err)
	assert.True(t, store.Has(refreshed.RefreshToken), "a failed reload keeps the refresh token usable")
}
