package handlers

import (
	"context"
	"io"

	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/notify"
	"github.com/skillswap/backend/internal/profiles"
	"github.com/skillswap/backend/internal/realtime"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

// SessionManager issues, refreshes and revokes authentication tokens.
type SessionManager interface {
	Issue(ctx context.Context, actor models.Actor) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, refreshToken string)
}

// ProfileService reads and writes profiles.
type ProfileService interface {
	Get(ctx context.Context, actor models.Actor) (models.Profile, error)
	GetPublic(ctx context.Context, actorID, userID string) (models.Profile, error)
	Save(ctx context.Context, actor models.Actor, input profiles.Input) (models.Profile, error)
	UploadPicture(ctx context.Context, actor models.Actor, filename, contentType string, body io.Reader, size int64) (string, error)
	AdminDelete(ctx context.Context, admin models.AdminCapability, userID string) error
	AdminList(ctx context.Context, admin models.AdminCapability) ([]models.Profile, error)
	Stats(ctx context.Context, admin models.AdminCapability) (models.Stats, error)
}

// ProfileDirectory lists the profiles an actor may browse.
type ProfileDirectory interface {
	Browse(ctx context.Context, actorID, term, slot string) ([]models.Profile, error)
	Watch(ctx context.Context, feed realtime.Feed, actorID, term, slot string, fn func([]models.Profile)) error
}

// SwapLedger mediates swap request reads and transitions.
type SwapLedger interface {
	Create(ctx context.Context, actor models.Actor, toUserID, message string) (models.SwapRequest, error)
	Accept(ctx context.Context, actor models.Actor, id string) (models.SwapRequest, error)
	Reject(ctx context.Context, actor models.Actor, id string) (models.SwapRequest, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
	Get(ctx context.Context, actor models.Actor, id string) (models.SwapRequest, error)
	ListFor(ctx context.Context, userID string) (sent, received []models.SwapRequest, err error)
	AdminDelete(ctx context.Context, admin models.AdminCapability, id string) error
	AdminList(ctx context.Context, admin models.AdminCapability) ([]models.SwapRequest, error)
	NotificationFor(ctx context.Context, actor models.Actor, id string, event notify.EventType) (notify.Notification, error)
}

// NotificationDispatcher renders and sends a notification synchronously.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, n notify.Notification) (notify.Outcome, error)
}
