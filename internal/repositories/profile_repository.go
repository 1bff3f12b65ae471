package repositories

import (
	"context"

	"github.com/skillswap/backend/internal/models"
)

// ProfileRepository defines data access for skill-exchange profiles.
type ProfileRepository interface {
	Get(ctx context.Context, userID string) (models.Profile, error)
	List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, error)
	// Upsert inserts the profile or replaces the one stored for the same user.
	Upsert(ctx context.Context, profile models.Profile) (models.Profile, error)
	SetPicture(ctx context.Context, userID, uri string) error
	// DeleteCascade removes the profile together with every swap request that
	// references the user, atomically.
	DeleteCascade(ctx context.Context, userID string) error
	Stats(ctx context.Context) (models.Stats, error)
}
