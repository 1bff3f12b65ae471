package repositories

import (
	"context"
	"time"

	"github.com/skillswap/backend/internal/models"
)

// RequestRepository defines data access for swap requests.
type RequestRepository interface {
	Create(ctx context.Context, request models.SwapRequest) error
	Get(ctx context.Context, id string) (models.SwapRequest, error)
	// ListForUser returns requests the user sent or received, newest first.
	ListForUser(ctx context.Context, userID string) ([]models.SwapRequest, error)
	// ListAll returns every request, newest first.
	ListAll(ctx context.Context) ([]models.SwapRequest, error)
	// TransitionStatus moves a request from one status to another only when it
	// still holds from. It returns ErrStaleState when the status changed and
	// ErrNotFound when the request is gone.
	TransitionStatus(ctx context.Context, id string, from, to models.RequestStatus, at time.Time) (models.SwapRequest, error)
	// DeleteIfStatus removes a request only while it holds status.
	DeleteIfStatus(ctx context.Context, id string, status models.RequestStatus) error
	Delete(ctx context.Context, id string) error
}
