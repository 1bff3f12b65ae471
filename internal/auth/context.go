package auth

import (
	"context"

	"github.com/skillswap/backend/internal/models"
)

type actorKey struct{}

// WithActor stores the authenticated actor on the context.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(models.Actor)
	return actor, ok && actor.UserID != ""
}
