package biz

import "context"

type actorContextKey struct{}

// NewActorContext returns a context carrying the resolved actor.
func NewActorContext(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor resolved by the identity middleware.
// The zero Actor is returned when no identity was resolved.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
