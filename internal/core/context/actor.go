package context

import (
	"context"
)

// Actor is the authenticated principal behind a request.
type Actor struct {
	Subject string
	Name    string
	Role    string
}

type actorContextKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns Actor from context, or nil for anonymous calls.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorContextKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetActorSubject returns the actor subject or "system".
func GetActorSubject(ctx context.Context) string {
	if a := GetActor(ctx); a != nil && a.Subject != "" {
		return a.Subject
	}
	return "system"
}
