// Package ctxkeys defines typed context keys shared between middleware and handlers.
// Both middleware and handlers import this package, but neither imports the
// other for context key types.
package ctxkeys

import (
	"context"

	"redas-backend/internal/workflow"
)

// Key is a typed string used as context key to prevent collisions.
type Key string

const (
	UserID    Key = "userID"
	UserRole  Key = "userRole"
	actorSlot Key = "actorSlot"
)

// WithActorSlot installs a slot that WithActor fills, so middleware running
// before authentication can read the actor once the handler returns.
func WithActorSlot(ctx context.Context) (context.Context, *workflow.Actor) {
	slot := &workflow.Actor{}
	return context.WithValue(ctx, actorSlot, slot), slot
}

// WithActor stores the authenticated user on the context.
func WithActor(ctx context.Context, a workflow.Actor) context.Context {
	if slot, ok := ctx.Value(actorSlot).(*workflow.Actor); ok {
		*slot = a
	}
	ctx = context.WithValue(ctx, UserID, a.ID)
	return context.WithValue(ctx, UserRole, a.Role)
}

// Actor returns the authenticated user, or ok=false outside an
// authenticated request.
func Actor(ctx context.Context) (workflow.Actor, bool) {
	id, ok := ctx.Value(UserID).(int64)
	if !ok || id == 0 {
		return workflow.Actor{}, false
	}
	role, _ := ctx.Value(UserRole).(workflow.Role)
	return workflow.Actor{ID: id, Role: role}, true
}
