// Package http provides the identity, admin and rate limit middleware shared by every API
// route.
package http

import (
	"context"

	"github.com/google/uuid"
)

type userIDKey struct{}

// WithUserID stores the caller's user id in the context.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetUserID returns the caller's user id set by IdentityMiddleware.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return userID, ok
}
