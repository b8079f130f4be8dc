// Package auth carries request principals: end users resolved from a session
// token, and back-office service keys.
package auth

import (
	"context"

	"github.com/aitools/platform/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	userContextKey    contextKey = "user"
	serviceContextKey contextKey = "service_context"
)

// ContextWithUser stores the resolved end user.
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the resolved end user, or nil for anonymous callers.
func UserFromContext(ctx context.Context) *model.User {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok {
		return nil
	}
	return user
}

// UserIDFromContext returns the end user's id or "".
func UserIDFromContext(ctx context.Context) string {
	if u := UserFromContext(ctx); u != nil {
		return u.ID
	}
	return ""
}

// ContextWithService stores an authenticated service principal.
func ContextWithService(ctx context.Context, svc *model.ServiceContext) context.Context {
	return context.WithValue(ctx, serviceContextKey, svc)
}

// ServiceFromContext returns the service principal, or nil.
func ServiceFromContext(ctx context.Context) *model.ServiceContext {
	svc, ok := ctx.Value(serviceContextKey).(*model.ServiceContext)
	if !ok {
		return nil
	}
	return svc
}
