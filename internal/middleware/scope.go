package middleware

import (
	"fmt"
	"net/http"

	"github.com/aitools/platform/internal/auth"
	"github.com/aitools/platform/internal/handler/dto"
	"github.com/aitools/platform/internal/model"
)

// RequireScope returns middleware that enforces scope requirements.
// Must be applied after ServiceKeyAuth.
// If multiple scopes are provided, having ANY of them is sufficient; admin
// grants everything.
func RequireScope(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			svc := auth.ServiceFromContext(r.Context())
			if svc == nil {
				dto.WriteError(w, dto.CodeUnauthorized, "Authentication required", nil)
				return
			}

			for _, req := range required {
				if svc.HasScope(req) {
					next.ServeHTTP(w, r)
					return
				}
			}
			if len(required) == 0 && svc.HasScope(model.ScopeAdmin) {
				next.ServeHTTP(w, r)
				return
			}

			dto.WriteError(w, dto.CodeForbidden,
				fmt.Sprintf("Insufficient permissions. Required scope: %s", firstOr(required, model.ScopeAdmin)), nil)
		})
	}
}

// RequireCreditsRead is a convenience middleware for credits:read.
func RequireCreditsRead() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeCreditsRead)
}

// RequireCreditsWrite is a convenience middleware for credits:write.
func RequireCreditsWrite() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeCreditsWrite)
}

// RequireAdmin is a convenience middleware for admin scope.
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeAdmin)
}

func firstOr(values []string, fallback string) string {
	if len(values) > 0 {
		return values[0]
	}
	return fallback
}
