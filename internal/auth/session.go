package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aitools/platform/internal/identity"
	"github.com/aitools/platform/internal/model"
)

// SessionState classifies the outcome of session resolution.
type SessionState int

// Session states.
const (
	Anonymous SessionState = iota
	Authenticated
	ResolutionError
)

func (s SessionState) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case ResolutionError:
		return "resolution_error"
	default:
		return "anonymous"
	}
}

// Session is the typed result of resolving a request's session token.
// User is set only when State is Authenticated; Err only when State is
// ResolutionError.
type Session struct {
	State SessionState
	User  *model.User
	Err   error
}

// Resolve forwards token to the provider. An empty token or a rejected one
// is Anonymous; any other provider failure is a ResolutionError.
func Resolve(ctx context.Context, provider identity.Provider, token string) Session {
	if token == "" {
		return Session{State: Anonymous}
	}

	user, err := provider.ResolveUser(ctx, token)
	switch {
	case err == nil && user != nil:
		return Session{State: Authenticated, User: user}
	case err == nil, errors.Is(err, identity.ErrInvalidSession):
		return Session{State: Anonymous}
	default:
		return Session{State: ResolutionError, Err: err}
	}
}

// TokenFromRequest reads the session token from cookieName, falling back to
// an Authorization: Bearer header for API clients.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}

	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
