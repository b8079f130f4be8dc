package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aitools/platform/internal/auth"
	"github.com/aitools/platform/internal/handler/dto"
	"github.com/aitools/platform/internal/model"
	"github.com/aitools/platform/internal/service"
)

const (
	// minAuthDuration is the minimum time to spend on auth to prevent timing attacks.
	minAuthDuration = 200 * time.Millisecond
)

// ServiceKeyAuthenticator resolves a raw service key.
type ServiceKeyAuthenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*model.ServiceContext, error)
}

// AuthConfig holds configuration for the service key middleware.
type AuthConfig struct {
	Logger *slog.Logger
	Keys   ServiceKeyAuthenticator
	// MinDuration overrides minAuthDuration; tests set it low.
	MinDuration time.Duration
}

// ServiceKeyAuth returns a middleware that authenticates back-office
// requests. Every failure is answered with the same 401 after the same
// minimum delay so that callers cannot tell why a key was rejected.
func ServiceKeyAuth(cfg AuthConfig) func(http.Handler) http.Handler {
	minDuration := cfg.MinDuration
	if minDuration == 0 {
		minDuration = minAuthDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			defer func() {
				if elapsed := time.Since(startTime); elapsed < minDuration {
					time.Sleep(minDuration - elapsed)
				}
			}()

			svc, err := cfg.Keys.Authenticate(r.Context(), extractServiceKey(r))
			if err != nil {
				reason := err.Error()
				level := slog.LevelWarn
				if !isRejection(err) {
					reason = "lookup_error"
					level = slog.LevelError
				}
				cfg.Logger.LogAttrs(r.Context(), level, "authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			cfg.Logger.Info("authentication successful",
				slog.String("key_id", svc.KeyID),
				slog.String("key_prefix", svc.KeyPrefix),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			r = r.WithContext(auth.ContextWithService(r.Context(), svc))
			recordServiceKey(r)
			next.ServeHTTP(w, r)
		})
	}
}

// extractServiceKey supports both "Authorization: Bearer <key>" and
// "X-Service-Key: <key>".
func extractServiceKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.Header.Get("X-Service-Key")
}

func isRejection(err error) bool {
	for _, target := range []error{service.ErrKeyMissing, service.ErrKeyFormat, service.ErrKeyInvalid, service.ErrKeyRevoked} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeAuthError uses the same message for all auth failures to prevent
// enumeration.
func writeAuthError(w http.ResponseWriter) {
	dto.WriteError(w, dto.CodeUnauthorized, "Invalid or missing service key", nil)
}
