package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/aitools/platform/internal/auth"
	"github.com/aitools/platform/internal/handler/dto"
	"github.com/aitools/platform/internal/identity"
	"github.com/aitools/platform/internal/metrics"
	"github.com/aitools/platform/internal/service"
)

// Default gate route sets.
var (
	DefaultProtectedPrefixes = []string{"/chat", "/image", "/video", "/audio", "/image-to-video", "/analytics", "/settings"}
	DefaultPublicAuthPaths   = []string{"/login", "/register"}
	DefaultExemptPaths       = []string{"/healthz", "/readyz", "/metrics", "/auth/callback"}
	DefaultExemptPrefixes    = []string{"/admin/"}
	staticExtensions         = map[string]bool{
		".js": true, ".css": true, ".map": true, ".png": true, ".jpg": true, ".jpeg": true,
		".gif": true, ".svg": true, ".ico": true, ".webp": true, ".avif": true,
		".woff": true, ".woff2": true, ".ttf": true, ".txt": true, ".webmanifest": true,
	}
)

// ProfileStateReader reports a user's onboarding state.
type ProfileStateReader interface {
	State(ctx context.Context, userID string) (service.ProfileState, error)
}

// GateConfig holds configuration for the session gate.
type GateConfig struct {
	Logger     *slog.Logger
	Provider   identity.Provider
	Profiles   ProfileStateReader
	Metrics    metrics.Recorder
	CookieName string

	LoginPath        string
	OnboardingPath   string
	SetupProfilePath string

	ProtectedPrefixes []string
	PublicAuthPaths   []string
	ExemptPaths       []string
	ExemptPrefixes    []string
}

func (c *GateConfig) setDefaults() {
	if c.Metrics == nil {
		c.Metrics = metrics.NewNoop()
	}
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	if c.OnboardingPath == "" {
		c.OnboardingPath = "/onboarding"
	}
	if c.SetupProfilePath == "" {
		c.SetupProfilePath = "/setup-profile"
	}
	if c.ProtectedPrefixes == nil {
		c.ProtectedPrefixes = DefaultProtectedPrefixes
	}
	if c.PublicAuthPaths == nil {
		c.PublicAuthPaths = DefaultPublicAuthPaths
	}
	if c.ExemptPaths == nil {
		c.ExemptPaths = DefaultExemptPaths
	}
	if c.ExemptPrefixes == nil {
		c.ExemptPrefixes = DefaultExemptPrefixes
	}
}

// SessionGate resolves the session on every request and applies the route
// policy: anonymous users are sent to login from protected pages, signed-in
// users are sent away from login and register, and users who have not
// finished onboarding are held at the onboarding page. Nothing is cached;
// every request resolves the session and reads the profile again.
func SessionGate(cfg GateConfig) func(http.Handler) http.Handler {
	cfg.setDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := r.URL.Path
			if cfg.isExempt(p) {
				next.ServeHTTP(w, r)
				return
			}

			sess := auth.Resolve(r.Context(), cfg.Provider, auth.TokenFromRequest(r, cfg.CookieName))
			cfg.Metrics.IncSessionResolution(sess.State.String())
			if sess.State == auth.ResolutionError {
				cfg.Logger.Warn("session resolution failed, treating as anonymous",
					slog.String("error", sess.Err.Error()),
					slog.String("path", p),
					slog.String("request_id", GetRequestID(r.Context())),
				)
			}

			api := isAPIPath(p)

			if sess.State != auth.Authenticated {
				if !api && hasAnyPrefix(p, cfg.ProtectedPrefixes) {
					cfg.redirect(w, r, cfg.LoginPath+"?"+url.Values{"redirect": {p}}.Encode(), "login")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			r = r.WithContext(auth.ContextWithUser(r.Context(), sess.User))
			recordUser(r)

			if matchesPath(p, cfg.PublicAuthPaths) {
				cfg.redirect(w, r, "/", "home")
				return
			}

			if cfg.skipsOnboarding(p) {
				next.ServeHTTP(w, r)
				return
			}

			state, err := cfg.Profiles.State(r.Context(), sess.User.ID)
			if err != nil {
				cfg.Logger.Error("profile lookup failed, letting request through",
					slog.String("error", err.Error()),
					slog.String("user_id", sess.User.ID),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				next.ServeHTTP(w, r)
				return
			}

			switch state {
			case service.ProfileMissing:
				if !api {
					cfg.redirect(w, r, cfg.SetupProfilePath, "setup_profile")
					return
				}
			case service.ProfileIncomplete:
				if api {
					cfg.Metrics.IncGateRedirect("onboarding")
					dto.WriteError(w, dto.CodeForbidden, "Please complete onboarding first", map[string]any{
						"redirect": cfg.OnboardingPath,
					})
					return
				}
				cfg.redirect(w, r, cfg.OnboardingPath, "onboarding")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (c *GateConfig) redirect(w http.ResponseWriter, r *http.Request, target, label string) {
	c.Metrics.IncGateRedirect(label)
	http.Redirect(w, r, target, http.StatusFound)
}

func (c *GateConfig) isExempt(p string) bool {
	if matchesPath(p, c.ExemptPaths) || hasAnyPrefix(p, c.ExemptPrefixes) {
		return true
	}
	return staticExtensions[strings.ToLower(path.Ext(p))]
}

func (c *GateConfig) skipsOnboarding(p string) bool {
	return matchesPath(p, []string{c.OnboardingPath, "/api/onboarding", c.SetupProfilePath, "/api/setup-profile"}) ||
		matchesPath(p, c.PublicAuthPaths)
}

// hasAnyPrefix matches whole path segments: /chat matches /chat and
// /chat/1 but not /chatter.
func hasAnyPrefix(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if p == prefix || strings.HasPrefix(p, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	return false
}

func matchesPath(p string, paths []string) bool {
	trimmed := p
	if len(trimmed) > 1 {
		trimmed = strings.TrimSuffix(trimmed, "/")
	}
	for _, candidate := range paths {
		if trimmed == candidate {
			return true
		}
	}
	return false
}
