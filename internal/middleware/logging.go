package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aitools/platform/internal/auth"
)

const principalKey contextKey = "access_log_principal"

// principal collects who made the request. Authentication happens on a
// derived request further down the chain, so the access log hands a mutable
// slot down through the context and reads it after the handler returns.
type principal struct {
	userID string
	keyID  string
}

func principalFrom(ctx context.Context) *principal {
	p, _ := ctx.Value(principalKey).(*principal)
	return p
}

// recordUser notes the session user for the access log.
func recordUser(r *http.Request) {
	if p := principalFrom(r.Context()); p != nil {
		p.userID = auth.UserIDFromContext(r.Context())
	}
}

// recordServiceKey notes the authenticated service key for the access log.
func recordServiceKey(r *http.Request) {
	if p := principalFrom(r.Context()); p != nil {
		if svc := auth.ServiceFromContext(r.Context()); svc != nil {
			p.keyID = svc.KeyID
		}
	}
}

// responseWriter captures the status code and body size.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger returns a middleware that writes one access log line per request.
// Only the path is logged; session tokens, service keys and query strings
// never are.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)
			who := &principal{}

			next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), principalKey, who)))

			attrs := make([]slog.Attr, 0, 10)
			attrs = append(attrs,
				slog.String("request_id", GetRequestID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", wrapped.status),
				slog.Int("bytes", wrapped.bytes),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			)
			if who.userID != "" {
				attrs = append(attrs, slog.String("user_id", who.userID))
			}
			if who.keyID != "" {
				attrs = append(attrs, slog.String("key_id", who.keyID))
			}

			level := slog.LevelInfo
			switch {
			case wrapped.status >= 500:
				level = slog.LevelError
			case wrapped.status >= 400:
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "http request", attrs...)
		})
	}
}
