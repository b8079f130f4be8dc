package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/aitools/platform/internal/handler/dto"
)

// Recoverer is a middleware that recovers from panics.
// It logs the panic and answers with an INTERNAL_ERROR envelope; the panic
// value only reaches the client in development.
func Recoverer(logger *slog.Logger, development bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				logger.Error("panic recovered",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.Any("panic", rvr),
					slog.String("stack", string(debug.Stack())),
				)

				var details map[string]any
				if development {
					details = map[string]any{"message": slog.AnyValue(rvr).String()}
				}
				dto.WriteError(w, dto.CodeInternal, "An error occurred", details)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
