package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/aitools/platform/internal/auth"
	"github.com/aitools/platform/internal/handler/dto"
	"github.com/aitools/platform/internal/middleware"
)

// PageHandler answers page requests that passed the session gate. With a
// frontend configured the request is proxied to it; otherwise a JSON page
// descriptor is returned.
type PageHandler struct {
	proxy  *httputil.ReverseProxy
	logger *slog.Logger
}

// NewPageHandler creates a new PageHandler. An empty frontendURL disables
// proxying.
func NewPageHandler(frontendURL string, logger *slog.Logger) (*PageHandler, error) {
	h := &PageHandler{logger: logger.With("component", "handler.page")}
	if frontendURL == "" {
		return h, nil
	}

	target, err := url.Parse(frontendURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid frontend url %q", frontendURL)
	}

	h.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			if id := auth.UserIDFromContext(pr.In.Context()); id != "" {
				pr.Out.Header.Set("X-User-Id", id)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			h.logger.Error("frontend_unavailable",
				"error", err,
				"path", r.URL.Path,
				"request_id", middleware.GetRequestID(r.Context()),
			)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	return h, nil
}

// Serve handles every route not claimed by the API.
func (h *PageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	if h.proxy != nil {
		r.Header.Del("X-User-Id")
		h.proxy.ServeHTTP(w, r)
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	dto.WriteSuccess(w, http.StatusOK, dto.PageResponse{
		Page:          r.URL.Path,
		Authenticated: userID != "",
		UserID:        userID,
	}, nil)
}
