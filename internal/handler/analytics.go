package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aitools/platform/internal/handler/dto"
	"github.com/aitools/platform/internal/service"
)

// AnalyticsHandler handles analytics API requests.
type AnalyticsHandler struct {
	responder
	svc *service.Analytics
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(svc *service.Analytics, logger *slog.Logger, development bool) *AnalyticsHandler {
	return &AnalyticsHandler{
		responder: responder{logger: logger.With("component", "handler.analytics"), development: development},
		svc:       svc,
	}
}

// Get handles GET /api/analytics?range=.
func (h *AnalyticsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	report, err := h.svc.Summary(r.Context(), r.URL.Query().Get("range"))
	if err != nil {
		h.handleServiceError(w, r, "analytics_summary", err, dto.CodeInternal, "Failed to fetch analytics")
		return
	}

	dto.WriteSuccess(w, http.StatusOK, report.Summary, map[string]any{
		"range":     report.Range,
		"startDate": report.Start.Format(time.RFC3339),
		"endDate":   report.End.Format(time.RFC3339),
	})
}
