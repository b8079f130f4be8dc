package handler

import (
	"log/slog"
	"net/http"

	"github.com/aitools/platform/internal/handler/dto"
	"github.com/aitools/platform/internal/service"
)

// CreditsHandler exposes the signed-in user's balance.
type CreditsHandler struct {
	responder
	ledger *service.Ledger
}

// NewCreditsHandler creates a new CreditsHandler.
func NewCreditsHandler(ledger *service.Ledger, logger *slog.Logger, development bool) *CreditsHandler {
	return &CreditsHandler{
		responder: responder{logger: logger.With("component", "handler.credits"), development: development},
		ledger:    ledger,
	}
}

// Balance handles GET /api/credits.
func (h *CreditsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	balance, err := h.ledger.Balance(r.Context(), user.ID)
	if err != nil {
		h.handleServiceError(w, r, "credits_balance", err, dto.CodeQuery, "Failed to fetch credits")
		return
	}

	dto.WriteSuccess(w, http.StatusOK, balance, nil)
}
