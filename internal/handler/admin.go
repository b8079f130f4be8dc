package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aitools/platform/internal/auth"
	"github.com/aitools/platform/internal/handler/dto"
	"github.com/aitools/platform/internal/middleware"
	"github.com/aitools/platform/internal/model"
	"github.com/aitools/platform/internal/service"
)

// AdminHandler provides back-office credit endpoints behind service keys.
type AdminHandler struct {
	responder
	ledger *service.Ledger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(ledger *service.Ledger, logger *slog.Logger, development bool) *AdminHandler {
	return &AdminHandler{
		responder: responder{logger: logger.With("component", "handler.admin"), development: development},
		ledger:    ledger,
	}
}

// Balance handles GET /admin/v1/credits/{user_id}.
func (h *AdminHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userParam(w, r)
	if !ok {
		return
	}

	balance, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, r, "admin_balance", err, dto.CodeQuery, "Failed to fetch credits")
		return
	}

	dto.WriteSuccess(w, http.StatusOK, balance, map[string]any{"user_id": userID})
}

// GrantBonus handles POST /admin/v1/credits/{user_id}/bonus.
func (h *AdminHandler) GrantBonus(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userParam(w, r)
	if !ok {
		return
	}

	var req dto.GrantBonusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pool, err := model.ParsePool(req.Pool)
	if err != nil {
		dto.WriteError(w, dto.CodeValidation, "Invalid pool", map[string]any{
			"allowed": []model.Pool{model.PoolChat, model.PoolGraphic},
		})
		return
	}

	balance, err := h.ledger.GrantBonus(r.Context(), userID, pool, req.Amount)
	if err != nil {
		h.handleServiceError(w, r, "admin_grant_bonus", err, dto.CodeInternal, "An error occurred")
		return
	}

	keyID := ""
	if svc := auth.ServiceFromContext(r.Context()); svc != nil {
		keyID = svc.KeyID
	}
	h.logger.Info("bonus_granted",
		"user_id", userID,
		"pool", pool,
		"amount", req.Amount,
		"key_id", keyID,
		"request_id", middleware.GetRequestID(r.Context()),
	)

	dto.WriteSuccess(w, http.StatusOK, balance, map[string]any{"user_id": userID})
}

func (h *AdminHandler) userParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "user_id")
	if !middleware.ValidUserID(userID) {
		dto.WriteError(w, dto.CodeValidation, "Invalid user_id", nil)
		return "", false
	}
	return userID, true
}
