// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aitools/platform/internal/auth"
	"github.com/aitools/platform/internal/handler/dto"
	"github.com/aitools/platform/internal/middleware"
	"github.com/aitools/platform/internal/model"
	"github.com/aitools/platform/internal/service"
)

// Handler answers requests that match no route.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	dto.WriteError(w, dto.CodeNotFound, "Resource not found", nil)
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	dto.WriteError(w, dto.CodeMethodNotAllowed, "Method not allowed", nil)
}

// responder is embedded by handlers that translate service errors.
type responder struct {
	logger      *slog.Logger
	development bool
}

// handleServiceError maps service errors to envelopes. Errors the mapping
// does not know are logged with op and answered with fallbackCode.
func (h responder) handleServiceError(w http.ResponseWriter, r *http.Request, op string, err error, fallbackCode, fallbackMessage string) {
	if ve, ok := service.AsValidationError(err); ok {
		dto.WriteError(w, dto.CodeValidation, ve.Message, ve.Details)
		return
	}

	switch {
	case errors.Is(err, service.ErrUnauthorized):
		dto.WriteError(w, dto.CodeUnauthorized, "Please login first", nil)
	case errors.Is(err, service.ErrOnboardingRequired):
		dto.WriteError(w, dto.CodeForbidden, "Please complete onboarding first", map[string]any{"redirect": "/onboarding"})
	case errors.Is(err, service.ErrForbidden):
		dto.WriteError(w, dto.CodeForbidden, "Access denied", nil)
	case errors.Is(err, service.ErrNotFound):
		dto.WriteError(w, dto.CodeNotFound, notFoundMessage(op), nil)
	default:
		h.logger.Error("internal_error",
			"op", op,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		dto.WriteError(w, fallbackCode, fallbackMessage, h.detail(err))
	}
}

// detail exposes the error text outside production.
func (h responder) detail(err error) map[string]any {
	if !h.development || err == nil {
		return nil
	}
	return map[string]any{"message": err.Error()}
}

func notFoundMessage(op string) string {
	switch op {
	case "list_messages":
		return "Conversation not found"
	case "complete_onboarding":
		return "Profile not found"
	case "revoke_service_key":
		return "Service key not found"
	case "credits_balance", "admin_balance", "admin_grant_bonus":
		return "Credits not found"
	}
	return "Resource not found"
}

func insufficientCreditsMessage(pool model.Pool) string {
	return fmt.Sprintf("Insufficient %s credits", pool)
}

// requireUser answers 401 when the gate resolved no user.
func requireUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user := auth.UserFromContext(r.Context())
	if user == nil || user.ID == "" {
		dto.WriteError(w, dto.CodeUnauthorized, "Please login first", nil)
		return nil, false
	}
	return user, true
}

// decodeJSON reads a JSON body into v, answering the client on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			dto.WriteError(w, dto.CodePayloadTooLarge, "Request body too large", nil)
			return false
		}
		dto.WriteError(w, dto.CodeValidation, "Invalid request body", map[string]any{"reason": "INVALID_JSON"})
		return false
	}
	return true
}
