package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aitools/platform/internal/auth"
	"github.com/aitools/platform/internal/handler/dto"
	"github.com/aitools/platform/internal/model"
	"github.com/aitools/platform/internal/service"
)

// ServiceKeyHandler manages back-office service keys. Routes require the
// admin scope.
type ServiceKeyHandler struct {
	responder
	svc *service.ServiceKeys
}

// NewServiceKeyHandler creates a new ServiceKeyHandler.
func NewServiceKeyHandler(svc *service.ServiceKeys, logger *slog.Logger, development bool) *ServiceKeyHandler {
	return &ServiceKeyHandler{
		responder: responder{logger: logger.With("component", "handler.service_keys"), development: development},
		svc:       svc,
	}
}

// Create handles POST /admin/v1/keys.
func (h *ServiceKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateServiceKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	env := req.Env
	if env == "" {
		env = auth.EnvLive
	}
	if env != auth.EnvLive && env != auth.EnvTest {
		dto.WriteError(w, dto.CodeValidation, "Invalid env", map[string]any{
			"allowed": []string{auth.EnvLive, auth.EnvTest},
		})
		return
	}

	key, plaintext, err := h.svc.Create(r.Context(), req.Name, req.Scopes, env)
	if err != nil {
		h.handleServiceError(w, r, "create_service_key", err, dto.CodeCreate, "Failed to create service key")
		return
	}

	dto.WriteSuccess(w, http.StatusCreated, dto.ServiceKeyCreated{ServiceKey: key, Key: plaintext}, nil)
}

// List handles GET /admin/v1/keys.
func (h *ServiceKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.svc.List(r.Context())
	if err != nil {
		h.handleServiceError(w, r, "list_service_keys", err, dto.CodeQuery, "Failed to list service keys")
		return
	}
	if keys == nil {
		keys = []*model.ServiceKey{}
	}

	dto.WriteSuccess(w, http.StatusOK, dto.ServiceKeysResponse{Keys: keys}, nil)
}

// Revoke handles DELETE /admin/v1/keys/{key_id}.
func (h *ServiceKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "key_id")
	if keyID == "" {
		dto.WriteError(w, dto.CodeValidation, "Key ID is required", nil)
		return
	}

	caller := ""
	if svc := auth.ServiceFromContext(r.Context()); svc != nil {
		caller = svc.KeyID
	}

	if err := h.svc.Revoke(r.Context(), keyID, caller); err != nil {
		h.handleServiceError(w, r, "revoke_service_key", err, dto.CodeInternal, "Failed to revoke service key")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
