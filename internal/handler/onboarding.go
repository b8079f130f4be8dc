package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aitools/platform/internal/handler/dto"
	"github.com/aitools/platform/internal/service"
)

// OnboardingHandler handles first-login setup and the onboarding form.
type OnboardingHandler struct {
	responder
	svc *service.Onboarding
}

// NewOnboardingHandler creates a new OnboardingHandler.
func NewOnboardingHandler(svc *service.Onboarding, logger *slog.Logger, development bool) *OnboardingHandler {
	return &OnboardingHandler{
		responder: responder{logger: logger.With("component", "handler.onboarding"), development: development},
		svc:       svc,
	}
}

// Complete handles POST /api/onboarding.
func (h *OnboardingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.OnboardingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := h.svc.Complete(r.Context(), user.ID, service.OnboardingForm{
		Phone:       req.Phone,
		CompanyName: req.CompanyName,
		JobTitle:    req.JobTitle,
		Industry:    req.Industry,
		Locale:      req.Locale,
	})
	if err != nil {
		h.handleServiceError(w, r, "complete_onboarding", err, dto.CodeInternal, "An error occurred")
		return
	}

	dto.WriteSuccess(w, http.StatusOK, dto.ProfileResponse{Profile: profile}, map[string]any{
		"message": "Onboarding completed successfully",
	})
}

// SetupProfile handles POST /api/setup-profile. It is safe to call
// repeatedly; only the first call creates anything.
func (h *OnboardingHandler) SetupProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	details, created, err := h.svc.Setup(r.Context(), user)
	if err != nil {
		if errors.Is(err, service.ErrFreePlanMissing) {
			h.logger.Error("setup_profile_failed", "op", "setup_profile", "error", err, "user_id", user.ID)
			dto.WriteError(w, dto.CodeSetup, "Free plan not found in database. Please contact support.", nil)
			return
		}
		h.handleServiceError(w, r, "setup_profile", err, dto.CodeSetup, "Failed to create profile")
		return
	}

	var meta map[string]any
	if created {
		meta = map[string]any{"message": "Profile created successfully"}
	}
	dto.WriteSuccess(w, http.StatusOK, details, meta)
}
