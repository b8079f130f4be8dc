package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aitools/platform/internal/handler/dto"
	"github.com/aitools/platform/internal/service"
)

func TestHandler_NotFound(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	New().NotFound(rec, httptest.NewRequest(http.MethodGet, "/api/nonexistent", nil))

	env := wantError(t, rec, http.StatusNotFound, dto.CodeNotFound)
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %s", rec.Header().Get("Content-Type"))
	}
	if env.Error.Message != "Resource not found" {
		t.Errorf("message = %q", env.Error.Message)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	New().MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/chat", nil))
	wantError(t, rec, http.StatusMethodNotAllowed, dto.CodeMethodNotAllowed)
}

func TestResponder_HandleServiceError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		development bool
		wantStatus  int
		wantCode    string
		wantDetail  bool
	}{
		{"validation", service.NewValidationError("bad", map[string]any{"field": "x"}), false, http.StatusBadRequest, dto.CodeValidation, false},
		{"unauthorized", service.ErrUnauthorized, false, http.StatusUnauthorized, dto.CodeUnauthorized, false},
		{"forbidden", service.ErrForbidden, false, http.StatusForbidden, dto.CodeForbidden, false},
		{"not found", service.ErrNotFound, false, http.StatusNotFound, dto.CodeNotFound, false},
		{"onboarding", service.ErrOnboardingRequired, false, http.StatusForbidden, dto.CodeForbidden, false},
		{"internal in production", errors.New("pq: connection reset"), false, http.StatusInternalServerError, dto.CodeQuery, false},
		{"internal in development", errors.New("pq: connection reset"), true, http.StatusInternalServerError, dto.CodeQuery, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := responder{logger: discardLogger(), development: tt.development}
			rec := httptest.NewRecorder()
			h.handleServiceError(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil), "test_op", tt.err, dto.CodeQuery, "Failed")

			env := wantError(t, rec, tt.wantStatus, tt.wantCode)
			msg, hasDetail := env.Error.Details["message"].(string)
			if hasDetail != tt.wantDetail {
				t.Errorf("details = %v, want detail %v", env.Error.Details, tt.wantDetail)
			}
			if hasDetail && !strings.Contains(msg, "connection reset") {
				t.Errorf("detail message = %q", msg)
			}
		})
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"`+strings.Repeat("a", 64)+`"}`))
	rec := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rec, req.Body, 16)

	var v dto.ChatRequest
	if decodeJSON(rec, req, &v) {
		t.Fatal("decode should fail")
	}
	wantError(t, rec, http.StatusRequestEntityTooLarge, dto.CodePayloadTooLarge)
}
