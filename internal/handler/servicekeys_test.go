package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aitools/platform/internal/auth"
	"github.com/aitools/platform/internal/handler/dto"
	"github.com/aitools/platform/internal/model"
	"github.com/aitools/platform/internal/repository"
	"github.com/aitools/platform/internal/service"
)

type memKeys struct {
	mu   sync.Mutex
	keys []*model.ServiceKey
}

func (m *memKeys) CreateServiceKey(ctx context.Context, key *model.ServiceKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

func (m *memKeys) GetServiceKeysByPrefix(ctx context.Context, prefix string) ([]*model.ServiceKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ServiceKey
	for _, k := range m.keys {
		if k.KeyPrefix == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memKeys) UpdateServiceKeyLastUsed(ctx context.Context, id string) error { return nil }

func (m *memKeys) ListServiceKeys(ctx context.Context) ([]*model.ServiceKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.ServiceKey(nil), m.keys...), nil
}

func (m *memKeys) RevokeServiceKey(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.ID == id && k.RevokedAt == nil {
			now := time.Now()
			k.RevokedAt = &now
			return nil
		}
	}
	return repository.ErrServiceKeyNotFound
}

// keysRouter mounts the key routes behind a caller identified as callerID.
func keysRouter(store *memKeys, callerID string) http.Handler {
	h := NewServiceKeyHandler(service.NewServiceKeys(store, discardLogger()), discardLogger(), false)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.ContextWithService(r.Context(), &model.ServiceContext{KeyID: callerID, Scopes: []string{model.ScopeAdmin}})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Get("/admin/v1/keys", h.List)
	r.Post("/admin/v1/keys", h.Create)
	r.Delete("/admin/v1/keys/{key_id}", h.Revoke)
	return r
}

func TestServiceKeyHandler_Create(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantPrefix string
	}{
		{"live by default", `{"name":"billing","scopes":["credits:read"]}`, http.StatusCreated, "sk_live_"},
		{"test env", `{"name":"ci","scopes":["credits:write"],"env":"test"}`, http.StatusCreated, "sk_test_"},
		{"unknown env", `{"name":"ci","scopes":["admin"],"env":"prod"}`, http.StatusBadRequest, ""},
		{"missing name", `{"scopes":["admin"]}`, http.StatusBadRequest, ""},
		{"unknown scope", `{"name":"x","scopes":["links:write"]}`, http.StatusBadRequest, ""},
		{"no scopes", `{"name":"x"}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &memKeys{}
			req := httptest.NewRequest(http.MethodPost, "/admin/v1/keys", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			keysRouter(store, "caller").ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantPrefix == "" {
				if len(store.keys) != 0 {
					t.Errorf("stored %d keys on a rejected request", len(store.keys))
				}
				return
			}

			var created struct {
				ID     string   `json:"id"`
				Key    string   `json:"key"`
				Scopes []string `json:"scopes"`
			}
			dataAs(t, decodeEnvelope(t, rec), &created)
			if !strings.HasPrefix(created.Key, tt.wantPrefix) {
				t.Errorf("key = %q, want prefix %q", created.Key, tt.wantPrefix)
			}
			if strings.Contains(rec.Body.String(), "key_hash") {
				t.Error("hash leaked in response")
			}
			if len(store.keys) != 1 || store.keys[0].ID != created.ID {
				t.Errorf("stored keys = %+v", store.keys)
			}
		})
	}
}

func TestServiceKeyHandler_ListAndRevoke(t *testing.T) {
	t.Parallel()

	store := &memKeys{keys: []*model.ServiceKey{
		{ID: "key-caller", Name: "ops", KeyPrefix: "aaaaaa", Scopes: []string{model.ScopeAdmin}, CreatedAt: time.Now()},
		{ID: "key-other", Name: "billing", KeyPrefix: "bbbbbb", Scopes: []string{model.ScopeCreditsRead}, CreatedAt: time.Now()},
	}}
	router := keysRouter(store, "key-caller")

	do := func(method, target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
		return rec
	}

	rec := do(http.MethodGet, "/admin/v1/keys")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listed dto.ServiceKeysResponse
	dataAs(t, decodeEnvelope(t, rec), &listed)
	if len(listed.Keys) != 2 {
		t.Fatalf("listed %d keys, want 2", len(listed.Keys))
	}

	rec = do(http.MethodDelete, "/admin/v1/keys/key-caller")
	wantError(t, rec, http.StatusBadRequest, dto.CodeValidation)

	rec = do(http.MethodDelete, "/admin/v1/keys/key-missing")
	env := wantError(t, rec, http.StatusNotFound, dto.CodeNotFound)
	if env.Error.Message != "Service key not found" {
		t.Errorf("message = %q", env.Error.Message)
	}

	rec = do(http.MethodDelete, "/admin/v1/keys/key-other")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("revoke status = %d (body %s)", rec.Code, rec.Body.String())
	}
	if store.keys[1].RevokedAt == nil {
		t.Error("key-other not revoked")
	}

	rec = do(http.MethodDelete, "/admin/v1/keys/key-other")
	wantError(t, rec, http.StatusNotFound, dto.CodeNotFound)
}
