package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aitools/platform/internal/auth"
	"github.com/aitools/platform/internal/model"
)

// logOne runs h behind Logger and returns the decoded access log line.
func logOne(t *testing.T, h http.HandlerFunc, req *http.Request) (map[string]any, string) {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	Logger(logger)(h).ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return entry, buf.String()
}

func TestLogging_CredentialRedaction(t *testing.T) {
	t.Parallel()

	const (
		serviceKey = "sk_live_abc123_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b"
		session    = "eyJhbGciOiJIUzI1NiJ9.session.token"
	)

	req := httptest.NewRequest(http.MethodGet, "/api/credits?token="+session, nil)
	req.Header.Set("Authorization", "Bearer "+session)
	req.Header.Set("X-Service-Key", serviceKey)
	req.AddCookie(&http.Cookie{Name: "sb-access-token", Value: session})

	_, raw := logOne(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, req)

	for _, secret := range []string{serviceKey, session, "Bearer", "sb-access-token"} {
		if strings.Contains(raw, secret) {
			t.Errorf("log output contains %q", secret)
		}
	}
}

func TestLogging_Principal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantField string
		wantValue string
	}{
		{
			name: "session user",
			handler: func(w http.ResponseWriter, r *http.Request) {
				r = r.WithContext(auth.ContextWithUser(r.Context(), &model.User{ID: "user-42"}))
				recordUser(r)
			},
			wantField: "user_id",
			wantValue: "user-42",
		},
		{
			name: "service key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				r = r.WithContext(auth.ContextWithService(r.Context(), &model.ServiceContext{KeyID: "key-7"}))
				recordServiceKey(r)
			},
			wantField: "key_id",
			wantValue: "key-7",
		},
		{
			name:    "anonymous",
			handler: func(w http.ResponseWriter, r *http.Request) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			entry, _ := logOne(t, tt.handler, httptest.NewRequest(http.MethodGet, "/chat", nil))
			if tt.wantField == "" {
				if _, ok := entry["user_id"]; ok {
					t.Errorf("anonymous request logged user_id: %v", entry)
				}
				return
			}
			if got := entry[tt.wantField]; got != tt.wantValue {
				t.Errorf("%s = %v, want %s", tt.wantField, got, tt.wantValue)
			}
		})
	}
}

func TestLogging_Fields(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/api/projects", nil)
	req.Header.Set("User-Agent", "TestBrowser/2.0")

	entry, _ := logOne(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true}`))
	}, req)

	want := map[string]any{
		"msg":         "http request",
		"method":      "POST",
		"path":        "/api/projects",
		"status_code": float64(201),
		"bytes":       float64(16),
		"user_agent":  "TestBrowser/2.0",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("duration_ms missing")
	}
}

func TestLogging_Level(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusFound, "INFO"},
		{http.StatusPaymentRequired, "WARN"},
		{http.StatusTooManyRequests, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
		{http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()

			entry, _ := logOne(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}, httptest.NewRequest(http.MethodGet, "/api/credits", nil))
			if entry["level"] != tt.want {
				t.Errorf("level = %v, want %s", entry["level"], tt.want)
			}
		})
	}
}

func TestResponseWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		write      func(w *responseWriter)
		wantStatus int
		wantBytes  int
	}{
		{"implicit 200", func(w *responseWriter) { _, _ = w.Write([]byte("hello")) }, http.StatusOK, 5},
		{"explicit status", func(w *responseWriter) { w.WriteHeader(http.StatusNoContent) }, http.StatusNoContent, 0},
		{"first header wins", func(w *responseWriter) {
			w.WriteHeader(http.StatusCreated)
			w.WriteHeader(http.StatusInternalServerError)
		}, http.StatusCreated, 0},
		{"bytes accumulate", func(w *responseWriter) {
			_, _ = w.Write([]byte("ab"))
			_, _ = w.Write([]byte("cde"))
		}, http.StatusOK, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			w := wrapResponseWriter(rec)
			tt.write(w)

			if w.status != tt.wantStatus || rec.Code != tt.wantStatus {
				t.Errorf("status = %d (recorder %d), want %d", w.status, rec.Code, tt.wantStatus)
			}
			if w.bytes != tt.wantBytes {
				t.Errorf("bytes = %d, want %d", w.bytes, tt.wantBytes)
			}
		})
	}
}
