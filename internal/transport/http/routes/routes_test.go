package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/bmyhack/omms-api/internal/infra/config"
)

func testEngineDeps() Dependencies {
	return Dependencies{
		Config: &config.AppConfig{},
		Logger: zap.NewNop(),
	}
}

func TestRegister_Healthz(t *testing.T) {
	engine := Register(testEngineDeps())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ok") {
		t.Fatalf("unexpected health body: %s", w.Body.String())
	}
}

func TestRegister_Readyz(t *testing.T) {
	engine := Register(testEngineDeps())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with no checks configured, got %d", w.Code)
	}
}

func TestRegister_ProtectedRoutesRequireAuth(t *testing.T) {
	engine := Register(testEngineDeps())

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/users"},
		{http.MethodPost, "/api/v1/roles"},
		{http.MethodPut, "/api/v1/users/1/roles"},
		{http.MethodDelete, "/api/v1/permissions/1"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(tc.method, tc.path, nil)
		engine.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", tc.method, tc.path, w.Code)
		}
	}
}

func TestRegister_AuthMeRegistered(t *testing.T) {
	engine := Register(testEngineDeps())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	engine.ServeHTTP(w, req)

	if w.Code == http.StatusNotFound {
		t.Fatalf("GET /api/v1/auth/me is not registered")
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", w.Code)
	}
}

func TestRegister_MalformedBearerRejected(t *testing.T) {
	engine := Register(testEngineDeps())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Basic abc123")
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-bearer scheme, got %d", w.Code)
	}
}

func TestRegister_MetricsDisabledByDefault(t *testing.T) {
	engine := Register(testEngineDeps())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when metrics are disabled, got %d", w.Code)
	}
}
