package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tundex/cinemarket/internal/auth"
)

const authTestSecret = "middleware-test-secret"

func protectedEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := GetUser(r.Context())
		json.NewEncoder(w).Encode(map[string]string{"id": u.ID, "email": u.Email})
	})
}

func TestRequireAuthValidToken(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	token, err := svc.GenerateToken("user-123", "buyer@example.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	handler := RequireAuth(svc)(protectedEcho(t))
	req := httptest.NewRequest(http.MethodGet, "/purchases", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["id"] != "user-123" || body["email"] != "buyer@example.com" {
		t.Errorf("identity = %v", body)
	}
}

func TestRequireAuthMissingHeader(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	handler := RequireAuth(svc)(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/purchases", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var resp struct {
		Error map[string]string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error["code"] != "auth_failed" {
		t.Errorf("code = %q, want auth_failed", resp.Error["code"])
	}
}

func TestRequireAuthMalformedHeader(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	handler := RequireAuth(svc)(protectedEcho(t))

	for _, header := range []string{"Basic abc", "Bearer", "token-without-scheme"} {
		req := httptest.NewRequest(http.MethodGet, "/purchases", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	other, _ := auth.NewJWTService("different-secret").GenerateToken("user-123", "")
	handler := RequireAuth(svc)(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/purchases", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestOptionalAuthWithToken(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	token, _ := svc.GenerateToken("user-123", "buyer@example.com")
	handler := OptionalAuth(svc)(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/movies/x/reviews", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["id"] != "user-123" {
		t.Errorf("identity = %v, want authenticated user", body)
	}
}

func TestOptionalAuthWithoutToken(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	handler := OptionalAuth(svc)(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/movies/x/reviews", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 without a token", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["id"] != "" {
		t.Errorf("identity = %v, want anonymous", body)
	}
}

func TestOptionalAuthBadTokenPassesThroughAnonymously(t *testing.T) {
	svc := auth.NewJWTService(authTestSecret)
	handler := OptionalAuth(svc)(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/movies/x/reviews", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["id"] != "" {
		t.Errorf("identity = %v, want anonymous for invalid token", body)
	}
}
