package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestRequireJWTMissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me/analyses", nil)
	rec := httptest.NewRecorder()

	RequireJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestRequireJWTInvalidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me/analyses", nil)
	req.Header.Set("Authorization", "Bearer "+signedUserToken(t, "wrong", "user-1"))
	rec := httptest.NewRecorder()

	RequireJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestRequireJWTValidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me/analyses", nil)
	req.Header.Set("Authorization", "Bearer "+signedUserToken(t, "secret", "user-1"))
	rec := httptest.NewRecorder()

	var got string
	RequireJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if got != "user-1" {
		t.Fatalf("expected subject user-1, got %q", got)
	}
}

func TestOptionalJWTAnonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/uploads", nil)
	rec := httptest.NewRecorder()

	called := false
	OptionalJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if id := UserID(r.Context()); id != "" {
			t.Fatalf("expected anonymous caller, got %q", id)
		}
	})).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
}

func TestOptionalJWTRejectsBadToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/uploads", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()

	OptionalJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func signedUserToken(t *testing.T, secret, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
