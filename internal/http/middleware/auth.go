package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const userClaimsKey contextKey = "userClaims"

// OptionalJWT attaches the caller's claims when a valid bearer token is
// present. Requests without a token pass through as anonymous; a token
// that fails verification is rejected.
func OptionalJWT(secret string) func(http.Handler) http.Handler {
	return jwtMiddleware(secret, false)
}

// RequireJWT rejects requests without a valid HMAC-signed bearer token.
func RequireJWT(secret string) func(http.Handler) http.Handler {
	return jwtMiddleware(secret, true)
}

func jwtMiddleware(secret string, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				if required {
					http.Error(w, "missing authorization header", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if secret == "" {
				http.Error(w, "user auth disabled", http.StatusUnauthorized)
				return
			}
			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), userClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserClaimsFromContext returns the caller's JWT claims if present.
func UserClaimsFromContext(ctx context.Context) (jwt.RegisteredClaims, bool) {
	claims, ok := ctx.Value(userClaimsKey).(jwt.RegisteredClaims)
	return claims, ok
}

// UserID is the token subject, or "" for anonymous callers.
func UserID(ctx context.Context) string {
	claims, ok := UserClaimsFromContext(ctx)
	if !ok {
		return ""
	}
	return claims.Subject
}

// WithUserID returns a context carrying a subject, for tests and internal callers.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userClaimsKey, jwt.RegisteredClaims{Subject: userID})
}
