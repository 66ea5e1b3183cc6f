package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"v1tr0-backend/internal/auth"
	"v1tr0-backend/internal/transport"
)

const AccessCookie = "v1tr0_access"

// RequireRole lets through requests carrying the admin key or a token with
// role. Missing or invalid credentials get 401, a valid token with another
// role gets 403.
func RequireRole(adminKey string, manager *auth.Manager, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" && manager == nil {
				transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
				return
			}

			if key := r.Header.Get("X-Admin-Key"); adminKey != "" && key != "" {
				if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}

			token := bearerToken(r)
			if token == "" || manager == nil {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			claims, err := manager.Parse(token)
			if err != nil {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			if claims.Role != role {
				transport.WriteError(w, http.StatusForbidden, "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := r.Cookie(AccessCookie); err == nil {
		return cookie.Value
	}
	return ""
}
