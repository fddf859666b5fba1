package auth

import (
	"net/http"
	"strings"

	"github.com/YelovSK/Damebooru-sub002/internal/httputil"
)

// Middleware rejects unauthenticated requests when auth is enabled. The
// token comes from the session cookie or a Bearer header.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}
		token := ExtractToken(r)
		if token == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if err := s.Validate(token); err != nil {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid session")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractToken pulls the session token from the Authorization header or
// the session cookie, in that order.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}
