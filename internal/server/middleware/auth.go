// Package middleware provides HTTP middleware: auth, logging, recovery,
// and security headers.
package middleware

import (
	"net/http"
	"strings"

	"github.com/jmorrell/busysync/internal/crypto"
	"github.com/jmorrell/busysync/internal/response"
	"github.com/jmorrell/busysync/internal/util"
)

// Auth returns middleware that requires a bearer token on every request.
// When no token is configured the middleware passes everything through;
// the service is assumed to sit behind local-only or reverse-proxy auth.
func Auth(verifier *crypto.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !verifier.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				response.WriteUnauthorized(w)
				return
			}

			if !verifier.Verify(token) {
				util.Warn("Rejected request with invalid API token",
					"path", r.URL.Path, "remote_addr", r.RemoteAddr)
				response.WriteUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token from the Authorization header, falling
// back to the X-API-Token header for clients that cannot set bearer auth.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-API-Token")
}
