package api

import (
	"crypto/subtle"
	"net/http"
)

const apiKeyHeader = "X-API-Key"

// APIKeyAuth rejects requests whose X-API-Key header does not match the
// server key. The comparison is constant-time.
func APIKeyAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			supplied := r.Header.Get(apiKeyHeader)
			if supplied == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) != 1 {
				problem(w, http.StatusUnauthorized, "Unauthorized", "API key is missing or invalid")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
