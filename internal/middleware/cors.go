package middleware

import (
	"net/http"
	"strings"
)

// CORSAllowedMethods are the methods the audit API answers.
var CORSAllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}

// CORSAllowedHeaders are the request headers scanner UIs send.
var CORSAllowedHeaders = []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"}

// CORS sets CORS headers for allowed origins and answers preflight requests with 204.
// With no origins configured it is a no-op, so the API stays same-origin only.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	allowAny := false
	originSet := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAny = true
		}
		originSet[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAny || originSet[origin]) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Methods", strings.Join(CORSAllowedMethods, ", "))
				h.Set("Access-Control-Allow-Headers", strings.Join(CORSAllowedHeaders, ", "))
				h.Set("Access-Control-Expose-Headers", "X-Request-Id, Retry-After")
				h.Set("Access-Control-Max-Age", "86400")
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
