package middleware

import (
	"encoding/json"
	"mime"
	"net/http"
)

// DefaultMaxBodyBytes is the default maximum request body size (1 MiB).
const DefaultMaxBodyBytes = 1 << 20

// MaxBytes caps request bodies; decoding past the cap fails with *http.MaxBytesError,
// which handlers answer with 413.
func MaxBytes(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireJSON rejects requests that carry a body with a non-JSON content type (415).
// Bodiless POSTs such as start and finalize pass through.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 && r.Method != http.MethodGet {
			ct := r.Header.Get("Content-Type")
			mt, _, err := mime.ParseMediaType(ct)
			if ct == "" || err != nil || mt != "application/json" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "content type must be application/json"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
