package middleware

import (
	"net/http"
	"strings"
)

// CORS answers preflight requests and sets the allow headers for origin, which is "*"
// or a comma-separated list of exact origins.
func CORS(origin string, allowHeaders ...string) func(http.Handler) http.Handler {
	headers := strings.Join(append([]string{"Authorization", "Content-Type", RequestIDHeader}, allowHeaders...), ", ")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowed := AllowedOrigin(origin, r.Header.Get("Origin")); allowed != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowed)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				if allowed != "*" {
					w.Header().Add("Vary", "Origin")
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AllowedOrigin returns the value for Access-Control-Allow-Origin, or "" when requestOrigin
// is not permitted.
func AllowedOrigin(configured, requestOrigin string) string {
	configured = strings.TrimSpace(configured)
	if configured == "" || configured == "*" {
		return "*"
	}
	for _, o := range strings.Split(configured, ",") {
		if o = strings.TrimSpace(o); o != "" && strings.EqualFold(o, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
