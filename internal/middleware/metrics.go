package middleware

import (
	"net/http"
	"time"

	"github.com/skillswap/backend/internal/metrics"
)

// Metrics records request counts and latency labelled by the matched route
// pattern. It must sit between RequestLogger and the ServeMux so the pattern
// set by the mux is visible after the call.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := wrap(w)
		next.ServeHTTP(wrapped, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTP(route, r.Method, wrapped.Status(), time.Since(start))
	})
}
