package middleware

import (
	"net/http"
	"strconv"
	"time"

	"caravel/internal/platform/metrics"
)

// LatencyMiddleware records request durations and counts into the HTTP
// metrics. Nil metrics disables recording (tests).
func LatencyMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			m.ObserveRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status), start)
		})
	}
}
