package middleware

import (
	"net/http"
	"time"

	"caravel/pkg/requestcontext"
)

// RequestTime captures the current time at the start of the request and
// stores it in the context. All staleness, epoch, and timelock checks within
// a single request then observe the same instant.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
