package testutil

import (
	"net/http"
	"time"

	"caravel/pkg/domain"
	"caravel/pkg/requestcontext"
)

// WithPrincipal adds an authenticated caller address to the request context.
// This simulates what the auth middleware does for requests carrying a valid
// bearer token. Invalid addresses are silently ignored.
func WithPrincipal(req *http.Request, address string) *http.Request {
	addr, err := domain.ParseAddress(address)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), addr))
}

// WithRequestTime pins the request clock, so staleness windows, epoch
// boundaries, and timelock checks see a fixed now.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithRequestID stamps a request ID for log/audit correlation assertions.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
