// Package httptransport assembles the caravel HTTP surface: the shared
// middleware chain, the per-context handlers, and the operational endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"caravel/internal/auth"
	authzhandler "caravel/internal/authz/handler"
	oraclehandler "caravel/internal/oracle/handler"
	"caravel/internal/platform/metrics"
	"caravel/internal/platform/middleware"
	vaulthandler "caravel/internal/vault/handler"
	"caravel/pkg/platform/httputil"
)

// Handlers bundles the per-context handlers the router mounts.
type Handlers struct {
	Oracle *oraclehandler.Handler
	Vault  *vaulthandler.Handler
	Authz  *authzhandler.Handler
	Auth   *auth.Handler
}

// Deps carries the cross-cutting collaborators for the middleware chain.
type Deps struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Validator middleware.JWTValidator
	Timeout   time.Duration
}

// NewRouter wires the middleware chain and mounts every handler. Public reads
// pass through the token check anonymously; privileged handlers reject
// requests without a principal themselves, so one chain serves both.
func NewRouter(h Handlers, deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.LatencyMiddleware(deps.Metrics))
	if deps.Timeout > 0 {
		r.Use(middleware.Timeout(deps.Timeout))
	}

	r.Get("/healthz", handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.Authenticate(deps.Validator, deps.Logger))

		h.Oracle.Register(r)
		h.Vault.Register(r)
		h.Authz.Register(r)
		if h.Auth != nil {
			h.Auth.Register(r)
		}
	})

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
