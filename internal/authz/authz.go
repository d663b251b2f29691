package authz

import (
	"log/slog"

	"caravel/internal/authz/handler"
	"caravel/internal/authz/service"
	"caravel/internal/authz/store"
	txcontext "caravel/pkg/platform/tx"
)

// Service answers capability checks and manages grants.
type Service = service.Service

// Store persists grants.
type Store = store.Store

// Seeds maps bootstrap principals to their starting capabilities.
type Seeds = service.Seeds

// Handler wires HTTP endpoints to the capability service.
type Handler = handler.Handler

// NewService constructs the capability service.
func NewService(capabilities Store, tx txcontext.Runner, recorder service.AuditRecorder) *Service {
	return service.New(capabilities, tx, recorder)
}

// NewHandler constructs an HTTP handler for the authz endpoints.
func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
