package vault

import (
	"log/slog"

	"caravel/internal/vault/handler"
	"caravel/internal/vault/metrics"
	"caravel/internal/vault/service"
	"caravel/internal/vault/store"
)

// Service exposes the share ledger and its liquidity operations.
type Service = service.Service

// Store persists vault state and withdrawal requests.
type Store = store.Store

// Handler wires HTTP endpoints to the vault service.
type Handler = handler.Handler

// Deps bundles the collaborators the vault service needs.
type Deps = service.Deps

// FlowResult reports the settled legs of a vault flow.
type FlowResult = service.FlowResult

// Option configures optional service collaborators.
type Option = service.Option

func WithLogger(logger *slog.Logger) Option { return service.WithLogger(logger) }

func WithMetrics(m *metrics.Metrics) Option { return service.WithMetrics(m) }

// NewService constructs the vault service with required dependencies.
func NewService(deps Deps, opts ...Option) *Service {
	return service.New(deps, opts...)
}

// NewHandler constructs an HTTP handler for the vault endpoints.
func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
