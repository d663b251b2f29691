package oracle

import (
	"log/slog"

	"caravel/internal/oracle/handler"
	"caravel/internal/oracle/metrics"
	"caravel/internal/oracle/service"
	"caravel/internal/oracle/store"
	"caravel/pkg/domain"
	txcontext "caravel/pkg/platform/tx"
)

// Service exposes the guarded NAV price feed.
type Service = service.Service

// Store persists feeds.
type Store = store.Store

// Handler wires HTTP endpoints to the feed service.
type Handler = handler.Handler

// Option configures optional service collaborators.
type Option = service.Option

func WithLogger(logger *slog.Logger) Option { return service.WithLogger(logger) }

func WithMetrics(m *metrics.Metrics) Option { return service.WithMetrics(m) }

// WithMirror attaches the Redis snapshot mirror. A nil mirror publishes
// nowhere.
func WithMirror(mirror service.SnapshotMirror) Option { return service.WithMirror(mirror) }

// NewService constructs the feed service with required dependencies.
func NewService(feeds Store, authz service.CapabilityChecker, tx txcontext.Runner, recorder service.AuditRecorder, opts ...Option) *Service {
	return service.New(feeds, authz, tx, recorder, opts...)
}

// NewHandler constructs an HTTP handler for the NAV endpoints. Requests
// that do not name a feed are served by defaultFeed.
func NewHandler(s *Service, defaultFeed domain.FeedID, logger *slog.Logger) *Handler {
	return handler.New(s, defaultFeed, logger)
}
