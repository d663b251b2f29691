// Package audit provides the append-only event log every mutation feeds.
//
// The Recorder emits events with synchronous, fail-closed semantics:
// the caller blocks until the write succeeds, and if it fails the calling
// operation MUST fail. Run inside the operation's transaction so the event
// and the state change commit together - this is what makes the ledger
// history reconstructable from the log alone.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"caravel/pkg/requestcontext"
)

// Store persists audit events. Implementations: in-memory ring (tests,
// development) and the PostgreSQL outbox.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Recorder emits audit events with fail-closed semantics.
// All writes are synchronous - the caller blocks until persistence succeeds or fails.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithLogger sets a logger that additionally mirrors each event to the
// structured log for operator visibility.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// NewRecorder creates a fail-closed recorder over the given store.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record synchronously writes an audit event.
// Returns error if persistence fails - the caller MUST fail its operation.
//
// Category is always derived from Action; Timestamp, RequestID, and ClientIP
// are filled from context when the emitter left them empty.
func (r *Recorder) Record(ctx context.Context, event Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit event requires Action")
	}
	event.Category = AuditEvent(event.Action).Category()
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}

	if err := r.store.Append(ctx, event); err != nil {
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "CRITICAL: audit append failed",
				"action", event.Action,
				"actor", event.Actor,
				"error", err,
			)
		}
		return fmt.Errorf("audit persistence failed: %w", err)
	}

	if r.logger != nil {
		r.logger.InfoContext(ctx, event.Action,
			"log_type", "audit",
			"category", event.Category,
			"actor", event.Actor,
			"subject", event.Subject,
			"request_id", event.RequestID,
		)
	}
	return nil
}
