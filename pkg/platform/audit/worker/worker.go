// Package worker relays audit events from the PostgreSQL outbox to Kafka.
// Publishing is at-least-once: an entry is marked published only after the
// broker acknowledges it, so consumers must tolerate duplicates (events carry
// a stable ID for dedup).
package worker

import (
	"context"
	"log/slog"
	"time"

	"caravel/pkg/platform/audit/store/postgres"
	txcontext "caravel/pkg/platform/tx"
)

// Producer delivers a payload to the audit topic.
type Producer interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// Outbox polls the outbox table and publishes pending entries.
type Outbox struct {
	store    *postgres.Store
	producer Producer
	runner   txcontext.Runner
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

// Option configures the Outbox worker.
type Option func(*Outbox)

// WithInterval overrides the poll interval (default 1s).
func WithInterval(d time.Duration) Option {
	return func(o *Outbox) {
		o.interval = d
	}
}

// WithBatchSize overrides the per-poll batch size (default 100).
func WithBatchSize(n int) Option {
	return func(o *Outbox) {
		o.batch = n
	}
}

func NewOutbox(store *postgres.Store, producer Producer, runner txcontext.Runner, logger *slog.Logger, opts ...Option) *Outbox {
	o := &Outbox{
		store:    store,
		producer: producer,
		runner:   runner,
		logger:   logger,
		interval: time.Second,
		batch:    100,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run polls until the context is cancelled. Individual poll failures are
// logged and retried on the next tick rather than stopping the relay.
func (o *Outbox) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := o.drain(ctx); err != nil {
				o.logger.ErrorContext(ctx, "outbox poll failed", "error", err)
			}
		}
	}
}

// drain publishes one batch inside a transaction so the row locks from
// FOR UPDATE SKIP LOCKED hold until the marks commit.
func (o *Outbox) drain(ctx context.Context) error {
	return o.runner.RunInTx(ctx, func(txCtx context.Context) error {
		entries, err := o.store.FetchUnpublished(txCtx, o.batch)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := o.publish(txCtx, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

func (o *Outbox) publish(ctx context.Context, entry postgres.OutboxEntry) error {
	if err := o.producer.Publish(ctx, entry.ID.String(), entry.Payload); err != nil {
		return err
	}
	return o.store.MarkPublished(ctx, entry.ID)
}

// DrainOnce publishes a single batch immediately. Used on shutdown to flush
// pending entries without waiting for the next tick.
func (o *Outbox) DrainOnce(ctx context.Context) error {
	return o.drain(ctx)
}
