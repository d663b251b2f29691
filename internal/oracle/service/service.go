// Package service implements the guarded NAV price feed.
//
// A feed is a single-writer price channel: reporters overwrite the snapshot
// through Report, every other component only reads it. The guards (staleness
// window, bounded move, pause switch) exist to keep one bad observation from
// instantly repricing every share in the vault.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	sdkmath "cosmossdk.io/math"

	"caravel/internal/oracle/metrics"
	"caravel/internal/oracle/models"
	"caravel/internal/oracle/store"
	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/platform/audit"
	"caravel/pkg/platform/sentinel"
	txcontext "caravel/pkg/platform/tx"
	"caravel/pkg/requestcontext"
)

// CapabilityChecker gates privileged operations on the caller's capability.
type CapabilityChecker interface {
	Require(ctx context.Context, principal domain.Address, capability domain.Capability) error
}

// AuditRecorder appends to the audit trail. Recording is fail-closed: an
// error here aborts the operation that produced the event.
type AuditRecorder interface {
	Record(ctx context.Context, event audit.Event) error
}

// SnapshotMirror pushes accepted snapshots toward read-side consumers.
type SnapshotMirror interface {
	Publish(ctx context.Context, feedID domain.FeedID, snap models.Snapshot) error
}

// Service orchestrates feed lifecycle, report guarding, and reads.
type Service struct {
	feeds   store.Store
	authz   CapabilityChecker
	tx      txcontext.Runner
	audit   AuditRecorder
	mirror  SnapshotMirror
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithMirror attaches the Redis snapshot mirror. A nil mirror publishes
// nowhere.
func WithMirror(mirror SnapshotMirror) Option {
	return func(s *Service) {
		s.mirror = mirror
	}
}

// New constructs a Service. The audit recorder is required because every
// mutation must land in the trail or not happen at all.
func New(feeds store.Store, authz CapabilityChecker, tx txcontext.Runner, recorder AuditRecorder, opts ...Option) *Service {
	s := &Service{feeds: feeds, authz: authz, tx: tx, audit: recorder}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateFeed registers a new feed with its guards. Admin capability.
func (s *Service) CreateFeed(ctx context.Context, admin domain.Address, feedID domain.FeedID, cfg models.Config) (*models.Feed, error) {
	if err := s.authz.Require(ctx, admin, domain.CapabilityAdmin); err != nil {
		return nil, err
	}

	var created *models.Feed
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		feed, err := models.NewFeed(feedID, cfg, requestcontext.Now(txCtx))
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return dErrors.New(dErrors.CodeValidation, err.Error())
			}
			return err
		}
		if err := s.feeds.Create(txCtx, feed); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "feed already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create feed")
		}
		if err := s.audit.Record(txCtx, audit.Event{
			Actor:   admin,
			Action:  string(audit.EventFeedCreated),
			Subject: feedID.String(),
			Reason:  describeConfig(cfg),
		}); err != nil {
			return err
		}
		created = feed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Report overwrites the feed snapshot with a fresh observation. Reporter
// capability. The guards run under the store lock so concurrent reporters
// are checked against the same previous price they overwrite.
func (s *Service) Report(ctx context.Context, feedID domain.FeedID, reporter domain.Address, price sdkmath.Int, reportedAt time.Time) error {
	start := time.Now()
	if err := s.authz.Require(ctx, reporter, domain.CapabilityReporter); err != nil {
		return err
	}

	var accepted models.Snapshot
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		feed, err := s.feeds.Execute(txCtx, feedID,
			func(f *models.Feed) error {
				return f.CanAcceptReport(price, reportedAt, now)
			},
			func(f *models.Feed) {
				f.ApplyReport(price, reportedAt, now)
			},
		)
		if err != nil {
			return wrapFeedErr(err)
		}
		accepted = feed.Snapshot
		return s.audit.Record(txCtx, audit.Event{
			Actor:   reporter,
			Action:  string(audit.EventPriceReported),
			Subject: feedID.String(),
			Price:   price.String(),
		})
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordReportRejected(feedID.String(), string(dErrors.CodeOf(err)))
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordReportAccepted(feedID.String(), priceAsUnit(accepted.Price))
		s.metrics.ObserveReport(start)
	}
	if s.mirror != nil {
		if err := s.mirror.Publish(ctx, feedID, accepted); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "nav mirror publish failed",
				"feed", feedID,
				"error", err,
			)
		}
	}
	return nil
}

// SetConfig replaces the feed's report guards. Admin capability. Allowed
// while paused so guards can be retuned before resuming.
func (s *Service) SetConfig(ctx context.Context, feedID domain.FeedID, admin domain.Address, cfg models.Config) error {
	if err := s.authz.Require(ctx, admin, domain.CapabilityAdmin); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		_, err := s.feeds.Execute(txCtx, feedID, nil,
			func(f *models.Feed) {
				f.ApplyConfig(cfg, now)
			},
		)
		if err != nil {
			return wrapFeedErr(err)
		}
		return s.audit.Record(txCtx, audit.Event{
			Actor:   admin,
			Action:  string(audit.EventOracleConfigUpdated),
			Subject: feedID.String(),
			Reason:  describeConfig(cfg),
		})
	})
}

// Pause halts reports and poisons every pricing read until Unpause.
// Guardian capability.
func (s *Service) Pause(ctx context.Context, feedID domain.FeedID, guardian domain.Address) error {
	return s.setPaused(ctx, feedID, guardian, true)
}

// Unpause resumes the feed. Guardian capability.
func (s *Service) Unpause(ctx context.Context, feedID domain.FeedID, guardian domain.Address) error {
	return s.setPaused(ctx, feedID, guardian, false)
}

func (s *Service) setPaused(ctx context.Context, feedID domain.FeedID, guardian domain.Address, paused bool) error {
	if err := s.authz.Require(ctx, guardian, domain.CapabilityGuardian); err != nil {
		return err
	}

	action := string(audit.EventOraclePaused)
	if !paused {
		action = string(audit.EventOracleUnpaused)
	}
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		_, err := s.feeds.Execute(txCtx, feedID,
			func(f *models.Feed) error {
				if paused {
					return f.CanPause()
				}
				return f.CanUnpause()
			},
			func(f *models.Feed) {
				if paused {
					f.ApplyPause(now)
				} else {
					f.ApplyUnpause(now)
				}
			},
		)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return dErrors.New(dErrors.CodeConflict, err.Error())
			}
			return wrapFeedErr(err)
		}
		return s.audit.Record(txCtx, audit.Event{
			Actor:   guardian,
			Action:  action,
			Subject: feedID.String(),
		})
	})
}

// GetFeed returns the full feed view.
func (s *Service) GetFeed(ctx context.Context, feedID domain.FeedID) (*models.Feed, error) {
	feed, err := s.feeds.Find(ctx, feedID)
	if err != nil {
		return nil, wrapFeedErr(err)
	}
	return feed, nil
}

// GetPrice returns the last accepted price and its reported timestamp.
// A zero price means the feed has never been primed.
func (s *Service) GetPrice(ctx context.Context, feedID domain.FeedID) (sdkmath.Int, time.Time, error) {
	feed, err := s.feeds.Find(ctx, feedID)
	if err != nil {
		return sdkmath.Int{}, time.Time{}, wrapFeedErr(err)
	}
	return feed.Snapshot.Price, feed.Snapshot.UpdatedAt, nil
}

// IsValid reports whether the feed currently accepts pricing, which is
// exactly "not paused". Staleness is the reader's concern because each
// consumer carries its own tolerance.
func (s *Service) IsValid(ctx context.Context, feedID domain.FeedID) (bool, error) {
	feed, err := s.feeds.Find(ctx, feedID)
	if err != nil {
		return false, wrapFeedErr(err)
	}
	return !feed.Paused, nil
}

// MaxStaleness returns the feed's staleness window, the upper bound any
// consumer may use for its own price-age tolerance.
func (s *Service) MaxStaleness(ctx context.Context, feedID domain.FeedID) (time.Duration, error) {
	feed, err := s.feeds.Find(ctx, feedID)
	if err != nil {
		return 0, wrapFeedErr(err)
	}
	return feed.Config.MaxStaleness, nil
}

func wrapFeedErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "feed not found")
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "feed store failure")
}

func describeConfig(cfg models.Config) string {
	return fmt.Sprintf("max_staleness=%s max_move_bps=%d", cfg.MaxStaleness, cfg.MaxMoveBps)
}

// priceAsUnit converts a 1e18-scaled price to a float for the gauge.
func priceAsUnit(price sdkmath.Int) float64 {
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(price.BigInt()),
		big.NewFloat(1e18),
	).Float64()
	return f
}
