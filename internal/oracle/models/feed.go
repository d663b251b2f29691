package models

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
)

// Snapshot is the last accepted NAV observation of a feed. Price is scaled
// to 1e18 regardless of the underlying asset's precision; a zero price
// means the feed has never been primed.
type Snapshot struct {
	Price     sdkmath.Int `json:"price"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// IsZero reports whether the feed has never accepted a report.
func (s Snapshot) IsZero() bool {
	return s.Price.IsNil() || s.Price.IsZero()
}

// Config holds the per-feed report guards.
type Config struct {
	// MaxStaleness bounds how old a reported observation may be. Always
	// positive; reports timestamped before now-MaxStaleness are rejected.
	MaxStaleness time.Duration `json:"max_staleness"`
	// MaxMoveBps bounds the relative move between consecutive accepted
	// prices, in basis points. Zero disables the guard entirely.
	MaxMoveBps uint32 `json:"max_move_bps"`
}

func (c Config) Validate() error {
	if c.MaxStaleness <= 0 {
		return dErrors.New(dErrors.CodeInvalidConfig, "max staleness must be positive")
	}
	return nil
}

// Feed is the aggregate root for one NAV price feed.
//
// Invariants:
//   - Config.MaxStaleness is always positive
//   - Snapshot.Price is zero only before the first accepted report
//   - A paused feed accepts no reports and prices no conversions
//   - Snapshot overwrites are guarded: an observation older than the
//     staleness window is rejected, and when MaxMoveBps > 0 a price whose
//     relative move from the previous accepted price strictly exceeds the
//     bound is rejected. The first report is exempt from the move guard
//     because there is no previous price to move from.
//
// Reported timestamps are not required to be monotonic: a reporter may
// re-report inside the staleness window to correct an earlier observation,
// so an accepted UpdatedAt can step backwards.
type Feed struct {
	ID        domain.FeedID `json:"id"`
	Config    Config        `json:"config"`
	Snapshot  Snapshot      `json:"snapshot"`
	Paused    bool          `json:"paused"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func NewFeed(feedID domain.FeedID, cfg Config, now time.Time) (*Feed, error) {
	if !feedID.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "feed id is invalid")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Feed{
		ID:        feedID,
		Config:    cfg,
		Snapshot:  Snapshot{Price: sdkmath.ZeroInt()},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanAcceptReport checks every report guard against the candidate
// observation. Use with ApplyReport in Execute callbacks.
func (f *Feed) CanAcceptReport(price sdkmath.Int, reportedAt, now time.Time) error {
	if f.Paused {
		return dErrors.New(dErrors.CodePaused, "feed is paused")
	}
	if price.IsNil() || !price.IsPositive() {
		return dErrors.New(dErrors.CodeZeroValue, "price must be positive")
	}
	if reportedAt.IsZero() {
		return dErrors.New(dErrors.CodeZeroValue, "report timestamp is required")
	}
	if reportedAt.Before(now.Add(-f.Config.MaxStaleness)) {
		return dErrors.New(dErrors.CodeStaleTimestamp, "report is older than the staleness window")
	}
	if err := f.checkMoveGuard(price); err != nil {
		return err
	}
	return nil
}

// ApplyReport overwrites the snapshot. Call CanAcceptReport first.
func (f *Feed) ApplyReport(price sdkmath.Int, reportedAt, now time.Time) {
	f.Snapshot = Snapshot{Price: price, UpdatedAt: reportedAt}
	f.UpdatedAt = now
}

// checkMoveGuard rejects a price whose move from the previous accepted
// price strictly exceeds MaxMoveBps. Comparing |new-prev|*10000 against
// prev*bps keeps the check in integers; equality at the boundary passes.
func (f *Feed) checkMoveGuard(price sdkmath.Int) error {
	if f.Config.MaxMoveBps == 0 || f.Snapshot.IsZero() {
		return nil
	}
	prev := f.Snapshot.Price
	diff := price.Sub(prev).Abs()
	if diff.MulRaw(10000).GT(prev.MulRaw(int64(f.Config.MaxMoveBps))) {
		return dErrors.New(dErrors.CodeTooLargeMove, "price move exceeds the configured bound")
	}
	return nil
}

// CanPause checks the feed is not already paused.
func (f *Feed) CanPause() error {
	if f.Paused {
		return dErrors.New(dErrors.CodeInvariantViolation, "feed is already paused")
	}
	return nil
}

// ApplyPause halts reports and pricing. Call CanPause first.
func (f *Feed) ApplyPause(now time.Time) {
	f.Paused = true
	f.UpdatedAt = now
}

// CanUnpause checks the feed is currently paused.
func (f *Feed) CanUnpause() error {
	if !f.Paused {
		return dErrors.New(dErrors.CodeInvariantViolation, "feed is not paused")
	}
	return nil
}

// ApplyUnpause resumes reports and pricing. Call CanUnpause first.
func (f *Feed) ApplyUnpause(now time.Time) {
	f.Paused = false
	f.UpdatedAt = now
}

// ApplyConfig replaces the report guards. Validate cfg first.
func (f *Feed) ApplyConfig(cfg Config, now time.Time) {
	f.Config = cfg
	f.UpdatedAt = now
}

// Clone returns a copy safe to hand outside the store lock. Int fields are
// immutable, so a shallow copy suffices.
func (f *Feed) Clone() *Feed {
	copied := *f
	return &copied
}
