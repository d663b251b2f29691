package models

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
)

// ModuleAddress is the vault's own account on the ledger. It holds the
// asset buffer and escrowed queue shares, and is the supply authority for
// the share denom.
var ModuleAddress = domain.MustAddress("0x0000000000000000000000000000000000000ace")

// FeedChangeDelay is the fixed timelock between queueing a feed change and
// being allowed to execute it.
const FeedChangeDelay = 24 * time.Hour

// FlowStats counts cumulative flow volume in asset units. Monotone,
// observability only; it never feeds pricing.
type FlowStats struct {
	GrossDeposits    sdkmath.Int
	GrossWithdrawals sdkmath.Int
}

// PendingFeedChange is a queued oracle swap. The zero value means nothing
// is queued.
type PendingFeedChange struct {
	Feed     domain.FeedID
	QueuedAt time.Time
}

// IsZero reports whether nothing is queued.
func (p PendingFeedChange) IsZero() bool {
	return p.Feed == "" && p.QueuedAt.IsZero()
}

// State is the vault's singleton mutable state. Withdrawal requests live in
// their own table; everything else the vault tracks is here.
//
// Invariants:
//   - Config is always valid per Config.Validate.
//   - AccruedFees, GrossDeposits, GrossWithdrawals are non-negative and,
//     except for fee sweeps, monotone.
//   - ActiveFeed only changes through the timelocked feed-change protocol.
type State struct {
	Config     Config
	ActiveFeed domain.FeedID
	Paused     bool

	// AccruedFees is the portion of the vault's asset balance owed to the
	// fee recipient, reserved against MoveAssets.
	AccruedFees sdkmath.Int
	Flows       FlowStats
	Pending     PendingFeedChange

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewState builds the initial vault state.
func NewState(cfg Config, activeFeed domain.FeedID, now time.Time) (*State, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !activeFeed.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "active feed id is invalid")
	}
	return &State{
		Config:      cfg,
		ActiveFeed:  activeFeed,
		AccruedFees: sdkmath.ZeroInt(),
		Flows: FlowStats{
			GrossDeposits:    sdkmath.ZeroInt(),
			GrossWithdrawals: sdkmath.ZeroInt(),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanFlow gates every balance-changing operation.
func (s *State) CanFlow() error {
	if s.Paused {
		return dErrors.New(dErrors.CodePaused, "vault is paused")
	}
	return nil
}

// CanPause validates a pause transition.
func (s *State) CanPause() error {
	if s.Paused {
		return dErrors.New(dErrors.CodeInvariantViolation, "vault is already paused")
	}
	return nil
}

// ApplyPause records the transition.
func (s *State) ApplyPause(now time.Time) {
	s.Paused = true
	s.UpdatedAt = now
}

// CanUnpause validates an unpause transition.
func (s *State) CanUnpause() error {
	if !s.Paused {
		return dErrors.New(dErrors.CodeInvariantViolation, "vault is not paused")
	}
	return nil
}

// ApplyUnpause records the transition.
func (s *State) ApplyUnpause(now time.Time) {
	s.Paused = false
	s.UpdatedAt = now
}

// ApplyConfig replaces the config. Callers validate the replacement first.
func (s *State) ApplyConfig(cfg Config, now time.Time) {
	s.Config = cfg
	s.UpdatedAt = now
}

// ApplyDeposit bumps the deposit counter.
func (s *State) ApplyDeposit(assets sdkmath.Int, now time.Time) {
	s.Flows.GrossDeposits = s.Flows.GrossDeposits.Add(assets)
	s.UpdatedAt = now
}

// ApplyWithdrawal bumps the withdrawal counter by the gross amount and
// accrues the fee portion.
func (s *State) ApplyWithdrawal(gross, fee sdkmath.Int, now time.Time) {
	s.Flows.GrossWithdrawals = s.Flows.GrossWithdrawals.Add(gross)
	s.AccruedFees = s.AccruedFees.Add(fee)
	s.UpdatedAt = now
}

// ApplyFeeSweep reduces the accrual by the amount actually paid out.
func (s *State) ApplyFeeSweep(paid sdkmath.Int, now time.Time) {
	s.AccruedFees = s.AccruedFees.Sub(paid)
	s.UpdatedAt = now
}

// ApplyQueueFeedChange records a pending swap, restarting the clock when one
// was already queued.
func (s *State) ApplyQueueFeedChange(feed domain.FeedID, now time.Time) {
	s.Pending = PendingFeedChange{Feed: feed, QueuedAt: now}
	s.UpdatedAt = now
}

// CanExecuteFeedChange validates the two-phase swap.
func (s *State) CanExecuteFeedChange(now time.Time) error {
	if s.Pending.IsZero() {
		return dErrors.New(dErrors.CodeNothingQueued, "no feed change queued")
	}
	if now.Before(s.Pending.QueuedAt.Add(FeedChangeDelay)) {
		return dErrors.New(dErrors.CodeTimelockActive, "feed change timelock has not elapsed")
	}
	return nil
}

// ApplyExecuteFeedChange swaps the active feed and clears the pending entry.
func (s *State) ApplyExecuteFeedChange(now time.Time) {
	s.ActiveFeed = s.Pending.Feed
	s.Pending = PendingFeedChange{}
	s.UpdatedAt = now
}

// Clone returns an independent copy. Int fields are immutable, so a shallow
// copy is safe.
func (s *State) Clone() *State {
	clone := *s
	return &clone
}
