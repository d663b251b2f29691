// Package service implements the NAV vault: a share ledger that prices
// every flow off the oracle's revalidated snapshot, applies ceiling-rounded
// exit fees, and settles delayed withdrawals through an epoch-batched queue.
//
// Every mutation is serialized behind one vault mutex and wrapped in a
// transaction together with its audit events, so no two flows ever
// interleave and no flow commits without its trail.
//
// Known caveat: the MoveAssets guard reserves only accrued fees, not shares
// already queued for withdrawal. A liquidity move can leave queued claims
// unfunded until FundLiquidity tops the buffer back up; claims fail
// all-or-nothing and can be retried, so no request is ever lost to the gap.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"caravel/internal/pricing"
	"caravel/internal/referral"
	"caravel/internal/vault/metrics"
	"caravel/internal/vault/models"
	"caravel/internal/vault/store"
	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/platform/audit"
	"caravel/pkg/platform/sentinel"
	txcontext "caravel/pkg/platform/tx"
)

// Ledger is the slice of the bank the vault drives: share supply under the
// vault's authority, asset custody at its module address, and delegated
// burns for withdraw-on-behalf.
type Ledger interface {
	BalanceOf(ctx context.Context, denom domain.Denom, addr domain.Address) (sdkmath.Int, error)
	TotalSupply(ctx context.Context, denom domain.Denom) (sdkmath.Int, error)
	Transfer(ctx context.Context, denom domain.Denom, from, to domain.Address, amount sdkmath.Int) error
	Mint(ctx context.Context, denom domain.Denom, minter, addr domain.Address, amount sdkmath.Int) error
	Burn(ctx context.Context, denom domain.Denom, minter, addr domain.Address, amount sdkmath.Int) error
	SpendAllowance(ctx context.Context, denom domain.Denom, owner, spender domain.Address, amount sdkmath.Int) error
}

// Pricer revalidates the oracle and converts between asset and share units.
type Pricer interface {
	Quote(ctx context.Context, feedID domain.FeedID, maxAge time.Duration) (pricing.Quote, error)
	TotalAssets(ctx context.Context, feedID domain.FeedID, maxAge time.Duration) (sdkmath.Int, error)
}

// NAVReader exposes the oracle facts the vault's own guards need.
type NAVReader interface {
	MaxStaleness(ctx context.Context, feedID domain.FeedID) (time.Duration, error)
}

// ReferralBinder applies the write-once referral rules inside checked
// deposits.
type ReferralBinder interface {
	Bind(ctx context.Context, caller, receiver, referrer domain.Address) (referral.Attribution, error)
}

// CapabilityChecker gates privileged operations on the caller's capability.
type CapabilityChecker interface {
	Require(ctx context.Context, principal domain.Address, capability domain.Capability) error
}

// AuditRecorder appends to the audit trail. Recording is fail-closed: an
// error here aborts the operation that produced the event.
type AuditRecorder interface {
	Record(ctx context.Context, event audit.Event) error
}

// Metric labels for the flow instruments.
const (
	opDeposit    = "deposit"
	opMint       = "mint"
	opWithdraw   = "withdraw"
	opRedeem     = "redeem"
	opQueue      = "queue"
	opClaim      = "claim"
	opCancel     = "cancel"
	opMoveAssets = "move_assets"
	opFund       = "fund"
	opSweep      = "sweep"
)

// FlowResult reports the settled legs of a completed flow.
type FlowResult struct {
	// Assets is the asset leg: pulled from the caller on deposits, paid to
	// the receiver (net of fee) on withdrawals.
	Assets sdkmath.Int
	// Shares is the share leg: minted on deposits, burned on withdrawals.
	Shares sdkmath.Int
	// Fee is the exit fee accrued; zero on deposits.
	Fee sdkmath.Int
	// Price is the 1e18-scaled NAV the flow settled at.
	Price sdkmath.Int
}

// Service orchestrates vault flows, the withdrawal queue, and governance.
type Service struct {
	// mu serializes every mutation: the blanket non-reentrancy discipline.
	// Store row locks add the cross-process guarantee; this mutex is the
	// in-process one.
	mu sync.Mutex

	store      store.Store
	ledger     Ledger
	pricer     Pricer
	nav        NAVReader
	referrals  ReferralBinder
	authz      CapabilityChecker
	tx         txcontext.Runner
	audit      AuditRecorder
	metrics    *metrics.Metrics
	logger     *slog.Logger
	assetDenom domain.Denom
	shareDenom domain.Denom
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

// Deps bundles the vault's required collaborators.
type Deps struct {
	Store      store.Store
	Ledger     Ledger
	Pricer     Pricer
	NAV        NAVReader
	Referrals  ReferralBinder
	Authz      CapabilityChecker
	Tx         txcontext.Runner
	Audit      AuditRecorder
	AssetDenom domain.Denom
	ShareDenom domain.Denom
}

// New constructs a Service. All Deps fields are required; the audit
// recorder in particular, because every mutation must land in the trail or
// not happen at all.
func New(deps Deps, opts ...Option) *Service {
	s := &Service{
		store:      deps.Store,
		ledger:     deps.Ledger,
		pricer:     deps.Pricer,
		nav:        deps.NAV,
		referrals:  deps.Referrals,
		authz:      deps.Authz,
		tx:         deps.Tx,
		audit:      deps.Audit,
		assetDenom: deps.AssetDenom,
		shareDenom: deps.ShareDenom,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init seeds the vault state when absent. Call once at startup, before
// serving.
func (s *Service) Init(ctx context.Context, cfg models.Config, activeFeed domain.FeedID, now time.Time) error {
	initial, err := models.NewState(cfg, activeFeed, now)
	if err != nil {
		return err
	}
	if err := s.store.EnsureState(ctx, initial); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed vault state")
	}
	return nil
}

// stateForFlow loads the locked state and applies the pause gate.
func (s *Service) stateForFlow(ctx context.Context) (*models.State, error) {
	state, err := s.store.StateForUpdate(ctx)
	if err != nil {
		return nil, wrapStateErr(err)
	}
	if err := state.CanFlow(); err != nil {
		return nil, err
	}
	return state, nil
}

// stateLocked loads the locked state without the pause gate, for governance
// operations that stay legal while paused.
func (s *Service) stateLocked(ctx context.Context) (*models.State, error) {
	state, err := s.store.StateForUpdate(ctx)
	if err != nil {
		return nil, wrapStateErr(err)
	}
	return state, nil
}

func wrapStateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeInternal, "vault state not initialized")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "vault state unavailable")
}

func (s *Service) recordFlow(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordFlow(op, start)
	}
}

func (s *Service) recordRejected(op string, err error) {
	if s.metrics != nil {
		s.metrics.RecordFlowRejected(op, string(dErrors.CodeOf(err)))
	}
}

func (s *Service) addFeeMetric(fee sdkmath.Int) {
	if s.metrics != nil && !fee.IsNil() && fee.IsPositive() {
		s.metrics.AddExitFees(amountAsFloat(fee))
	}
}

func requirePositive(amount sdkmath.Int, what string) error {
	if amount.IsNil() || !amount.IsPositive() {
		return dErrors.New(dErrors.CodeZeroAmount, what+" must be positive")
	}
	return nil
}

func requireAddress(addr domain.Address, what string) error {
	if !addr.IsValid() || addr.IsZero() {
		return dErrors.New(dErrors.CodeZeroAddress, what+" must be a non-zero address")
	}
	return nil
}

func requireCaller(caller domain.Address) error {
	if caller == "" || caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return nil
}

func amountAsFloat(amount sdkmath.Int) float64 {
	f, _ := new(big.Float).SetInt(amount.BigInt()).Float64()
	return f
}
