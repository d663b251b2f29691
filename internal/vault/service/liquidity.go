package service

import (
	"context"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"caravel/internal/vault/models"
	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/platform/audit"
	"caravel/pkg/requestcontext"
)

// MoveAssets sends part of the vault buffer to the configured liquidity
// recipient for deployment. Operator capability. The move is refused when it
// would dip into the portion of the buffer already owed to accrued exit
// fees.
func (s *Service) MoveAssets(ctx context.Context, operator domain.Address, amount sdkmath.Int) error {
	start := time.Now()
	if err := s.authz.Require(ctx, operator, domain.CapabilityOperator); err != nil {
		s.recordRejected(opMoveAssets, err)
		return err
	}
	if err := requirePositive(amount, "move amount"); err != nil {
		s.recordRejected(opMoveAssets, err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		state, err := s.stateForFlow(txCtx)
		if err != nil {
			return err
		}
		buffer, err := s.ledger.BalanceOf(txCtx, s.assetDenom, models.ModuleAddress)
		if err != nil {
			return err
		}
		if buffer.Sub(amount).LT(state.AccruedFees) {
			return dErrors.New(dErrors.CodeInsufficientLiquidity, "move would dip into accrued exit fees")
		}

		if err := s.ledger.Transfer(txCtx, s.assetDenom, models.ModuleAddress, state.Config.LiquidityRecipient, amount); err != nil {
			return err
		}
		return s.audit.Record(txCtx, audit.Event{
			Actor:   operator,
			Action:  string(audit.EventLiquidityMoved),
			Subject: state.Config.LiquidityRecipient.String(),
			Denom:   s.assetDenom.String(),
			Amount:  amount.String(),
		})
	})
	if err != nil {
		s.recordRejected(opMoveAssets, err)
		return err
	}
	s.recordFlow(opMoveAssets, start)
	return nil
}

// FundLiquidity tops the vault buffer up from the caller's balance. Open to
// anyone, and deliberately not pause-gated: staging liquidity during an
// incident is how queued claims get funded before the vault resumes.
func (s *Service) FundLiquidity(ctx context.Context, caller domain.Address, amount sdkmath.Int) error {
	start := time.Now()
	if err := requireCaller(caller); err != nil {
		s.recordRejected(opFund, err)
		return err
	}
	if err := requirePositive(amount, "funding amount"); err != nil {
		s.recordRejected(opFund, err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.ledger.Transfer(txCtx, s.assetDenom, caller, models.ModuleAddress, amount); err != nil {
			return err
		}
		return s.audit.Record(txCtx, audit.Event{
			Actor:  caller,
			Action: string(audit.EventLiquidityFunded),
			Denom:  s.assetDenom.String(),
			Amount: amount.String(),
		})
	})
	if err != nil {
		s.recordRejected(opFund, err)
		return err
	}
	s.recordFlow(opFund, start)
	return nil
}

// SweepExitFees pays accrued exit fees out to the given recipient. Admin
// capability. The sweep is bounded by the actual buffer: a short vault pays
// what it can and keeps the remainder accrued, so nothing owed is ever
// forgotten.
func (s *Service) SweepExitFees(ctx context.Context, admin, to domain.Address) (sdkmath.Int, error) {
	start := time.Now()
	if err := s.authz.Require(ctx, admin, domain.CapabilityAdmin); err != nil {
		s.recordRejected(opSweep, err)
		return sdkmath.Int{}, err
	}
	if err := requireAddress(to, "recipient"); err != nil {
		s.recordRejected(opSweep, err)
		return sdkmath.Int{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var paid sdkmath.Int
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		state, err := s.stateForFlow(txCtx)
		if err != nil {
			return err
		}
		if state.AccruedFees.IsZero() {
			return dErrors.New(dErrors.CodeZeroAmount, "no exit fees accrued")
		}
		buffer, err := s.ledger.BalanceOf(txCtx, s.assetDenom, models.ModuleAddress)
		if err != nil {
			return err
		}
		paid = sdkmath.MinInt(state.AccruedFees, buffer)
		if paid.IsZero() {
			return dErrors.New(dErrors.CodeInsufficientLiquidity, "vault buffer cannot fund the sweep")
		}

		if err := s.ledger.Transfer(txCtx, s.assetDenom, models.ModuleAddress, to, paid); err != nil {
			return err
		}
		state.ApplyFeeSweep(paid, requestcontext.Now(txCtx))
		if err := s.store.SaveState(txCtx, state); err != nil {
			return wrapStateErr(err)
		}
		return s.audit.Record(txCtx, audit.Event{
			Actor:   admin,
			Action:  string(audit.EventExitFeesSwept),
			Subject: to.String(),
			Denom:   s.assetDenom.String(),
			Amount:  paid.String(),
			Reason:  fmt.Sprintf("accrued_remaining=%s", state.AccruedFees),
		})
	})
	if err != nil {
		s.recordRejected(opSweep, err)
		return sdkmath.Int{}, err
	}
	s.recordFlow(opSweep, start)
	return paid, nil
}
