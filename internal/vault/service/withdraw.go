package service

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"

	"caravel/internal/pricing"
	"caravel/internal/vault/models"
	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/platform/audit"
	"caravel/pkg/requestcontext"
)

// Withdraw pays the receiver exactly assets and burns the shares covering
// that payout plus the exit fee. The fee is charged on top of the requested
// amount (fee-on-net), so the receiver's leg is exact and the burn absorbs
// the rounding. A caller other than the owner spends share allowance for the
// burn.
func (s *Service) Withdraw(ctx context.Context, caller, owner, receiver domain.Address, assets sdkmath.Int) (*FlowResult, error) {
	return s.runWithdraw(ctx, caller, owner, receiver, assets, sdkmath.Int{})
}

// WithdrawWithCheck is Withdraw with a slippage bound: the flow fails with
// CodeSlippage when the burn would exceed maxShares.
func (s *Service) WithdrawWithCheck(ctx context.Context, caller, owner, receiver domain.Address, assets, maxShares sdkmath.Int) (*FlowResult, error) {
	return s.runWithdraw(ctx, caller, owner, receiver, assets, maxShares)
}

// Redeem burns exactly shares and pays the receiver their asset value minus
// the exit fee (fee-on-gross). The burn is exact and the payout absorbs the
// rounding, the mirror image of Withdraw.
func (s *Service) Redeem(ctx context.Context, caller, owner, receiver domain.Address, shares sdkmath.Int) (*FlowResult, error) {
	return s.runRedeem(ctx, caller, owner, receiver, shares, sdkmath.Int{})
}

// RedeemWithCheck is Redeem with a slippage bound: the flow fails with
// CodeSlippage when the net payout would land below minAssets.
func (s *Service) RedeemWithCheck(ctx context.Context, caller, owner, receiver domain.Address, shares, minAssets sdkmath.Int) (*FlowResult, error) {
	return s.runRedeem(ctx, caller, owner, receiver, shares, minAssets)
}

func (s *Service) runWithdraw(ctx context.Context, caller, owner, receiver domain.Address, assets, maxShares sdkmath.Int) (*FlowResult, error) {
	start := time.Now()
	if err := s.checkExitArgs(caller, owner, receiver, assets, "withdrawal amount"); err != nil {
		s.recordRejected(opWithdraw, err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result *FlowResult
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		state, err := s.stateForFlow(txCtx)
		if err != nil {
			return err
		}
		quote, err := s.pricer.Quote(txCtx, state.ActiveFeed, state.Config.MaxPriceAge)
		if err != nil {
			return err
		}

		net := assets
		fee := pricing.FeeOnNet(net, state.Config.ExitFeeBps)
		gross := net.Add(fee)
		shares := quote.SharesForAssets(gross)
		if shares.IsZero() {
			return dErrors.New(dErrors.CodeZeroAmount, "withdrawal converts to zero shares")
		}
		if !maxShares.IsNil() && shares.GT(maxShares) {
			return dErrors.New(dErrors.CodeSlippage, "share burn above the requested maximum")
		}

		if err := s.settleExit(txCtx, state, caller, owner, receiver, shares, net); err != nil {
			return err
		}
		state.ApplyWithdrawal(gross, fee, requestcontext.Now(txCtx))
		if err := s.store.SaveState(txCtx, state); err != nil {
			return wrapStateErr(err)
		}
		if err := s.recordExit(txCtx, opWithdraw, caller, receiver, net, shares, fee, quote.Price); err != nil {
			return err
		}

		result = &FlowResult{Assets: net, Shares: shares, Fee: fee, Price: quote.Price}
		return nil
	})
	if err != nil {
		s.recordRejected(opWithdraw, err)
		return nil, err
	}
	s.recordFlow(opWithdraw, start)
	s.addFeeMetric(result.Fee)
	return result, nil
}

func (s *Service) runRedeem(ctx context.Context, caller, owner, receiver domain.Address, shares, minAssets sdkmath.Int) (*FlowResult, error) {
	start := time.Now()
	if err := s.checkExitArgs(caller, owner, receiver, shares, "share amount"); err != nil {
		s.recordRejected(opRedeem, err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result *FlowResult
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		state, err := s.stateForFlow(txCtx)
		if err != nil {
			return err
		}
		quote, err := s.pricer.Quote(txCtx, state.ActiveFeed, state.Config.MaxPriceAge)
		if err != nil {
			return err
		}

		gross := quote.AssetsForShares(shares)
		if gross.IsZero() {
			return dErrors.New(dErrors.CodeZeroAmount, "redemption converts to zero assets")
		}
		fee := pricing.FeeOnGross(gross, state.Config.ExitFeeBps)
		net := gross.Sub(fee)
		if net.IsZero() {
			return dErrors.New(dErrors.CodeZeroAmount, "redemption nets to zero after the exit fee")
		}
		if !minAssets.IsNil() && net.LT(minAssets) {
			return dErrors.New(dErrors.CodeSlippage, "net payout below the requested minimum")
		}

		if err := s.settleExit(txCtx, state, caller, owner, receiver, shares, net); err != nil {
			return err
		}
		state.ApplyWithdrawal(gross, fee, requestcontext.Now(txCtx))
		if err := s.store.SaveState(txCtx, state); err != nil {
			return wrapStateErr(err)
		}
		if err := s.recordExit(txCtx, opRedeem, caller, receiver, net, shares, fee, quote.Price); err != nil {
			return err
		}

		result = &FlowResult{Assets: net, Shares: shares, Fee: fee, Price: quote.Price}
		return nil
	})
	if err != nil {
		s.recordRejected(opRedeem, err)
		return nil, err
	}
	s.recordFlow(opRedeem, start)
	s.addFeeMetric(result.Fee)
	return result, nil
}

func (s *Service) checkExitArgs(caller, owner, receiver domain.Address, amount sdkmath.Int, what string) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if err := requireAddress(owner, "owner"); err != nil {
		return err
	}
	if err := requireAddress(receiver, "receiver"); err != nil {
		return err
	}
	return requirePositive(amount, what)
}

// settleExit moves the two legs of an immediate exit: burn the owner's
// shares, pay the receiver net assets from the vault buffer. Allowance is
// spent first when a third party drives the exit, and the payout is checked
// against the buffer so a short vault rejects cleanly instead of
// half-settling.
func (s *Service) settleExit(ctx context.Context, state *models.State, caller, owner, receiver domain.Address, shares, net sdkmath.Int) error {
	if caller != owner {
		if err := s.ledger.SpendAllowance(ctx, s.shareDenom, owner, caller, shares); err != nil {
			return err
		}
	}
	buffer, err := s.ledger.BalanceOf(ctx, s.assetDenom, models.ModuleAddress)
	if err != nil {
		return err
	}
	if buffer.LT(net) {
		return dErrors.New(dErrors.CodeInsufficientLiquidity, "vault buffer cannot cover the payout")
	}
	if err := s.ledger.Burn(ctx, s.shareDenom, models.ModuleAddress, owner, shares); err != nil {
		return err
	}
	return s.ledger.Transfer(ctx, s.assetDenom, models.ModuleAddress, receiver, net)
}

// recordExit writes the withdraw audit pair: the flow event, plus the fee
// accrual when one was charged.
func (s *Service) recordExit(ctx context.Context, op string, caller, receiver domain.Address, net, shares, fee, price sdkmath.Int) error {
	if err := s.audit.Record(ctx, audit.Event{
		Actor:   caller,
		Action:  string(audit.EventVaultWithdraw),
		Subject: receiver.String(),
		Denom:   s.assetDenom.String(),
		Amount:  net.String(),
		Shares:  shares.String(),
		Price:   price.String(),
		Fee:     fee.String(),
		Reason:  op,
	}); err != nil {
		return err
	}
	if fee.IsZero() {
		return nil
	}
	return s.audit.Record(ctx, audit.Event{
		Actor:  caller,
		Action: string(audit.EventExitFeeAccrued),
		Denom:  s.assetDenom.String(),
		Amount: fee.String(),
		Reason: op,
	})
}
