package service

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"

	"caravel/internal/referral"
	"caravel/internal/vault/models"
	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/platform/audit"
	"caravel/pkg/requestcontext"
)

// Deposit pulls assets from the caller and mints the floor-rounded share
// equivalent to the receiver at the current validated price.
func (s *Service) Deposit(ctx context.Context, caller, receiver domain.Address, assets sdkmath.Int) (*FlowResult, error) {
	return s.runDeposit(ctx, caller, receiver, domain.ZeroAddress, assets, sdkmath.Int{}, false)
}

// DepositWithCheck is Deposit with a slippage bound and referral attribution.
// The flow fails with CodeSlippage when the minted shares would land below
// minShares, and the referrer is run through the write-once binding rules
// before anything moves, so a rejected referral costs nothing.
func (s *Service) DepositWithCheck(ctx context.Context, caller, receiver, referrer domain.Address, assets, minShares sdkmath.Int) (*FlowResult, error) {
	return s.runDeposit(ctx, caller, receiver, referrer, assets, minShares, true)
}

// Mint deposits whatever assets the requested shares cost at the current
// price and mints exactly that many shares. The asset charge rounds down,
// same as Deposit's share grant.
func (s *Service) Mint(ctx context.Context, caller, receiver domain.Address, shares sdkmath.Int) (*FlowResult, error) {
	return s.runMint(ctx, caller, receiver, domain.ZeroAddress, shares, sdkmath.Int{}, false)
}

// MintWithCheck is Mint with a slippage bound and referral attribution. The
// flow fails with CodeSlippage when the asset charge would exceed maxAssets.
func (s *Service) MintWithCheck(ctx context.Context, caller, receiver, referrer domain.Address, shares, maxAssets sdkmath.Int) (*FlowResult, error) {
	return s.runMint(ctx, caller, receiver, referrer, shares, maxAssets, true)
}

func (s *Service) runDeposit(ctx context.Context, caller, receiver, referrer domain.Address, assets, minShares sdkmath.Int, bind bool) (*FlowResult, error) {
	start := time.Now()
	if err := requireCaller(caller); err != nil {
		s.recordRejected(opDeposit, err)
		return nil, err
	}
	if err := requireAddress(receiver, "receiver"); err != nil {
		s.recordRejected(opDeposit, err)
		return nil, err
	}
	if err := requirePositive(assets, "deposit amount"); err != nil {
		s.recordRejected(opDeposit, err)
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
		attribution, err := s.bindReferral(txCtx, caller, receiver, referrer, bind)
		if err != nil {
			return err
		}

		quote, err := s.pricer.Quote(txCtx, state.ActiveFeed, state.Config.MaxPriceAge)
		if err != nil {
			return err
		}
		shares := quote.SharesForAssets(assets)
		if shares.IsZero() {
			return dErrors.New(dErrors.CodeZeroAmount, "deposit converts to zero shares")
		}
		if !minShares.IsNil() && shares.LT(minShares) {
			return dErrors.New(dErrors.CodeSlippage, "minted shares below the requested minimum")
		}

		if err := s.ledger.Transfer(txCtx, s.assetDenom, caller, models.ModuleAddress, assets); err != nil {
			return err
		}
		if err := s.ledger.Mint(txCtx, s.shareDenom, models.ModuleAddress, receiver, shares); err != nil {
			return err
		}

		state.ApplyDeposit(assets, requestcontext.Now(txCtx))
		if err := s.store.SaveState(txCtx, state); err != nil {
			return wrapStateErr(err)
		}

		if err := s.audit.Record(txCtx, audit.Event{
			Actor:    caller,
			Action:   string(audit.EventVaultDeposit),
			Subject:  receiver.String(),
			Denom:    s.assetDenom.String(),
			Amount:   assets.String(),
			Shares:   shares.String(),
			Price:    quote.Price.String(),
			Referrer: eventReferrer(attribution),
		}); err != nil {
			return err
		}
		if err := s.recordAttribution(txCtx, caller, receiver, attribution, assets); err != nil {
			return err
		}

		result = &FlowResult{Assets: assets, Shares: shares, Fee: sdkmath.ZeroInt(), Price: quote.Price}
		return nil
	})
	if err != nil {
		s.recordRejected(opDeposit, err)
		return nil, err
	}
	s.recordFlow(opDeposit, start)
	return result, nil
}

func (s *Service) runMint(ctx context.Context, caller, receiver, referrer domain.Address, shares, maxAssets sdkmath.Int, bind bool) (*FlowResult, error) {
	start := time.Now()
	if err := requireCaller(caller); err != nil {
		s.recordRejected(opMint, err)
		return nil, err
	}
	if err := requireAddress(receiver, "receiver"); err != nil {
		s.recordRejected(opMint, err)
		return nil, err
	}
	if err := requirePositive(shares, "share amount"); err != nil {
		s.recordRejected(opMint, err)
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
		attribution, err := s.bindReferral(txCtx, caller, receiver, referrer, bind)
		if err != nil {
			return err
		}

		quote, err := s.pricer.Quote(txCtx, state.ActiveFeed, state.Config.MaxPriceAge)
		if err != nil {
			return err
		}
		assets := quote.AssetsForShares(shares)
		if assets.IsZero() {
			return dErrors.New(dErrors.CodeZeroAmount, "share purchase converts to zero assets")
		}
		if !maxAssets.IsNil() && assets.GT(maxAssets) {
			return dErrors.New(dErrors.CodeSlippage, "asset charge above the requested maximum")
		}

		if err := s.ledger.Transfer(txCtx, s.assetDenom, caller, models.ModuleAddress, assets); err != nil {
			return err
		}
		if err := s.ledger.Mint(txCtx, s.shareDenom, models.ModuleAddress, receiver, shares); err != nil {
			return err
		}

		state.ApplyDeposit(assets, requestcontext.Now(txCtx))
		if err := s.store.SaveState(txCtx, state); err != nil {
			return wrapStateErr(err)
		}

		if err := s.audit.Record(txCtx, audit.Event{
			Actor:    caller,
			Action:   string(audit.EventVaultDeposit),
			Subject:  receiver.String(),
			Denom:    s.assetDenom.String(),
			Amount:   assets.String(),
			Shares:   shares.String(),
			Price:    quote.Price.String(),
			Referrer: eventReferrer(attribution),
		}); err != nil {
			return err
		}
		if err := s.recordAttribution(txCtx, caller, receiver, attribution, assets); err != nil {
			return err
		}

		result = &FlowResult{Assets: assets, Shares: shares, Fee: sdkmath.ZeroInt(), Price: quote.Price}
		return nil
	})
	if err != nil {
		s.recordRejected(opMint, err)
		return nil, err
	}
	s.recordFlow(opMint, start)
	return result, nil
}

// bindReferral runs the referral rules inside the flow's transaction so the
// binding commits or rolls back with the deposit it rode in on.
func (s *Service) bindReferral(ctx context.Context, caller, receiver, referrer domain.Address, bind bool) (referral.Attribution, error) {
	if !bind {
		return referral.Attribution{}, nil
	}
	return s.referrals.Bind(ctx, caller, receiver, referrer)
}

// recordAttribution emits referral_attributed for checked flows by an
// already-bound receiver. The binding flow itself emits referral_bound, so a
// single deposit never produces both events.
func (s *Service) recordAttribution(ctx context.Context, caller, receiver domain.Address, a referral.Attribution, assets sdkmath.Int) error {
	if a.NewlyBound || !a.HasReferrer() {
		return nil
	}
	return s.audit.Record(ctx, audit.Event{
		Actor:    caller,
		Action:   string(audit.EventReferralAttributed),
		Subject:  receiver.String(),
		Denom:    s.assetDenom.String(),
		Amount:   assets.String(),
		Referrer: a.Referrer,
	})
}

// eventReferrer maps an attribution to the audit field, which stays empty
// for unattributed flows.
func eventReferrer(a referral.Attribution) domain.Address {
	if !a.HasReferrer() {
		return ""
	}
	return a.Referrer
}
