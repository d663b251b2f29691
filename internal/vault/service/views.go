package service

import (
	"context"
	"errors"

	sdkmath "cosmossdk.io/math"

	"caravel/internal/vault/models"
	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/platform/sentinel"
)

// Reads skip the vault mutex: stores hand out consistent snapshots, and
// conversions revalidate the oracle on every call so a paused or stale feed
// poisons the read path immediately.

// State returns a copy of the vault state.
func (s *Service) State(ctx context.Context) (*models.State, error) {
	state, err := s.store.State(ctx)
	if err != nil {
		return nil, wrapStateErr(err)
	}
	return state, nil
}

// TotalAssets values the outstanding share supply at the current price.
// Zero supply reports zero without consulting the feed.
func (s *Service) TotalAssets(ctx context.Context) (sdkmath.Int, error) {
	state, err := s.State(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return s.pricer.TotalAssets(ctx, state.ActiveFeed, state.Config.MaxPriceAge)
}

// TotalShares returns the outstanding share supply.
func (s *Service) TotalShares(ctx context.Context) (sdkmath.Int, error) {
	return s.ledger.TotalSupply(ctx, s.shareDenom)
}

// BufferBalance returns the vault's on-hand asset balance, the pool that
// pays immediate exits and matured claims.
func (s *Service) BufferBalance(ctx context.Context) (sdkmath.Int, error) {
	return s.ledger.BalanceOf(ctx, s.assetDenom, models.ModuleAddress)
}

// ConvertToShares quotes how many shares the given assets would mint right
// now. Zero in, zero out.
func (s *Service) ConvertToShares(ctx context.Context, assets sdkmath.Int) (sdkmath.Int, error) {
	if err := requireConvertible(assets); err != nil {
		return sdkmath.Int{}, err
	}
	state, err := s.State(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	quote, err := s.pricer.Quote(ctx, state.ActiveFeed, state.Config.MaxPriceAge)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return quote.SharesForAssets(assets), nil
}

// ConvertToAssets quotes the asset value of the given shares right now,
// before any exit fee. Zero in, zero out.
func (s *Service) ConvertToAssets(ctx context.Context, shares sdkmath.Int) (sdkmath.Int, error) {
	if err := requireConvertible(shares); err != nil {
		return sdkmath.Int{}, err
	}
	state, err := s.State(ctx)
	if err != nil {
		return sdkmath.Int{}, err
	}
	quote, err := s.pricer.Quote(ctx, state.ActiveFeed, state.Config.MaxPriceAge)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return quote.AssetsForShares(shares), nil
}

// Request returns one withdrawal request by id.
func (s *Service) Request(ctx context.Context, id uint64) (*models.WithdrawalRequest, error) {
	req, err := s.store.Request(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "withdrawal request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "withdrawal request unavailable")
	}
	return req, nil
}

// RequestsOf lists an owner's withdrawal requests, newest first.
func (s *Service) RequestsOf(ctx context.Context, owner domain.Address) ([]*models.WithdrawalRequest, error) {
	if !owner.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner address is invalid")
	}
	reqs, err := s.store.RequestsByOwner(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "withdrawal requests unavailable")
	}
	return reqs, nil
}

func requireConvertible(amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be non-negative")
	}
	return nil
}
