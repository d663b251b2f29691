package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"

	"caravel/internal/pricing"
	"caravel/internal/vault/models"
	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/platform/audit"
	"caravel/pkg/platform/sentinel"
	"caravel/pkg/requestcontext"
)

// QueueWithdrawal escrows the caller's shares at the vault and opens a
// request that becomes claimable at the next epoch boundary. No pricing
// happens here: the claim prices at claim time, so queued withdrawals ride
// the NAV until settled.
func (s *Service) QueueWithdrawal(ctx context.Context, caller, receiver domain.Address, shares sdkmath.Int) (*models.WithdrawalRequest, error) {
	start := time.Now()
	if err := requireCaller(caller); err != nil {
		s.recordRejected(opQueue, err)
		return nil, err
	}
	if err := requireAddress(receiver, "receiver"); err != nil {
		s.recordRejected(opQueue, err)
		return nil, err
	}
	if err := requirePositive(shares, "share amount"); err != nil {
		s.recordRejected(opQueue, err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var request *models.WithdrawalRequest
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		state, err := s.stateForFlow(txCtx)
		if err != nil {
			return err
		}

		if err := s.ledger.Transfer(txCtx, s.shareDenom, caller, models.ModuleAddress, shares); err != nil {
			return err
		}

		now := requestcontext.Now(txCtx)
		claimableAt := models.NextEpochBoundary(now, state.Config.EpochLength)
		req, err := models.NewWithdrawalRequest(caller, receiver, shares, now, claimableAt)
		if err != nil {
			return err
		}
		created, err := s.store.CreateRequest(txCtx, req)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create withdrawal request")
		}

		if err := s.audit.Record(txCtx, audit.Event{
			Actor:   caller,
			Action:  string(audit.EventWithdrawalQueued),
			Subject: requestSubject(created.ID),
			Denom:   s.shareDenom.String(),
			Shares:  shares.String(),
			Reason:  fmt.Sprintf("receiver=%s claimable_at=%s", receiver, claimableAt.UTC().Format(time.RFC3339)),
		}); err != nil {
			return err
		}
		request = created
		return nil
	})
	if err != nil {
		s.recordRejected(opQueue, err)
		return nil, err
	}
	s.recordFlow(opQueue, start)
	if s.metrics != nil {
		s.metrics.QueueOpened()
	}
	return request, nil
}

// ClaimWithdrawal settles an open request at the current price: burn the
// escrowed shares, pay the receiver net of the exit fee. Owner only, and only
// once the claim window has opened. Settlement is all-or-nothing; a vault
// buffer too thin for the payout leaves the request open and claimable again
// later.
func (s *Service) ClaimWithdrawal(ctx context.Context, caller domain.Address, id uint64) (*FlowResult, error) {
	start := time.Now()
	if err := requireCaller(caller); err != nil {
		s.recordRejected(opClaim, err)
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
		req, err := s.requestForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		now := requestcontext.Now(txCtx)
		if err := req.CanClaim(caller, now); err != nil {
			return err
		}

		quote, err := s.pricer.Quote(txCtx, state.ActiveFeed, state.Config.MaxPriceAge)
		if err != nil {
			return err
		}
		gross := quote.AssetsForShares(req.Shares)
		if gross.IsZero() {
			return dErrors.New(dErrors.CodeZeroAmount, "claim converts to zero assets")
		}
		fee := pricing.FeeOnGross(gross, state.Config.ExitFeeBps)
		net := gross.Sub(fee)
		if net.IsZero() {
			return dErrors.New(dErrors.CodeZeroAmount, "claim nets to zero after the exit fee")
		}

		buffer, err := s.ledger.BalanceOf(txCtx, s.assetDenom, models.ModuleAddress)
		if err != nil {
			return err
		}
		if buffer.LT(net) {
			return dErrors.New(dErrors.CodeInsufficientLiquidity, "vault buffer cannot cover the payout")
		}

		if err := s.ledger.Burn(txCtx, s.shareDenom, models.ModuleAddress, models.ModuleAddress, req.Shares); err != nil {
			return err
		}
		if err := s.ledger.Transfer(txCtx, s.assetDenom, models.ModuleAddress, req.Receiver, net); err != nil {
			return err
		}

		req.ApplyClaim()
		if err := s.store.SaveRequest(txCtx, req); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to close withdrawal request")
		}
		state.ApplyWithdrawal(gross, fee, now)
		if err := s.store.SaveState(txCtx, state); err != nil {
			return wrapStateErr(err)
		}

		if err := s.audit.Record(txCtx, audit.Event{
			Actor:   caller,
			Action:  string(audit.EventWithdrawalClaimed),
			Subject: requestSubject(req.ID),
			Denom:   s.assetDenom.String(),
			Amount:  net.String(),
			Shares:  req.Shares.String(),
			Price:   quote.Price.String(),
			Fee:     fee.String(),
		}); err != nil {
			return err
		}
		if !fee.IsZero() {
			if err := s.audit.Record(txCtx, audit.Event{
				Actor:  caller,
				Action: string(audit.EventExitFeeAccrued),
				Denom:  s.assetDenom.String(),
				Amount: fee.String(),
				Reason: opClaim,
			}); err != nil {
				return err
			}
		}

		result = &FlowResult{Assets: net, Shares: req.Shares, Fee: fee, Price: quote.Price}
		return nil
	})
	if err != nil {
		s.recordRejected(opClaim, err)
		return nil, err
	}
	s.recordFlow(opClaim, start)
	s.addFeeMetric(result.Fee)
	if s.metrics != nil {
		s.metrics.QueueClosed()
	}
	return result, nil
}

// CancelWithdrawal closes an open request and returns the escrowed shares to
// the owner. Owner only, but not time-gated: a request can be cancelled
// before, at, or after its claim window for as long as it stays open.
func (s *Service) CancelWithdrawal(ctx context.Context, caller domain.Address, id uint64) (*models.WithdrawalRequest, error) {
	start := time.Now()
	if err := requireCaller(caller); err != nil {
		s.recordRejected(opCancel, err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var request *models.WithdrawalRequest
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.stateForFlow(txCtx); err != nil {
			return err
		}
		req, err := s.requestForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := req.CanCancel(caller); err != nil {
			return err
		}

		if err := s.ledger.Transfer(txCtx, s.shareDenom, models.ModuleAddress, req.Owner, req.Shares); err != nil {
			return err
		}
		req.ApplyCancel()
		if err := s.store.SaveRequest(txCtx, req); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to close withdrawal request")
		}

		if err := s.audit.Record(txCtx, audit.Event{
			Actor:   caller,
			Action:  string(audit.EventWithdrawalCancelled),
			Subject: requestSubject(req.ID),
			Denom:   s.shareDenom.String(),
			Shares:  req.Shares.String(),
		}); err != nil {
			return err
		}
		request = req
		return nil
	})
	if err != nil {
		s.recordRejected(opCancel, err)
		return nil, err
	}
	s.recordFlow(opCancel, start)
	if s.metrics != nil {
		s.metrics.QueueClosed()
	}
	return request, nil
}

func (s *Service) requestForUpdate(ctx context.Context, id uint64) (*models.WithdrawalRequest, error) {
	req, err := s.store.RequestForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "withdrawal request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "withdrawal request unavailable")
	}
	return req, nil
}

func requestSubject(id uint64) string {
	return strconv.FormatUint(id, 10)
}
