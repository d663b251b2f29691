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

// Governance operations run while paused on purpose: pausing exists so
// parameters and feeds can be fixed before flows resume.

// SetMaxPriceAge tunes how old a price snapshot may be before vault flows
// refuse to settle. Operator capability: staleness tolerance is an
// operational dial, not a structural change. The tolerance can never exceed
// the active feed's own staleness window.
func (s *Service) SetMaxPriceAge(ctx context.Context, operator domain.Address, age time.Duration) error {
	if err := s.authz.Require(ctx, operator, domain.CapabilityOperator); err != nil {
		return err
	}
	return s.updateConfig(ctx, operator, fmt.Sprintf("max_price_age=%s", age),
		func(cfg *models.Config) { cfg.MaxPriceAge = age },
		func(txCtx context.Context, state *models.State, _ models.Config) error {
			ceiling, err := s.nav.MaxStaleness(txCtx, state.ActiveFeed)
			if err != nil {
				return err
			}
			if age > ceiling {
				return dErrors.New(dErrors.CodeInvalidConfig, "price age tolerance cannot exceed the feed staleness window")
			}
			return nil
		})
}

// SetEpochLength changes the withdrawal queue's batching interval. Admin
// capability. Only future requests are affected; open requests keep the
// claim time they were queued with.
func (s *Service) SetEpochLength(ctx context.Context, admin domain.Address, length time.Duration) error {
	if err := s.authz.Require(ctx, admin, domain.CapabilityAdmin); err != nil {
		return err
	}
	return s.updateConfig(ctx, admin, fmt.Sprintf("epoch_length=%s", length),
		func(cfg *models.Config) { cfg.EpochLength = length }, nil)
}

// SetExitFee changes the exit fee rate. Admin capability, capped at
// models.MaxExitFeeBps.
func (s *Service) SetExitFee(ctx context.Context, admin domain.Address, bps uint32) error {
	if err := s.authz.Require(ctx, admin, domain.CapabilityAdmin); err != nil {
		return err
	}
	return s.updateConfig(ctx, admin, fmt.Sprintf("exit_fee_bps=%d", bps),
		func(cfg *models.Config) { cfg.ExitFeeBps = bps }, nil)
}

// SetLiquidityRecipient changes where MoveAssets sends the buffer. Admin
// capability.
func (s *Service) SetLiquidityRecipient(ctx context.Context, admin domain.Address, recipient domain.Address) error {
	if err := s.authz.Require(ctx, admin, domain.CapabilityAdmin); err != nil {
		return err
	}
	return s.updateConfig(ctx, admin, fmt.Sprintf("liquidity_recipient=%s", recipient),
		func(cfg *models.Config) { cfg.LiquidityRecipient = recipient }, nil)
}

// updateConfig applies one mutation to the vault config under the usual
// serialization. guard, when set, runs extra validation against the locked
// state before the swap.
func (s *Service) updateConfig(ctx context.Context, actor domain.Address, reason string, mutate func(*models.Config), guard func(ctx context.Context, state *models.State, cfg models.Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		state, err := s.stateLocked(txCtx)
		if err != nil {
			return err
		}
		cfg := state.Config
		mutate(&cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		if guard != nil {
			if err := guard(txCtx, state, cfg); err != nil {
				return err
			}
		}
		state.ApplyConfig(cfg, requestcontext.Now(txCtx))
		if err := s.store.SaveState(txCtx, state); err != nil {
			return wrapStateErr(err)
		}
		return s.audit.Record(txCtx, audit.Event{
			Actor:  actor,
			Action: string(audit.EventVaultConfigUpdated),
			Reason: reason,
		})
	})
}

// Pause halts every flow until Unpause. Guardian capability.
func (s *Service) Pause(ctx context.Context, guardian domain.Address) error {
	return s.setPaused(ctx, guardian, true)
}

// Unpause resumes flows. Guardian capability.
func (s *Service) Unpause(ctx context.Context, guardian domain.Address) error {
	return s.setPaused(ctx, guardian, false)
}

func (s *Service) setPaused(ctx context.Context, guardian domain.Address, paused bool) error {
	if err := s.authz.Require(ctx, guardian, domain.CapabilityGuardian); err != nil {
		return err
	}

	action := string(audit.EventVaultPaused)
	if !paused {
		action = string(audit.EventVaultUnpaused)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		state, err := s.stateLocked(txCtx)
		if err != nil {
			return err
		}
		now := requestcontext.Now(txCtx)
		if paused {
			if err := state.CanPause(); err != nil {
				return conflictFromInvariant(err)
			}
			state.ApplyPause(now)
		} else {
			if err := state.CanUnpause(); err != nil {
				return conflictFromInvariant(err)
			}
			state.ApplyUnpause(now)
		}
		if err := s.store.SaveState(txCtx, state); err != nil {
			return wrapStateErr(err)
		}
		return s.audit.Record(txCtx, audit.Event{
			Actor:  guardian,
			Action: action,
		})
	})
}

// QueueFeedChange stages a swap of the active price feed behind the fixed
// 24h timelock. Admin capability. The target feed must exist. Queueing again
// overwrites the pending entry and restarts the clock, which doubles as the
// abort path: requeue the currently active feed and the eventual execute is
// a no-op swap.
func (s *Service) QueueFeedChange(ctx context.Context, admin domain.Address, feed domain.FeedID) error {
	if err := s.authz.Require(ctx, admin, domain.CapabilityAdmin); err != nil {
		return err
	}
	if !feed.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "feed id is invalid")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.nav.MaxStaleness(txCtx, feed); err != nil {
			return err
		}
		state, err := s.stateLocked(txCtx)
		if err != nil {
			return err
		}
		now := requestcontext.Now(txCtx)
		state.ApplyQueueFeedChange(feed, now)
		if err := s.store.SaveState(txCtx, state); err != nil {
			return wrapStateErr(err)
		}
		return s.audit.Record(txCtx, audit.Event{
			Actor:   admin,
			Action:  string(audit.EventFeedChangeQueued),
			Subject: feed.String(),
			Reason:  fmt.Sprintf("executes_at=%s", now.Add(models.FeedChangeDelay).UTC().Format(time.RFC3339)),
		})
	})
}

// ExecuteFeedChange completes a queued swap once its timelock has elapsed
// and returns the new active feed. Admin capability.
func (s *Service) ExecuteFeedChange(ctx context.Context, admin domain.Address) (domain.FeedID, error) {
	if err := s.authz.Require(ctx, admin, domain.CapabilityAdmin); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var active domain.FeedID
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		state, err := s.stateLocked(txCtx)
		if err != nil {
			return err
		}
		now := requestcontext.Now(txCtx)
		if err := state.CanExecuteFeedChange(now); err != nil {
			return err
		}
		previous := state.ActiveFeed
		state.ApplyExecuteFeedChange(now)
		if err := s.store.SaveState(txCtx, state); err != nil {
			return wrapStateErr(err)
		}
		if err := s.audit.Record(txCtx, audit.Event{
			Actor:   admin,
			Action:  string(audit.EventFeedChangeExecuted),
			Subject: state.ActiveFeed.String(),
			Reason:  fmt.Sprintf("previous=%s", previous),
		}); err != nil {
			return err
		}
		active = state.ActiveFeed
		return nil
	})
	if err != nil {
		return "", err
	}
	return active, nil
}

// RescueTokens sends tokens the vault was never meant to hold out of the
// module account. Admin capability. The managed asset and the share denom
// are off limits: the buffer backs withdrawals and the escrow backs the
// queue.
func (s *Service) RescueTokens(ctx context.Context, admin domain.Address, denom domain.Denom, to domain.Address, amount sdkmath.Int) error {
	if err := s.authz.Require(ctx, admin, domain.CapabilityAdmin); err != nil {
		return err
	}
	if !denom.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "denom is invalid")
	}
	if denom == s.assetDenom || denom == s.shareDenom {
		return dErrors.New(dErrors.CodeManagedAsset, "denom is managed by the vault")
	}
	if err := requireAddress(to, "recipient"); err != nil {
		return err
	}
	if err := requirePositive(amount, "rescue amount"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.ledger.Transfer(txCtx, denom, models.ModuleAddress, to, amount); err != nil {
			return err
		}
		return s.audit.Record(txCtx, audit.Event{
			Actor:   admin,
			Action:  string(audit.EventTokensRescued),
			Subject: to.String(),
			Denom:   denom.String(),
			Amount:  amount.String(),
		})
	})
}

func conflictFromInvariant(err error) error {
	if err == nil {
		return nil
	}
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeConflict, err.Error())
	}
	return err
}
