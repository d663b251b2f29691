package models

import (
	"time"

	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
)

// MaxExitFeeBps caps the exit fee at 2%.
const MaxExitFeeBps uint32 = 200

// Config holds the vault's tunable parameters.
//
// Invariants:
//   - MaxPriceAge is positive and never exceeds the active feed's staleness
//     window (checked against the oracle at set time, not here).
//   - EpochLength is positive.
//   - ExitFeeBps ≤ MaxExitFeeBps.
//   - LiquidityRecipient is a valid, non-zero address.
type Config struct {
	// MaxPriceAge is how old a snapshot may be before the vault refuses to
	// price flows off it.
	MaxPriceAge time.Duration
	// EpochLength sets the withdrawal-queue batching boundary.
	EpochLength time.Duration
	// ExitFeeBps is the exit fee in basis points of the gross amount.
	ExitFeeBps uint32
	// LiquidityRecipient receives assets moved out by MoveAssets.
	LiquidityRecipient domain.Address
}

// Validate checks the invariants that do not need the oracle.
func (c Config) Validate() error {
	if c.MaxPriceAge <= 0 {
		return dErrors.New(dErrors.CodeInvalidConfig, "max price age must be positive")
	}
	if c.EpochLength <= 0 {
		return dErrors.New(dErrors.CodeInvalidConfig, "epoch length must be positive")
	}
	if c.ExitFeeBps > MaxExitFeeBps {
		return dErrors.New(dErrors.CodeInvalidConfig, "exit fee exceeds the 200 bps cap")
	}
	if !c.LiquidityRecipient.IsValid() || c.LiquidityRecipient.IsZero() {
		return dErrors.New(dErrors.CodeInvalidConfig, "liquidity recipient must be a non-zero address")
	}
	return nil
}
