package bank

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"caravel/pkg/domain"
)

// Store persists balances, supplies, and allowances. Each method is atomic:
// implementations enforce the non-negativity invariant themselves so a
// concurrent caller can never observe or create an overdraft.
//
// Stores return sentinel errors; the Ledger translates them into coded
// domain errors.
type Store interface {
	// Balance returns the holding, zero when the account has none.
	Balance(ctx context.Context, denom domain.Denom, addr domain.Address) (sdkmath.Int, error)
	// TotalSupply returns the outstanding amount of a denom, zero when never minted.
	TotalSupply(ctx context.Context, denom domain.Denom) (sdkmath.Int, error)
	// Allowance returns what spender may move from owner, zero when unset.
	Allowance(ctx context.Context, denom domain.Denom, owner, spender domain.Address) (sdkmath.Int, error)

	// Move transfers amount between accounts. Returns sentinel.ErrInvalidState
	// when the source balance is insufficient.
	Move(ctx context.Context, denom domain.Denom, from, to domain.Address, amount sdkmath.Int) error
	// AddSupply credits an account and grows total supply by the same amount.
	AddSupply(ctx context.Context, denom domain.Denom, addr domain.Address, amount sdkmath.Int) error
	// SubSupply debits an account and shrinks total supply by the same amount.
	// Returns sentinel.ErrInvalidState when the balance is insufficient.
	SubSupply(ctx context.Context, denom domain.Denom, addr domain.Address, amount sdkmath.Int) error
	// SetAllowance overwrites the owner->spender allowance.
	SetAllowance(ctx context.Context, denom domain.Denom, owner, spender domain.Address, amount sdkmath.Int) error
	// SpendAllowance debits the owner->spender allowance. Returns
	// sentinel.ErrInvalidState when the allowance is insufficient.
	SpendAllowance(ctx context.Context, denom domain.Denom, owner, spender domain.Address, amount sdkmath.Int) error
}
