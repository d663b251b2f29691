// Package bank keeps the fungible-token balance book: who holds how much of
// which denom, total supply per denom, and delegated spending allowances.
// The vault service is its main client; shares and the underlying asset are
// both plain denoms here.
package bank

import (
	"context"
	"errors"
	"log/slog"

	sdkmath "cosmossdk.io/math"

	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/platform/sentinel"
)

// Ledger exposes balance-book operations. Minting and burning are restricted
// to the registered authority of each denom; everything else is open to any
// account that owns the funds.
type Ledger struct {
	store       Store
	authorities map[domain.Denom]domain.Address
	logger      *slog.Logger
}

// Option configures the Ledger.
type Option func(*Ledger)

// WithAuthority registers the only address allowed to mint or burn a denom.
func WithAuthority(denom domain.Denom, addr domain.Address) Option {
	return func(l *Ledger) {
		l.authorities[denom] = addr
	}
}

// WithLogger sets a logger for supply-changing operations.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:       store,
		authorities: make(map[domain.Denom]domain.Address),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// BalanceOf returns the holding, zero when the account has none.
func (l *Ledger) BalanceOf(ctx context.Context, denom domain.Denom, addr domain.Address) (sdkmath.Int, error) {
	bal, err := l.store.Balance(ctx, denom, addr)
	if err != nil {
		return sdkmath.Int{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance")
	}
	return bal, nil
}

// TotalSupply returns the outstanding amount of a denom.
func (l *Ledger) TotalSupply(ctx context.Context, denom domain.Denom) (sdkmath.Int, error) {
	supply, err := l.store.TotalSupply(ctx, denom)
	if err != nil {
		return sdkmath.Int{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read total supply")
	}
	return supply, nil
}

// Allowance returns what spender may move from owner.
func (l *Ledger) Allowance(ctx context.Context, denom domain.Denom, owner, spender domain.Address) (sdkmath.Int, error) {
	allowance, err := l.store.Allowance(ctx, denom, owner, spender)
	if err != nil {
		return sdkmath.Int{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read allowance")
	}
	return allowance, nil
}

// Transfer moves amount between accounts. The per-denom sum over all
// accounts is unchanged.
func (l *Ledger) Transfer(ctx context.Context, denom domain.Denom, from, to domain.Address, amount sdkmath.Int) error {
	if err := requireAmount(amount); err != nil {
		return err
	}
	if from.IsZero() || to.IsZero() {
		return dErrors.New(dErrors.CodeZeroAddress, "transfer endpoints cannot be the zero address")
	}
	if err := l.store.Move(ctx, denom, from, to, amount); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.New(dErrors.CodeInsufficientFunds, "insufficient balance")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to transfer")
	}
	return nil
}

// Mint creates amount of denom at addr. Only the denom's registered
// authority may call it.
func (l *Ledger) Mint(ctx context.Context, denom domain.Denom, minter, addr domain.Address, amount sdkmath.Int) error {
	if err := l.requireAuthority(denom, minter); err != nil {
		return err
	}
	if err := requireAmount(amount); err != nil {
		return err
	}
	if addr.IsZero() {
		return dErrors.New(dErrors.CodeZeroAddress, "cannot mint to the zero address")
	}
	if err := l.store.AddSupply(ctx, denom, addr, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint")
	}
	l.logSupplyChange(ctx, "mint", denom, addr, amount)
	return nil
}

// Burn destroys amount of denom held at addr. Only the denom's registered
// authority may call it.
func (l *Ledger) Burn(ctx context.Context, denom domain.Denom, minter, addr domain.Address, amount sdkmath.Int) error {
	if err := l.requireAuthority(denom, minter); err != nil {
		return err
	}
	if err := requireAmount(amount); err != nil {
		return err
	}
	if err := l.store.SubSupply(ctx, denom, addr, amount); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.New(dErrors.CodeInsufficientFunds, "insufficient balance to burn")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to burn")
	}
	l.logSupplyChange(ctx, "burn", denom, addr, amount)
	return nil
}

// Approve lets spender move up to amount of owner's denom. Zero clears the
// allowance.
func (l *Ledger) Approve(ctx context.Context, denom domain.Denom, owner, spender domain.Address, amount sdkmath.Int) error {
	if owner.IsZero() || spender.IsZero() {
		return dErrors.New(dErrors.CodeZeroAddress, "allowance endpoints cannot be the zero address")
	}
	if amount.IsNil() || amount.IsNegative() {
		return dErrors.New(dErrors.CodeZeroAmount, "allowance cannot be negative")
	}
	if err := l.store.SetAllowance(ctx, denom, owner, spender, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set allowance")
	}
	return nil
}

// SpendAllowance debits spender's allowance from owner. The allowance is
// always debited; there is no unlimited-approval special case.
func (l *Ledger) SpendAllowance(ctx context.Context, denom domain.Denom, owner, spender domain.Address, amount sdkmath.Int) error {
	if err := requireAmount(amount); err != nil {
		return err
	}
	if err := l.store.SpendAllowance(ctx, denom, owner, spender, amount); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.New(dErrors.CodeInsufficientFunds, "insufficient allowance")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to spend allowance")
	}
	return nil
}

func (l *Ledger) requireAuthority(denom domain.Denom, minter domain.Address) error {
	authority, ok := l.authorities[denom]
	if !ok || authority != minter {
		return dErrors.New(dErrors.CodeUnauthorized, "not the supply authority for "+denom.String())
	}
	return nil
}

func (l *Ledger) logSupplyChange(ctx context.Context, op string, denom domain.Denom, addr domain.Address, amount sdkmath.Int) {
	if l.logger == nil {
		return
	}
	l.logger.InfoContext(ctx, "supply change",
		"op", op,
		"denom", denom,
		"address", addr,
		"amount", amount.String(),
	)
}

func requireAmount(amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return dErrors.New(dErrors.CodeZeroAmount, "amount must be positive")
	}
	return nil
}
