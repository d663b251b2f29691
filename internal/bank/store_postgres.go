package bank

import (
	"context"
	"database/sql"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"caravel/pkg/domain"
	"caravel/pkg/platform/sentinel"
	txcontext "caravel/pkg/platform/tx"
)

// Postgres persists balances in three tables: balances, supplies, and
// allowances. Amounts are NUMERIC(78,0) so a full 256-bit integer fits.
// Non-negativity is enforced by guarded UPDATEs: a debit that would
// overdraw matches zero rows and surfaces as sentinel.ErrInvalidState.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) Balance(ctx context.Context, denom domain.Denom, addr domain.Address) (sdkmath.Int, error) {
	query := `SELECT amount FROM balances WHERE denom = $1 AND address = $2`
	return s.scanAmount(s.execer(ctx).QueryRowContext(ctx, query, denom.String(), addr.String()))
}

func (s *Postgres) TotalSupply(ctx context.Context, denom domain.Denom) (sdkmath.Int, error) {
	query := `SELECT amount FROM supplies WHERE denom = $1`
	return s.scanAmount(s.execer(ctx).QueryRowContext(ctx, query, denom.String()))
}

func (s *Postgres) Allowance(ctx context.Context, denom domain.Denom, owner, spender domain.Address) (sdkmath.Int, error) {
	query := `SELECT amount FROM allowances WHERE denom = $1 AND owner = $2 AND spender = $3`
	return s.scanAmount(s.execer(ctx).QueryRowContext(ctx, query, denom.String(), owner.String(), spender.String()))
}

func (s *Postgres) Move(ctx context.Context, denom domain.Denom, from, to domain.Address, amount sdkmath.Int) error {
	execer := s.execer(ctx)

	debit := `
		UPDATE balances SET amount = amount - $3::numeric
		WHERE denom = $1 AND address = $2 AND amount >= $3::numeric
	`
	res, err := execer.ExecContext(ctx, debit, denom.String(), from.String(), amount.String())
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit balance result: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInvalidState
	}
	return s.credit(ctx, execer, denom, to, amount)
}

func (s *Postgres) AddSupply(ctx context.Context, denom domain.Denom, addr domain.Address, amount sdkmath.Int) error {
	execer := s.execer(ctx)
	if err := s.credit(ctx, execer, denom, addr, amount); err != nil {
		return err
	}
	grow := `
		INSERT INTO supplies (denom, amount) VALUES ($1, $2::numeric)
		ON CONFLICT (denom) DO UPDATE SET amount = supplies.amount + $2::numeric
	`
	if _, err := execer.ExecContext(ctx, grow, denom.String(), amount.String()); err != nil {
		return fmt.Errorf("grow supply: %w", err)
	}
	return nil
}

func (s *Postgres) SubSupply(ctx context.Context, denom domain.Denom, addr domain.Address, amount sdkmath.Int) error {
	execer := s.execer(ctx)

	debit := `
		UPDATE balances SET amount = amount - $3::numeric
		WHERE denom = $1 AND address = $2 AND amount >= $3::numeric
	`
	res, err := execer.ExecContext(ctx, debit, denom.String(), addr.String(), amount.String())
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit balance result: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInvalidState
	}

	shrink := `UPDATE supplies SET amount = amount - $2::numeric WHERE denom = $1`
	if _, err := execer.ExecContext(ctx, shrink, denom.String(), amount.String()); err != nil {
		return fmt.Errorf("shrink supply: %w", err)
	}
	return nil
}

func (s *Postgres) SetAllowance(ctx context.Context, denom domain.Denom, owner, spender domain.Address, amount sdkmath.Int) error {
	if amount.IsZero() {
		query := `DELETE FROM allowances WHERE denom = $1 AND owner = $2 AND spender = $3`
		if _, err := s.execer(ctx).ExecContext(ctx, query, denom.String(), owner.String(), spender.String()); err != nil {
			return fmt.Errorf("clear allowance: %w", err)
		}
		return nil
	}
	query := `
		INSERT INTO allowances (denom, owner, spender, amount) VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (denom, owner, spender) DO UPDATE SET amount = $4::numeric
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, denom.String(), owner.String(), spender.String(), amount.String()); err != nil {
		return fmt.Errorf("set allowance: %w", err)
	}
	return nil
}

func (s *Postgres) SpendAllowance(ctx context.Context, denom domain.Denom, owner, spender domain.Address, amount sdkmath.Int) error {
	query := `
		UPDATE allowances SET amount = amount - $4::numeric
		WHERE denom = $1 AND owner = $2 AND spender = $3 AND amount >= $4::numeric
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, denom.String(), owner.String(), spender.String(), amount.String())
	if err != nil {
		return fmt.Errorf("spend allowance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("spend allowance result: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Postgres) credit(ctx context.Context, execer dbExecutor, denom domain.Denom, addr domain.Address, amount sdkmath.Int) error {
	query := `
		INSERT INTO balances (denom, address, amount) VALUES ($1, $2, $3::numeric)
		ON CONFLICT (denom, address) DO UPDATE SET amount = balances.amount + $3::numeric
	`
	if _, err := execer.ExecContext(ctx, query, denom.String(), addr.String(), amount.String()); err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}

func (s *Postgres) scanAmount(row *sql.Row) (sdkmath.Int, error) {
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return sdkmath.ZeroInt(), nil
		}
		return sdkmath.Int{}, fmt.Errorf("scan amount: %w", err)
	}
	amount, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid amount in store: %q", raw)
	}
	return amount, nil
}
