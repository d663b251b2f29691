package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"caravel/internal/referral/models"
	"caravel/pkg/domain"
	"caravel/pkg/platform/sentinel"
	txcontext "caravel/pkg/platform/tx"
)

// Postgres persists bindings in the referrals table. The receiver is the
// primary key, so write-once falls out of ON CONFLICT DO NOTHING.
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

func (s *Postgres) Create(ctx context.Context, binding *models.Binding) error {
	query := `
		INSERT INTO referrals (receiver, referrer, bound_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (receiver) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		binding.Receiver.String(),
		binding.Referrer.String(),
		binding.BoundAt,
	)
	if err != nil {
		return fmt.Errorf("insert referral binding: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert referral binding result: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *Postgres) Find(ctx context.Context, receiver domain.Address) (*models.Binding, error) {
	query := `SELECT referrer, bound_at FROM referrals WHERE receiver = $1`

	var (
		referrer string
		binding  models.Binding
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, receiver.String()).
		Scan(&referrer, &binding.BoundAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find referral binding: %w", err)
	}
	binding.Receiver = receiver
	binding.Referrer = domain.Address(referrer)
	return &binding, nil
}
