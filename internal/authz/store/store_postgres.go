package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"caravel/pkg/domain"
	"caravel/pkg/platform/sentinel"
	txcontext "caravel/pkg/platform/tx"
)

// Postgres persists grants in the capabilities table, keyed on
// (principal, capability).
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

func (s *Postgres) Grant(ctx context.Context, principal domain.Address, capability domain.Capability) error {
	query := `
		INSERT INTO capabilities (principal, capability, granted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (principal, capability) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, principal.String(), string(capability), time.Now())
	if err != nil {
		return fmt.Errorf("insert capability: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert capability result: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *Postgres) Revoke(ctx context.Context, principal domain.Address, capability domain.Capability) error {
	query := `DELETE FROM capabilities WHERE principal = $1 AND capability = $2`
	res, err := s.execer(ctx).ExecContext(ctx, query, principal.String(), string(capability))
	if err != nil {
		return fmt.Errorf("delete capability: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete capability result: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Has(ctx context.Context, principal domain.Address, capability domain.Capability) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM capabilities WHERE principal = $1 AND capability = $2)`
	var held bool
	if err := s.execer(ctx).QueryRowContext(ctx, query, principal.String(), string(capability)).Scan(&held); err != nil {
		return false, fmt.Errorf("check capability: %w", err)
	}
	return held, nil
}

func (s *Postgres) List(ctx context.Context, principal domain.Address) ([]domain.Capability, error) {
	query := `SELECT capability FROM capabilities WHERE principal = $1 ORDER BY capability`

	var rows *sql.Rows
	var err error
	if tx, ok := txcontext.From(ctx); ok {
		rows, err = tx.QueryContext(ctx, query, principal.String())
	} else {
		rows, err = s.db.QueryContext(ctx, query, principal.String())
	}
	if err != nil {
		return nil, fmt.Errorf("list capabilities: %w", err)
	}
	defer rows.Close()

	var capabilities []domain.Capability
	for rows.Next() {
		var capability string
		if err := rows.Scan(&capability); err != nil {
			return nil, fmt.Errorf("scan capability: %w", err)
		}
		capabilities = append(capabilities, domain.Capability(capability))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate capabilities: %w", err)
	}
	return capabilities, nil
}
