package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"caravel/internal/vault/models"
	"caravel/pkg/domain"
	"caravel/pkg/platform/sentinel"
	txcontext "caravel/pkg/platform/tx"
)

// Postgres persists the singleton vault_state row and the
// withdrawal_requests table. Amounts are NUMERIC(78,0); durations are
// stored in whole seconds. Request IDs come from a BIGSERIAL, which keeps
// them monotonic and never reused even across rolled-back attempts.
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

const stateColumns = `active_feed, paused, max_price_age_seconds, epoch_length_seconds,
		exit_fee_bps, liquidity_recipient, accrued_fees, gross_deposits,
		gross_withdrawals, pending_feed, pending_queued_at, created_at, updated_at`

func (s *Postgres) EnsureState(ctx context.Context, initial *models.State) error {
	query := `
		INSERT INTO vault_state (
			id, ` + stateColumns + `
		)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		initial.ActiveFeed.String(),
		initial.Paused,
		int64(initial.Config.MaxPriceAge/time.Second),
		int64(initial.Config.EpochLength/time.Second),
		initial.Config.ExitFeeBps,
		initial.Config.LiquidityRecipient.String(),
		initial.AccruedFees.String(),
		initial.Flows.GrossDeposits.String(),
		initial.Flows.GrossWithdrawals.String(),
		initial.Pending.Feed.String(),
		nullTime(initial.Pending.QueuedAt),
		initial.CreatedAt,
		initial.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ensure vault state: %w", err)
	}
	return nil
}

func (s *Postgres) State(ctx context.Context) (*models.State, error) {
	query := `SELECT ` + stateColumns + ` FROM vault_state WHERE id = 1`
	return s.scanState(s.execer(ctx).QueryRowContext(ctx, query))
}

// StateForUpdate must run inside a transaction; the row lock serializes
// concurrent vault mutations across processes.
func (s *Postgres) StateForUpdate(ctx context.Context) (*models.State, error) {
	query := `SELECT ` + stateColumns + ` FROM vault_state WHERE id = 1 FOR UPDATE`
	return s.scanState(s.execer(ctx).QueryRowContext(ctx, query))
}

func (s *Postgres) SaveState(ctx context.Context, state *models.State) error {
	query := `
		UPDATE vault_state SET
			active_feed = $1,
			paused = $2,
			max_price_age_seconds = $3,
			epoch_length_seconds = $4,
			exit_fee_bps = $5,
			liquidity_recipient = $6,
			accrued_fees = $7,
			gross_deposits = $8,
			gross_withdrawals = $9,
			pending_feed = $10,
			pending_queued_at = $11,
			updated_at = $12
		WHERE id = 1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		state.ActiveFeed.String(),
		state.Paused,
		int64(state.Config.MaxPriceAge/time.Second),
		int64(state.Config.EpochLength/time.Second),
		state.Config.ExitFeeBps,
		state.Config.LiquidityRecipient.String(),
		state.AccruedFees.String(),
		state.Flows.GrossDeposits.String(),
		state.Flows.GrossWithdrawals.String(),
		state.Pending.Feed.String(),
		nullTime(state.Pending.QueuedAt),
		state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save vault state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save vault state result: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) scanState(row *sql.Row) (*models.State, error) {
	var (
		state           models.State
		activeFeed      string
		priceAgeSecs    int64
		epochSecs       int64
		recipient       string
		accruedFees     string
		grossDeposits   string
		grossWithdrawal string
		pendingFeed     string
		pendingQueuedAt sql.NullTime
	)
	err := row.Scan(
		&activeFeed,
		&state.Paused,
		&priceAgeSecs,
		&epochSecs,
		&state.Config.ExitFeeBps,
		&recipient,
		&accruedFees,
		&grossDeposits,
		&grossWithdrawal,
		&pendingFeed,
		&pendingQueuedAt,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan vault state: %w", err)
	}

	state.ActiveFeed = domain.FeedID(activeFeed)
	state.Config.MaxPriceAge = time.Duration(priceAgeSecs) * time.Second
	state.Config.EpochLength = time.Duration(epochSecs) * time.Second
	state.Config.LiquidityRecipient = domain.Address(recipient)
	if state.AccruedFees, err = parseAmount(accruedFees); err != nil {
		return nil, err
	}
	if state.Flows.GrossDeposits, err = parseAmount(grossDeposits); err != nil {
		return nil, err
	}
	if state.Flows.GrossWithdrawals, err = parseAmount(grossWithdrawal); err != nil {
		return nil, err
	}
	state.Pending.Feed = domain.FeedID(pendingFeed)
	if pendingQueuedAt.Valid {
		state.Pending.QueuedAt = pendingQueuedAt.Time
	}
	return &state, nil
}

const requestColumns = `id, owner, receiver, shares, requested_at, claimable_at, closed, closed_reason`

func (s *Postgres) CreateRequest(ctx context.Context, request *models.WithdrawalRequest) (*models.WithdrawalRequest, error) {
	query := `
		INSERT INTO withdrawal_requests (
			owner, receiver, shares, requested_at, claimable_at, closed, closed_reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	stored := request.Clone()
	err := s.execer(ctx).QueryRowContext(ctx, query,
		request.Owner.String(),
		request.Receiver.String(),
		request.Shares.String(),
		request.RequestedAt,
		request.ClaimableAt,
		request.Closed,
		request.ClosedReason,
	).Scan(&stored.ID)
	if err != nil {
		return nil, fmt.Errorf("insert withdrawal request: %w", err)
	}
	return stored, nil
}

func (s *Postgres) Request(ctx context.Context, id uint64) (*models.WithdrawalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM withdrawal_requests WHERE id = $1`
	return scanRequest(s.execer(ctx).QueryRowContext(ctx, query, int64(id)))
}

// RequestForUpdate must run inside a transaction.
func (s *Postgres) RequestForUpdate(ctx context.Context, id uint64) (*models.WithdrawalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`
	return scanRequest(s.execer(ctx).QueryRowContext(ctx, query, int64(id)))
}

func (s *Postgres) SaveRequest(ctx context.Context, request *models.WithdrawalRequest) error {
	query := `
		UPDATE withdrawal_requests
		SET closed = $2, closed_reason = $3
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, int64(request.ID), request.Closed, request.ClosedReason)
	if err != nil {
		return fmt.Errorf("save withdrawal request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save withdrawal request result: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) RequestsByOwner(ctx context.Context, owner domain.Address) ([]*models.WithdrawalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM withdrawal_requests WHERE owner = $1 ORDER BY id DESC`

	var rows *sql.Rows
	var err error
	if tx, ok := txcontext.From(ctx); ok {
		rows, err = tx.QueryContext(ctx, query, owner.String())
	} else {
		rows, err = s.db.QueryContext(ctx, query, owner.String())
	}
	if err != nil {
		return nil, fmt.Errorf("list withdrawal requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.WithdrawalRequest
	for rows.Next() {
		request, err := scanRequestRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withdrawal requests: %w", err)
	}
	return requests, nil
}

func scanRequest(row *sql.Row) (*models.WithdrawalRequest, error) {
	request, err := scanRequestRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return request, err
}

func scanRequestRow(scan func(dest ...any) error) (*models.WithdrawalRequest, error) {
	var (
		request  models.WithdrawalRequest
		id       int64
		owner    string
		receiver string
		shares   string
	)
	err := scan(
		&id,
		&owner,
		&receiver,
		&shares,
		&request.RequestedAt,
		&request.ClaimableAt,
		&request.Closed,
		&request.ClosedReason,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan withdrawal request: %w", err)
	}
	request.ID = uint64(id)
	request.Owner = domain.Address(owner)
	request.Receiver = domain.Address(receiver)
	if request.Shares, err = parseAmount(shares); err != nil {
		return nil, err
	}
	return &request, nil
}

func parseAmount(raw string) (sdkmath.Int, error) {
	amount, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("malformed amount %q", raw)
	}
	return amount, nil
}

// nullTime maps the zero time to NULL so "nothing queued" round-trips.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
