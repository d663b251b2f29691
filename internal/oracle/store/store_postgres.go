package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"caravel/internal/oracle/models"
	"caravel/pkg/domain"
	"caravel/pkg/platform/sentinel"
	txcontext "caravel/pkg/platform/tx"
)

// Postgres persists feeds in the nav_feeds table. Prices are NUMERIC(78,0)
// strings; staleness windows are stored as whole seconds.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const feedColumns = `id, price, price_updated_at, max_staleness_seconds, max_move_bps, paused, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, feed *models.Feed) error {
	query := `
		INSERT INTO nav_feeds (` + feedColumns + `)
		VALUES ($1, $2::numeric, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		feed.ID.String(),
		feed.Snapshot.Price.String(),
		nullTime(feed.Snapshot.UpdatedAt),
		int64(feed.Config.MaxStaleness/time.Second),
		feed.Config.MaxMoveBps,
		feed.Paused,
		feed.CreatedAt,
		feed.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert feed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert feed result: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *Postgres) Find(ctx context.Context, feedID domain.FeedID) (*models.Feed, error) {
	query := `SELECT ` + feedColumns + ` FROM nav_feeds WHERE id = $1`
	return s.scanFeed(s.execer(ctx).QueryRowContext(ctx, query, feedID.String()))
}

// Execute locks the row with FOR UPDATE, so it must run inside a
// transaction to give the guards any teeth. The service wraps every
// mutation in tx.Runner.
func (s *Postgres) Execute(ctx context.Context, feedID domain.FeedID, validate func(*models.Feed) error, mutate func(*models.Feed)) (*models.Feed, error) {
	execer := s.execer(ctx)

	query := `SELECT ` + feedColumns + ` FROM nav_feeds WHERE id = $1 FOR UPDATE`
	feed, err := s.scanFeed(execer.QueryRowContext(ctx, query, feedID.String()))
	if err != nil {
		return nil, err
	}
	if validate != nil {
		if err := validate(feed); err != nil {
			return nil, err
		}
	}
	if mutate != nil {
		mutate(feed)
	}

	update := `
		UPDATE nav_feeds
		SET price = $2::numeric, price_updated_at = $3, max_staleness_seconds = $4,
		    max_move_bps = $5, paused = $6, updated_at = $7
		WHERE id = $1
	`
	if _, err := execer.ExecContext(ctx, update,
		feed.ID.String(),
		feed.Snapshot.Price.String(),
		nullTime(feed.Snapshot.UpdatedAt),
		int64(feed.Config.MaxStaleness/time.Second),
		feed.Config.MaxMoveBps,
		feed.Paused,
		feed.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update feed: %w", err)
	}
	return feed, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Feed, error) {
	query := `SELECT ` + feedColumns + ` FROM nav_feeds ORDER BY id`
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*models.Feed
	for rows.Next() {
		feed, err := scanFeedRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feeds: %w", err)
	}
	return feeds, nil
}

func (s *Postgres) scanFeed(row *sql.Row) (*models.Feed, error) {
	feed, err := scanFeedRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return feed, nil
}

func scanFeedRow(scan func(dest ...any) error) (*models.Feed, error) {
	var (
		feed             models.Feed
		rawID            string
		rawPrice         string
		priceUpdatedAt   sql.NullTime
		stalenessSeconds int64
	)
	if err := scan(
		&rawID,
		&rawPrice,
		&priceUpdatedAt,
		&stalenessSeconds,
		&feed.Config.MaxMoveBps,
		&feed.Paused,
		&feed.CreatedAt,
		&feed.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan feed: %w", err)
	}
	price, ok := sdkmath.NewIntFromString(rawPrice)
	if !ok {
		return nil, fmt.Errorf("invalid price in store: %q", rawPrice)
	}
	feed.ID = domain.FeedID(rawID)
	feed.Snapshot = models.Snapshot{Price: price}
	if priceUpdatedAt.Valid {
		feed.Snapshot.UpdatedAt = priceUpdatedAt.Time
	}
	feed.Config.MaxStaleness = time.Duration(stalenessSeconds) * time.Second
	return &feed, nil
}

// nullTime maps the zero time to SQL NULL so an unprimed feed round-trips.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
