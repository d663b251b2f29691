package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"caravel/pkg/domain"
	audit "caravel/pkg/platform/audit"
	txcontext "caravel/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Each Append writes the queryable audit_events row and an outbox row in the
// caller's transaction; the outbox worker publishes outbox rows to Kafka and
// marks them. Because the event rides the operation's transaction, a mutation
// and its audit trail commit or roll back together.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka.
// Field names match audit.Event for proper deserialization by consumers.
type outboxPayload struct {
	ID        string `json:"ID"`
	Category  string `json:"Category"`
	Timestamp string `json:"Timestamp"`
	Actor     string `json:"Actor"`
	Action    string `json:"Action"`
	Subject   string `json:"Subject,omitempty"`
	Denom     string `json:"Denom,omitempty"`
	Amount    string `json:"Amount,omitempty"`
	Shares    string `json:"Shares,omitempty"`
	Price     string `json:"Price,omitempty"`
	Fee       string `json:"Fee,omitempty"`
	Referrer  string `json:"Referrer,omitempty"`
	Reason    string `json:"Reason,omitempty"`
	RequestID string `json:"RequestID,omitempty"`
	ClientIP  string `json:"ClientIP,omitempty"`
}

// Append writes an audit event to audit_events and the outbox table.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// Always derive category from action - eventCategories map is the source of truth
	category := audit.AuditEvent(event.Action).Category()

	payload := outboxPayload{
		ID:        eventID.String(),
		Category:  string(category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Actor:     event.Actor.String(),
		Action:    event.Action,
		Subject:   event.Subject,
		Denom:     event.Denom,
		Amount:    event.Amount,
		Shares:    event.Shares,
		Price:     event.Price,
		Fee:       event.Fee,
		Referrer:  referrerString(event.Referrer),
		Reason:    event.Reason,
		RequestID: event.RequestID,
		ClientIP:  event.ClientIP,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	execer := s.execer(ctx)

	insertEvent := `
		INSERT INTO audit_events (
			id, category, timestamp, actor, action, subject,
			denom, amount, shares, price, fee, referrer, reason, request_id, client_ip
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	if _, err := execer.ExecContext(ctx, insertEvent,
		eventID,
		string(category),
		event.Timestamp,
		event.Actor.String(),
		event.Action,
		event.Subject,
		event.Denom,
		event.Amount,
		event.Shares,
		event.Price,
		event.Fee,
		referrerString(event.Referrer),
		event.Reason,
		event.RequestID,
		event.ClientIP,
	); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	insertOutbox := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := execer.ExecContext(ctx, insertOutbox,
		uuid.New(), // outbox entry ID
		"audit",
		eventID.String(),
		event.Action,
		payloadBytes,
		time.Now(),
	); err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// OutboxEntry is an unpublished outbox row awaiting Kafka delivery.
type OutboxEntry struct {
	ID        uuid.UUID
	EventType string
	Payload   []byte
}

// FetchUnpublished returns up to limit unpublished outbox rows, oldest first.
// Rows are locked with FOR UPDATE SKIP LOCKED so multiple workers never
// publish the same entry.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error) {
	query := `
		SELECT id, event_type, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	var rows *sql.Rows
	var err error
	if tx, ok := txcontext.From(ctx); ok {
		rows, err = tx.QueryContext(ctx, query, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps an outbox row as delivered.
func (s *Store) MarkPublished(ctx context.Context, entryID uuid.UUID) error {
	query := `UPDATE outbox SET published_at = $2 WHERE id = $1`
	if _, err := s.execer(ctx).ExecContext(ctx, query, entryID, time.Now()); err != nil {
		return fmt.Errorf("mark outbox entry published: %w", err)
	}
	return nil
}

// ListByActor returns events performed by a specific principal, newest first.
func (s *Store) ListByActor(ctx context.Context, actor domain.Address) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, actor, action, subject,
			   denom, amount, shares, price, fee, referrer, reason, request_id, client_ip
		FROM audit_events
		WHERE actor = $1
		ORDER BY timestamp DESC
	`
	rows, err := s.db.QueryContext(ctx, query, actor.String())
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, actor, action, subject,
			   denom, amount, shares, price, fee, referrer, reason, request_id, client_ip
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// referrerString normalizes absent referrers to the empty string so the
// column stays blank instead of carrying the zero address.
func referrerString(a domain.Address) string {
	if a == "" || a.IsZero() {
		return ""
	}
	return a.String()
}

// scanEvents scans multiple rows into an audit.Event slice.
func (s *Store) scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			category string
			actor    string
			referrer string
			event    audit.Event
		)
		err := rows.Scan(
			&category,
			&event.Timestamp,
			&actor,
			&event.Action,
			&event.Subject,
			&event.Denom,
			&event.Amount,
			&event.Shares,
			&event.Price,
			&event.Fee,
			&referrer,
			&event.Reason,
			&event.RequestID,
			&event.ClientIP,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		event.Actor = domain.Address(actor)
		event.Referrer = domain.Address(referrer)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
