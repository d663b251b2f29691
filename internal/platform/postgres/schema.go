package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the full caravel DDL. Statements are idempotent so EnsureSchema
// can run on every boot; amounts are NUMERIC(78,0) strings, wide enough for
// any 256-bit integer.
const Schema = `
CREATE TABLE IF NOT EXISTS nav_feeds (
	id                    TEXT PRIMARY KEY,
	price                 NUMERIC(78,0) NOT NULL,
	price_updated_at      TIMESTAMPTZ,
	max_staleness_seconds BIGINT NOT NULL,
	max_move_bps          BIGINT NOT NULL,
	paused                BOOLEAN NOT NULL DEFAULT FALSE,
	created_at            TIMESTAMPTZ NOT NULL,
	updated_at            TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS vault_state (
	id                    SMALLINT PRIMARY KEY,
	active_feed           TEXT NOT NULL,
	paused                BOOLEAN NOT NULL DEFAULT FALSE,
	max_price_age_seconds BIGINT NOT NULL,
	epoch_length_seconds  BIGINT NOT NULL,
	exit_fee_bps          BIGINT NOT NULL,
	liquidity_recipient   TEXT NOT NULL,
	accrued_fees          NUMERIC(78,0) NOT NULL,
	gross_deposits        NUMERIC(78,0) NOT NULL,
	gross_withdrawals     NUMERIC(78,0) NOT NULL,
	pending_feed          TEXT NOT NULL DEFAULT '',
	pending_queued_at     TIMESTAMPTZ,
	created_at            TIMESTAMPTZ NOT NULL,
	updated_at            TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS withdrawal_requests (
	id            BIGSERIAL PRIMARY KEY,
	owner         TEXT NOT NULL,
	receiver      TEXT NOT NULL,
	shares        NUMERIC(78,0) NOT NULL,
	requested_at  TIMESTAMPTZ NOT NULL,
	claimable_at  TIMESTAMPTZ NOT NULL,
	closed        BOOLEAN NOT NULL DEFAULT FALSE,
	closed_reason TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS withdrawal_requests_owner_idx ON withdrawal_requests (owner);

CREATE TABLE IF NOT EXISTS balances (
	denom   TEXT NOT NULL,
	address TEXT NOT NULL,
	amount  NUMERIC(78,0) NOT NULL CHECK (amount >= 0),
	PRIMARY KEY (denom, address)
);

CREATE TABLE IF NOT EXISTS supplies (
	denom  TEXT PRIMARY KEY,
	amount NUMERIC(78,0) NOT NULL CHECK (amount >= 0)
);

CREATE TABLE IF NOT EXISTS allowances (
	denom   TEXT NOT NULL,
	owner   TEXT NOT NULL,
	spender TEXT NOT NULL,
	amount  NUMERIC(78,0) NOT NULL CHECK (amount >= 0),
	PRIMARY KEY (denom, owner, spender)
);

CREATE TABLE IF NOT EXISTS referrals (
	receiver TEXT PRIMARY KEY,
	referrer TEXT NOT NULL,
	bound_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS capabilities (
	principal  TEXT NOT NULL,
	capability TEXT NOT NULL,
	granted_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (principal, capability)
);

CREATE TABLE IF NOT EXISTS audit_events (
	id         UUID PRIMARY KEY,
	category   TEXT NOT NULL,
	timestamp  TIMESTAMPTZ NOT NULL,
	actor      TEXT NOT NULL,
	action     TEXT NOT NULL,
	subject    TEXT NOT NULL DEFAULT '',
	denom      TEXT NOT NULL DEFAULT '',
	amount     TEXT NOT NULL DEFAULT '',
	shares     TEXT NOT NULL DEFAULT '',
	price      TEXT NOT NULL DEFAULT '',
	fee        TEXT NOT NULL DEFAULT '',
	referrer   TEXT NOT NULL DEFAULT '',
	reason     TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	client_ip  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_actor_idx ON audit_events (actor, timestamp DESC);

CREATE TABLE IF NOT EXISTS outbox (
	id             UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	payload        JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	published_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS outbox_unpublished_idx ON outbox (created_at) WHERE published_at IS NULL;
`

// EnsureSchema applies the caravel DDL. Safe to run on every boot.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
