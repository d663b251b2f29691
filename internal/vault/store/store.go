// Package store defines persistence for the vault's singleton state and the
// withdrawal request table.
//
// Implementations return sentinel errors; the service translates them. The
// ForUpdate variants lock their row for the caller's transaction so a vault
// mutation reads, decides, and writes against a stable snapshot; the service
// additionally serializes mutations behind one mutex, so the lock is the
// cross-process guarantee, not the only one.
package store

import (
	"context"

	"caravel/internal/vault/models"
	"caravel/pkg/domain"
)

type Store interface {
	// EnsureState seeds the singleton state when absent. Idempotent.
	EnsureState(ctx context.Context, initial *models.State) error

	// State returns the current vault state.
	State(ctx context.Context) (*models.State, error)

	// StateForUpdate returns the state locked for the caller's transaction.
	StateForUpdate(ctx context.Context) (*models.State, error)

	// SaveState persists a mutated state.
	SaveState(ctx context.Context, state *models.State) error

	// CreateRequest persists a new withdrawal request and returns it with
	// the next monotonic ID assigned.
	CreateRequest(ctx context.Context, request *models.WithdrawalRequest) (*models.WithdrawalRequest, error)

	// Request returns one request, sentinel.ErrNotFound when absent.
	Request(ctx context.Context, id uint64) (*models.WithdrawalRequest, error)

	// RequestForUpdate returns the request locked for the caller's
	// transaction.
	RequestForUpdate(ctx context.Context, id uint64) (*models.WithdrawalRequest, error)

	// SaveRequest persists a mutated request.
	SaveRequest(ctx context.Context, request *models.WithdrawalRequest) error

	// RequestsByOwner lists an owner's requests, newest first.
	RequestsByOwner(ctx context.Context, owner domain.Address) ([]*models.WithdrawalRequest, error)
}
