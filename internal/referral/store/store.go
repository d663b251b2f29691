// Package store defines persistence for referral bindings.
//
// Implementations return sentinel errors (sentinel.ErrNotFound,
// sentinel.ErrAlreadyUsed); the service layer translates them into coded
// domain errors. Write-once is enforced here, not just in the service, so a
// racing second bind can never overwrite the first.
package store

import (
	"context"

	"caravel/internal/referral/models"
	"caravel/pkg/domain"
)

type Store interface {
	// Create persists a new binding. Returns sentinel.ErrAlreadyUsed when the
	// receiver already has one.
	Create(ctx context.Context, binding *models.Binding) error

	// Find returns the binding for a receiver, or sentinel.ErrNotFound when
	// the receiver is unbound.
	Find(ctx context.Context, receiver domain.Address) (*models.Binding, error)
}
