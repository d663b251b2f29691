// Package store defines persistence for the capability registry.
//
// Implementations return sentinel errors (sentinel.ErrAlreadyUsed,
// sentinel.ErrNotFound); the service layer translates them into coded
// domain errors.
package store

import (
	"context"

	"caravel/pkg/domain"
)

type Store interface {
	// Grant records a capability for a principal. Returns
	// sentinel.ErrAlreadyUsed when the principal already holds it.
	Grant(ctx context.Context, principal domain.Address, capability domain.Capability) error

	// Revoke removes a capability from a principal. Returns
	// sentinel.ErrNotFound when the principal does not hold it.
	Revoke(ctx context.Context, principal domain.Address, capability domain.Capability) error

	// Has reports whether the principal holds the capability.
	Has(ctx context.Context, principal domain.Address, capability domain.Capability) (bool, error)

	// List returns the capabilities a principal holds, sorted.
	List(ctx context.Context, principal domain.Address) ([]domain.Capability, error)
}
