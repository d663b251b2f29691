// Package service implements the capability registry.
//
// Authorization is an explicit mapping from principal address to a set of
// capabilities. The transport resolves who is calling; services decide what
// that caller may do by consulting this registry. Grants and revocations are
// themselves admin-gated mutations with their own audit trail.
package service

import (
	"context"
	"errors"

	"caravel/internal/authz/store"
	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/platform/audit"
	"caravel/pkg/platform/sentinel"
	txcontext "caravel/pkg/platform/tx"
)

// AuditRecorder appends to the audit trail. Recording is fail-closed: an
// error here aborts the operation that produced the event.
type AuditRecorder interface {
	Record(ctx context.Context, event audit.Event) error
}

// Seeds maps bootstrap principals to the capabilities they start with.
type Seeds map[domain.Address][]domain.Capability

// Service answers capability checks and manages grants.
type Service struct {
	capabilities store.Store
	tx           txcontext.Runner
	audit        AuditRecorder
}

// New constructs a Service.
func New(capabilities store.Store, tx txcontext.Runner, recorder AuditRecorder) *Service {
	return &Service{capabilities: capabilities, tx: tx, audit: recorder}
}

// Seed installs bootstrap grants from configuration. It is idempotent so a
// restart reconciles instead of failing; seeding is configuration, not a
// principal's action, so it does not reach the audit trail.
func (s *Service) Seed(ctx context.Context, seeds Seeds) error {
	for principal, capabilities := range seeds {
		for _, capability := range capabilities {
			err := s.capabilities.Grant(ctx, principal, capability)
			if err != nil && !errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed capability")
			}
		}
	}
	return nil
}

// Require returns CodeUnauthorized unless the principal holds the
// capability.
func (s *Service) Require(ctx context.Context, principal domain.Address, capability domain.Capability) error {
	if principal == "" || principal.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	held, err := s.capabilities.Has(ctx, principal, capability)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "capability lookup failed")
	}
	if !held {
		return dErrors.New(dErrors.CodeUnauthorized, "missing capability: "+capability.String())
	}
	return nil
}

// Grant gives a principal a capability. Admin capability required;
// re-granting a held capability is a conflict.
func (s *Service) Grant(ctx context.Context, admin, principal domain.Address, capability domain.Capability) error {
	if err := s.Require(ctx, admin, domain.CapabilityAdmin); err != nil {
		return err
	}
	if principal == "" || principal.IsZero() {
		return dErrors.New(dErrors.CodeZeroAddress, "principal cannot be the zero address")
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.capabilities.Grant(txCtx, principal, capability); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "capability already granted")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant capability")
		}
		return s.audit.Record(txCtx, audit.Event{
			Actor:   admin,
			Action:  string(audit.EventCapabilityGranted),
			Subject: principal.String(),
			Reason:  capability.String(),
		})
	})
}

// Revoke removes a capability from a principal. Admin capability required;
// revoking a capability the principal does not hold is a conflict.
func (s *Service) Revoke(ctx context.Context, admin, principal domain.Address, capability domain.Capability) error {
	if err := s.Require(ctx, admin, domain.CapabilityAdmin); err != nil {
		return err
	}

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.capabilities.Revoke(txCtx, principal, capability); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeConflict, "capability not held")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke capability")
		}
		return s.audit.Record(txCtx, audit.Event{
			Actor:   admin,
			Action:  string(audit.EventCapabilityRevoked),
			Subject: principal.String(),
			Reason:  capability.String(),
		})
	})
}

// List returns the capabilities a principal holds.
func (s *Service) List(ctx context.Context, principal domain.Address) ([]domain.Capability, error) {
	capabilities, err := s.capabilities.List(ctx, principal)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "capability lookup failed")
	}
	return capabilities, nil
}
