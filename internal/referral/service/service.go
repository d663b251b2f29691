// Package service implements the write-once referral registry.
//
// A receiver is referred at most once, by a referrer they chose themselves.
// Binding happens lazily inside the first referral-aware deposit, and from
// then on every attributed flow names the original referrer no matter what
// later calls supply.
package service

import (
	"context"
	"errors"

	"caravel/internal/referral/models"
	"caravel/internal/referral/store"
	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/platform/audit"
	"caravel/pkg/platform/sentinel"
	"caravel/pkg/requestcontext"
)

// AuditRecorder appends to the audit trail. Recording is fail-closed: an
// error here aborts the operation that produced the event.
type AuditRecorder interface {
	Record(ctx context.Context, event audit.Event) error
}

// Attribution is the outcome of a Bind call.
type Attribution struct {
	// Referrer is the receiver's bound referrer after the call, or the zero
	// address when the receiver remains unbound.
	Referrer domain.Address
	// NewlyBound is true when this call created the binding.
	NewlyBound bool
}

// HasReferrer reports whether the flow has a referrer to attribute.
func (a Attribution) HasReferrer() bool {
	return a.Referrer != "" && !a.Referrer.IsZero()
}

// Service enforces the binding rules over a write-once store.
type Service struct {
	bindings store.Store
	audit    AuditRecorder
}

// New constructs a Service.
func New(bindings store.Store, recorder AuditRecorder) *Service {
	return &Service{bindings: bindings, audit: recorder}
}

// Bind applies the referral rules for one flow and returns the attribution
// the flow should carry. Rules, in order:
//
//  1. The receiver cannot be their own referrer.
//  2. An already-bound receiver keeps their original referrer; the supplied
//     argument is ignored.
//  3. An unbound receiver can only be bound by themselves (caller must equal
//     receiver); third parties cannot attach a referrer to someone else.
//  4. A zero referrer binds nothing and is not an error.
//
// Bind joins the caller's transaction rather than opening its own: deposit
// flows invoke it inside their tx so the binding and the deposit commit
// together.
func (s *Service) Bind(ctx context.Context, caller, receiver, referrer domain.Address) (Attribution, error) {
	if referrer == receiver {
		return Attribution{}, dErrors.New(dErrors.CodeInvalidReferrer, "receiver cannot be their own referrer")
	}

	existing, err := s.bindings.Find(ctx, receiver)
	switch {
	case err == nil:
		return Attribution{Referrer: existing.Referrer}, nil
	case errors.Is(err, sentinel.ErrNotFound):
		// unbound, fall through
	default:
		return Attribution{}, dErrors.Wrap(err, dErrors.CodeInternal, "referral lookup failed")
	}

	if caller != receiver {
		return Attribution{}, dErrors.New(dErrors.CodeInvalidReferrer, "binding a referrer requires the receiver's own deposit")
	}
	if referrer == "" || referrer.IsZero() {
		return Attribution{Referrer: domain.ZeroAddress}, nil
	}

	binding, err := models.NewBinding(receiver, referrer, requestcontext.Now(ctx))
	if err != nil {
		return Attribution{}, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if err := s.bindings.Create(ctx, binding); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			// Lost a race to another first deposit; the earlier binding wins.
			return s.boundAttribution(ctx, receiver)
		}
		return Attribution{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist referral binding")
	}

	if err := s.audit.Record(ctx, audit.Event{
		Actor:    caller,
		Action:   string(audit.EventReferralBound),
		Subject:  receiver.String(),
		Referrer: referrer,
	}); err != nil {
		return Attribution{}, err
	}
	return Attribution{Referrer: referrer, NewlyBound: true}, nil
}

// ReferrerOf returns the bound referrer for a receiver, or the zero address
// when unbound.
func (s *Service) ReferrerOf(ctx context.Context, receiver domain.Address) (domain.Address, error) {
	binding, err := s.bindings.Find(ctx, receiver)
	if errors.Is(err, sentinel.ErrNotFound) {
		return domain.ZeroAddress, nil
	}
	if err != nil {
		return domain.ZeroAddress, dErrors.Wrap(err, dErrors.CodeInternal, "referral lookup failed")
	}
	return binding.Referrer, nil
}

func (s *Service) boundAttribution(ctx context.Context, receiver domain.Address) (Attribution, error) {
	existing, err := s.bindings.Find(ctx, receiver)
	if err != nil {
		return Attribution{}, dErrors.Wrap(err, dErrors.CodeInternal, "referral lookup failed")
	}
	return Attribution{Referrer: existing.Referrer}, nil
}
