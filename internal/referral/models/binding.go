package models

import (
	"time"

	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
)

// Binding is a write-once referral attribution for a receiver.
//
// Invariants:
//   - Receiver and Referrer are valid, non-zero addresses.
//   - Referrer differs from Receiver.
//   - A receiver's binding never changes after creation; stores reject a
//     second Create for the same receiver.
type Binding struct {
	Receiver domain.Address
	Referrer domain.Address
	BoundAt  time.Time
}

// NewBinding constructs a validated Binding. The ordered business rules
// (silent ignore when bound, consent, zero no-op) live in the service; this
// constructor only guards the invariants of a record that is about to be
// persisted.
func NewBinding(receiver, referrer domain.Address, now time.Time) (*Binding, error) {
	if !receiver.IsValid() || receiver.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "binding requires a non-zero receiver")
	}
	if !referrer.IsValid() || referrer.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "binding requires a non-zero referrer")
	}
	if referrer == receiver {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "receiver cannot be their own referrer")
	}
	return &Binding{
		Receiver: receiver,
		Referrer: referrer,
		BoundAt:  now,
	}, nil
}

// Clone returns an independent copy.
func (b *Binding) Clone() *Binding {
	clone := *b
	return &clone
}
