package models

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
)

// Closed reasons.
const (
	ClosedReasonClaimed   = "claimed"
	ClosedReasonCancelled = "cancelled"
)

// WithdrawalRequest is one entry in the delayed withdrawal queue. The
// escrowed shares sit at the vault's module address from creation until the
// request closes: claiming burns them, cancelling returns them.
//
// Invariants:
//   - IDs are assigned by the store, monotonic, and never reused.
//   - Shares is positive and fixed for the request's lifetime.
//   - ClaimableAt is strictly after RequestedAt, on an epoch boundary.
//   - A closed request is terminal; ClosedReason says which way it went.
type WithdrawalRequest struct {
	ID           uint64
	Owner        domain.Address
	Receiver     domain.Address
	Shares       sdkmath.Int
	RequestedAt  time.Time
	ClaimableAt  time.Time
	Closed       bool
	ClosedReason string
}

// NewWithdrawalRequest builds a queue entry. The store assigns the ID.
func NewWithdrawalRequest(owner, receiver domain.Address, shares sdkmath.Int, requestedAt, claimableAt time.Time) (*WithdrawalRequest, error) {
	if !owner.IsValid() || owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "withdrawal owner must be a non-zero address")
	}
	if !receiver.IsValid() || receiver.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "withdrawal receiver must be a non-zero address")
	}
	if shares.IsNil() || !shares.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "withdrawal shares must be positive")
	}
	if !claimableAt.After(requestedAt) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claimable time must be after request time")
	}
	return &WithdrawalRequest{
		Owner:       owner,
		Receiver:    receiver,
		Shares:      shares,
		RequestedAt: requestedAt,
		ClaimableAt: claimableAt,
	}, nil
}

// CanClaim validates a claim by caller at now. Ownership is checked before
// state so a foreign caller learns nothing about the request's phase.
func (r *WithdrawalRequest) CanClaim(caller domain.Address, now time.Time) error {
	if caller != r.Owner {
		return dErrors.New(dErrors.CodeNotOwner, "only the request owner may claim")
	}
	if r.Closed {
		return dErrors.New(dErrors.CodeRequestClosed, "request is closed")
	}
	if now.Before(r.ClaimableAt) {
		return dErrors.New(dErrors.CodeTimelockActive, "request is not claimable yet")
	}
	return nil
}

// ApplyClaim closes the request as claimed.
func (r *WithdrawalRequest) ApplyClaim() {
	r.Closed = true
	r.ClosedReason = ClosedReasonClaimed
}

// CanCancel validates a cancellation by caller. Cancelling stays legal after
// ClaimableAt for as long as the request is open.
func (r *WithdrawalRequest) CanCancel(caller domain.Address) error {
	if caller != r.Owner {
		return dErrors.New(dErrors.CodeNotOwner, "only the request owner may cancel")
	}
	if r.Closed {
		return dErrors.New(dErrors.CodeRequestClosed, "request is closed")
	}
	return nil
}

// ApplyCancel closes the request as cancelled.
func (r *WithdrawalRequest) ApplyCancel() {
	r.Closed = true
	r.ClosedReason = ClosedReasonCancelled
}

// Clone returns an independent copy.
func (r *WithdrawalRequest) Clone() *WithdrawalRequest {
	clone := *r
	return &clone
}
