package domain

import dErrors "caravel/pkg/domain-errors"

// Capability is a domain value that identifies what a principal may do.
// Invariant: the value must be one of the supported capabilities.
//
// Usage: construct via ParseCapability at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type Capability string

// Supported capabilities.
const (
	// CapabilityAdmin covers parameter changes, fee sweeps, feed swaps,
	// capability grants, and token rescue.
	CapabilityAdmin Capability = "admin"
	// CapabilityOperator covers liquidity movement and the vault's price
	// acceptance window.
	CapabilityOperator Capability = "operator"
	// CapabilityGuardian covers pausing and unpausing, nothing else.
	CapabilityGuardian Capability = "guardian"
	// CapabilityReporter covers publishing NAV observations.
	CapabilityReporter Capability = "reporter"
)

// validCapabilities is the single source of truth for valid capabilities.
var validCapabilities = map[Capability]bool{
	CapabilityAdmin:    true,
	CapabilityOperator: true,
	CapabilityGuardian: true,
	CapabilityReporter: true,
}

// ParseCapability constructs a Capability from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported; no
// other errors are expected.
func ParseCapability(s string) (Capability, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "capability cannot be empty")
	}
	c := Capability(s)
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid capability")
	}
	return c, nil
}

// IsValid checks if the capability is one of the supported enum values.
func (c Capability) IsValid() bool {
	return validCapabilities[c]
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}
