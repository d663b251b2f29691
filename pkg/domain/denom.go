package domain

import dErrors "caravel/pkg/domain-errors"

// Denom names a fungible token tracked by the bank ledger ("usdc", "cvlsh").
// Invariant: lowercase alphanumeric, 2 to 16 characters, starting with a
// letter.
type Denom string

// ParseDenom constructs a Denom from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or violates the
// naming invariant.
func ParseDenom(s string) (Denom, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "denom cannot be empty")
	}
	if len(s) < 2 || len(s) > 16 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "denom must be 2 to 16 characters")
	}
	if s[0] < 'a' || s[0] > 'z' {
		return "", dErrors.New(dErrors.CodeInvalidInput, "denom must start with a lowercase letter")
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return "", dErrors.New(dErrors.CodeInvalidInput, "denom must be lowercase alphanumeric")
		}
	}
	return Denom(s), nil
}

// IsValid checks the stored value against the naming invariant.
func (d Denom) IsValid() bool {
	_, err := ParseDenom(string(d))
	return err == nil
}

// String returns the string representation of the denom.
func (d Denom) String() string {
	return string(d)
}
