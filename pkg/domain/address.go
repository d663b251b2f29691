package domain

import (
	"strings"

	dErrors "caravel/pkg/domain-errors"
)

// Address identifies an account on the ledger: "0x" followed by 40 hex
// characters, stored lowercase. The zero address is a valid value with
// reserved meaning (no referrer, unset recipient); it never holds a balance.
//
// Usage: construct via ParseAddress at trust boundaries; direct casting
// bypasses validation.
type Address string

// ZeroAddress is the all-zero account. Operations interpret it as "absent".
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

const addressLen = 42

// ParseAddress constructs an Address from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, has a wrong
// length, or contains non-hex characters.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address cannot be empty")
	}
	s = strings.ToLower(s)
	if len(s) != addressLen || !strings.HasPrefix(s, "0x") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address must be 0x followed by 40 hex characters")
	}
	for _, c := range s[2:] {
		if !isHexDigit(c) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "address contains non-hex characters")
		}
	}
	return Address(s), nil
}

// MustAddress parses a trusted literal and panics on failure. For config
// seeds and tests only.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsZero reports whether the address is the reserved all-zero account.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// IsValid checks the stored value without re-parsing external input.
func (a Address) IsValid() bool {
	_, err := ParseAddress(string(a))
	return err == nil
}

// String returns the canonical lowercase form.
func (a Address) String() string {
	return string(a)
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}
