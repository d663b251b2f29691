// Package errors provides coded domain errors shared across all bounded contexts.
//
// Services construct these at the boundary between domain logic and callers so
// that handlers and integrations can branch on a stable code instead of
// matching message strings. Infrastructure facts (row missing, connection
// down) stay sentinel errors in pkg/platform/sentinel; services translate
// them into coded errors before they escape.
//
// Usage:
//
//	return dErrors.New(dErrors.CodeStaleTimestamp, "report is older than the staleness window")
//	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist snapshot")
//	if dErrors.HasCode(err, dErrors.CodeNotOwner) { ... }
package errors

import (
	"errors"
	"net/http"
)

// Code identifies a class of domain failure. Codes are part of the API
// contract: they appear verbatim in JSON error envelopes.
type Code string

const (
	// Generic codes.
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_failed"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"

	// Price feed codes.
	CodeZeroValue      Code = "zero_value"
	CodeStaleTimestamp Code = "stale_timestamp"
	CodeTooLargeMove   Code = "too_large_move"
	CodeOracleInvalid  Code = "oracle_invalid"
	CodeOracleStale    Code = "oracle_stale"

	// Vault codes.
	CodeZeroAmount            Code = "zero_amount"
	CodeZeroAddress           Code = "zero_address"
	CodeSlippage              Code = "slippage_exceeded"
	CodeInsufficientFunds     Code = "insufficient_funds"
	CodeInsufficientLiquidity Code = "insufficient_liquidity"
	CodeInvalidReferrer       Code = "invalid_referrer"
	CodeRequestClosed         Code = "request_closed"
	CodeNotOwner              Code = "not_owner"
	CodeNothingQueued         Code = "nothing_queued"
	CodeTimelockActive        Code = "timelock_active"
	CodePaused                Code = "paused"
	CodeInvalidConfig         Code = "invalid_config"
	CodeManagedAsset          Code = "managed_asset"
)

// Error is a domain error with a stable code, a human-readable message, and an
// optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another domain error by code, so errors.Is works against a
// freshly constructed target. The message is not compared.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// New constructs a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is / errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in err's chain carries the given code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if errors.As(err, &de) {
			if de.Code == code {
				return true
			}
			err = de.Err
			continue
		}
		return false
	}
	return false
}

// Is is shorthand for HasCode, matching the call sites that read more
// naturally as a predicate.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in err's chain, or CodeInternal when err
// carries no domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain error code to an HTTP status. Economic guards
// (slippage, liquidity, move size) map to 422: the request was well-formed
// but the current ledger state refuses it.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput, CodeValidation, CodeInvalidConfig,
		CodeZeroValue, CodeZeroAmount, CodeZeroAddress, CodeInvalidReferrer:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeNotOwner:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeRequestClosed, CodeNothingQueued, CodeTimelockActive,
		CodePaused, CodeInvariantViolation:
		return http.StatusConflict
	case CodeStaleTimestamp, CodeTooLargeMove, CodeOracleInvalid, CodeOracleStale,
		CodeSlippage, CodeInsufficientFunds, CodeInsufficientLiquidity,
		CodeManagedAsset:
		return http.StatusUnprocessableEntity
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
