// Package errs provides structured error types shared across the connector.
package errs

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
)

// Code identifies an exchange-specific error category.
type Code string

const (
	// CodeRateLimited indicates that the request exceeded rate limits.
	CodeRateLimited Code = "rate_limited"
	// CodeAuth indicates authentication or authorization errors.
	CodeAuth Code = "auth"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeExchange indicates an exchange-side failure.
	CodeExchange Code = "exchange_error"
	// CodeNetwork indicates a network transport failure.
	CodeNetwork Code = "network"
	// CodeNotFound indicates a missing resource.
	CodeNotFound Code = "not_found"
	// CodeConflict indicates a concurrent mutation conflict.
	CodeConflict Code = "conflict"
	// CodeStore indicates a local persistence failure.
	CodeStore Code = "store"
)

// CanonicalCode captures exchange-agnostic error categories.
type CanonicalCode string

const (
	// CanonicalUnknown captures uncategorized failures.
	CanonicalUnknown CanonicalCode = "unknown"
	// CanonicalNonceConflict indicates a rejected request nonce.
	CanonicalNonceConflict CanonicalCode = "nonce_conflict"
	// CanonicalOrderNotFound indicates that the referenced order does not exist.
	CanonicalOrderNotFound CanonicalCode = "order_not_found"
	// CanonicalInsufficientBalance indicates insufficient balance for the requested operation.
	CanonicalInsufficientBalance CanonicalCode = "insufficient_balance"
	// CanonicalInvalidSymbol indicates an unsupported or malformed symbol.
	CanonicalInvalidSymbol CanonicalCode = "invalid_symbol"
	// CanonicalRateLimited indicates the request was rate limited.
	CanonicalRateLimited CanonicalCode = "rate_limited"
	// CanonicalTimeout indicates the request timed out in transit.
	CanonicalTimeout CanonicalCode = "timeout"
)

// E captures structured error information produced across the connector stack.
type E struct {
	Exchange  string
	Code      Code
	HTTP      int
	RawMsg    string
	Message   string
	Canonical CanonicalCode

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the exchange and error code.
func New(exchange string, code Code, opts ...Option) *E {
	e := &E{
		Exchange:  strings.TrimSpace(exchange),
		Code:      code,
		Canonical: CanonicalUnknown,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithRawMessage captures the raw exchange error message.
func WithRawMessage(msg string) Option {
	return func(e *E) {
		e.RawMsg = msg
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

// WithCanonicalCode sets the canonical error code describing the failure category.
func WithCanonicalCode(code CanonicalCode) Option {
	trimmed := strings.TrimSpace(string(code))
	return func(e *E) {
		if trimmed == "" {
			e.Canonical = CanonicalUnknown
			return
		}
		e.Canonical = CanonicalCode(trimmed)
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	exchange := strings.TrimSpace(e.Exchange)
	if exchange == "" {
		exchange = "unknown"
	}
	parts = append(parts, "exchange="+exchange)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if cc := strings.TrimSpace(string(e.Canonical)); cc != "" && cc != string(CanonicalUnknown) {
		parts = append(parts, "canonical="+cc)
	}
	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.RawMsg != "" {
		parts = append(parts, "raw_msg="+strconv.Quote(e.RawMsg))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CanonicalOf extracts the canonical code from an error chain.
func CanonicalOf(err error) CanonicalCode {
	var e *E
	if errors.As(err, &e) {
		return e.Canonical
	}
	return CanonicalUnknown
}

// IsNonceConflict reports whether the error represents a rejected nonce.
func IsNonceConflict(err error) bool {
	return CanonicalOf(err) == CanonicalNonceConflict
}

// IsTimeout reports whether the error chain contains a network timeout.
// History synchronizers retry the same window on timeouts and abort on
// everything else.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return CanonicalOf(err) == CanonicalTimeout
}

// IsTransient reports whether the error is worth retrying on a later pass.
func IsTransient(err error) bool {
	var e *E
	if !errors.As(err, &e) {
		return IsTimeout(err)
	}
	switch e.Code {
	case CodeNetwork, CodeRateLimited, CodeConflict:
		return true
	default:
		return false
	}
}
