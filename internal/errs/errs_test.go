package errs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormattingIncludesCanonical(t *testing.T) {
	err := New(
		"poloniex",
		CodeExchange,
		WithHTTP(422),
		WithMessage("unable to create order"),
		WithRawMessage("Not enough BTC."),
		WithCanonicalCode(CanonicalInsufficientBalance),
		WithCause(errors.New("poloniex http 422")),
	)

	out := err.Error()
	if !strings.Contains(out, "exchange=poloniex") {
		t.Fatalf("expected exchange marker in error string: %s", out)
	}
	if !strings.Contains(out, "code=exchange_error") {
		t.Fatalf("expected code marker in error string: %s", out)
	}
	if !strings.Contains(out, "canonical=insufficient_balance") {
		t.Fatalf("expected canonical classification in error string: %s", out)
	}
	if !strings.Contains(out, "raw_msg=\"Not enough BTC.\"") {
		t.Fatalf("expected raw message in error string: %s", out)
	}
	if !strings.Contains(out, "cause=\"poloniex http 422\"") {
		t.Fatalf("expected wrapped cause in error string: %s", out)
	}
}

func TestWithCanonicalCodeEmptyDefaultsToUnknown(t *testing.T) {
	err := New("poloniex", CodeInvalid, WithCanonicalCode("   "))
	if err.Canonical != CanonicalUnknown {
		t.Fatalf("expected canonical code to default to unknown, got %q", err.Canonical)
	}
	if strings.Contains(err.Error(), "canonical=") {
		t.Fatalf("canonical marker should be omitted when code is unknown: %s", err.Error())
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := New("poloniex", CodeNetwork, WithCause(cause))
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to match wrapped cause")
	}
}

func TestIsNonceConflict(t *testing.T) {
	conflict := New("poloniex", CodeConflict, WithCanonicalCode(CanonicalNonceConflict))
	if !IsNonceConflict(conflict) {
		t.Fatalf("expected nonce conflict classification")
	}
	if IsNonceConflict(New("poloniex", CodeExchange)) {
		t.Fatalf("generic exchange error must not classify as nonce conflict")
	}
	wrapped := fmt.Errorf("private request: %w", conflict)
	if !IsNonceConflict(wrapped) {
		t.Fatalf("expected classification to survive wrapping")
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(context.DeadlineExceeded) {
		t.Fatalf("deadline exceeded must classify as timeout")
	}
	env := New("poloniex", CodeNetwork, WithCanonicalCode(CanonicalTimeout))
	if !IsTimeout(env) {
		t.Fatalf("timeout canonical code must classify as timeout")
	}
	if IsTimeout(errors.New("boom")) {
		t.Fatalf("plain error must not classify as timeout")
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		code Code
		want bool
	}{
		{CodeNetwork, true},
		{CodeRateLimited, true},
		{CodeConflict, true},
		{CodeExchange, false},
		{CodeInvalid, false},
		{CodeStore, false},
	}
	for _, tc := range cases {
		got := IsTransient(New("poloniex", tc.code))
		if got != tc.want {
			t.Fatalf("code %s: expected transient=%v, got %v", tc.code, tc.want, got)
		}
	}
}
