package core

import (
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{Code: "TEST_ERROR", Message: "test message"}
	if err.Error() != "[TEST_ERROR] test message" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Code: "WRAP", Message: "wrapped", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should return cause")
	}
}

func TestError_Is(t *testing.T) {
	if !errors.Is(ErrInsufficientFunds, ErrInsufficientFunds) {
		t.Error("same error should match")
	}

	wrapped := WrapError(ErrPositionNotFound, errors.New("pos-42"))
	if !errors.Is(wrapped, ErrPositionNotFound) {
		t.Error("wrapped error should match its sentinel by code")
	}
	if errors.Is(wrapped, ErrInsufficientFunds) {
		t.Error("different codes must not match")
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("original")
	wrapped := WrapError(ErrMarketData, cause)
	if wrapped.Cause != cause {
		t.Error("cause not set")
	}
	if wrapped.Code != ErrMarketData.Code {
		t.Error("code not preserved")
	}
}

func TestTaxonomy_Distinguishable(t *testing.T) {
	kinds := []*Error{
		ErrInsufficientFunds,
		ErrPositionNotFound,
		ErrInvalidStopLoss,
		ErrMarketData,
		ErrStrategyFailed,
	}
	for i, a := range kinds {
		for j, b := range kinds {
			got := errors.Is(a, b)
			want := i == j
			if got != want {
				t.Errorf("errors.Is(%s, %s) = %v, want %v", a.Code, b.Code, got, want)
			}
		}
	}
}
