package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

func errMissingField(field string) error {
	return fmt.Errorf("missing or invalid %s", field)
}

// Predefined errors
var (
	// Ledger errors
	ErrInsufficientFunds = &Error{Code: "INSUFFICIENT_FUNDS", Message: "insufficient cash for trade"}
	ErrPositionNotFound  = &Error{Code: "POSITION_NOT_FOUND", Message: "position not found"}

	// Order errors
	ErrInvalidOrder    = &Error{Code: "INVALID_ORDER", Message: "invalid order parameters"}
	ErrInvalidStopLoss = &Error{Code: "INVALID_STOP_LOSS", Message: "invalid stop loss"}

	// Market data errors
	ErrMarketData      = &Error{Code: "MARKET_DATA_UNAVAILABLE", Message: "market data unavailable"}
	ErrInvalidSymbol   = &Error{Code: "INVALID_SYMBOL", Message: "invalid symbol"}
	ErrExchangeUnknown = &Error{Code: "EXCHANGE_UNKNOWN", Message: "unknown exchange"}

	// Strategy errors
	ErrStrategyFailed   = &Error{Code: "STRATEGY_FAILED", Message: "strategy step failed"}
	ErrInsufficientData = &Error{Code: "INSUFFICIENT_DATA", Message: "insufficient data for analysis"}

	// Backtest errors
	ErrMisalignedSeries = &Error{Code: "MISALIGNED_SERIES", Message: "candle series not aligned"}

	// Notifier errors
	ErrNotifierFailed = &Error{Code: "NOTIFIER_FAILED", Message: "notifier failed"}

	// Request errors
	ErrBadRequest = &Error{Code: "BAD_REQUEST", Message: "invalid request parameter"}

	// Storage errors
	ErrStorageFailed = &Error{Code: "STORAGE_FAILED", Message: "storage operation failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
