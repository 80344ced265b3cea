// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrCapacityExceeded     = errors.New("position capacity exceeded")
	ErrDuplicatePosition    = errors.New("position already open")
	ErrAlreadyTraded        = errors.New("already traded today")
	ErrCodeBlocked          = errors.New("code is blocked")
	ErrUnknownPosition      = errors.New("unknown position")
	ErrPersistenceFailure   = errors.New("persistence failure")
	ErrClockSyncUnavailable = errors.New("clock sync unavailable")
	ErrQuoteUnavailable     = errors.New("quote unavailable")
	ErrMarketClosed         = errors.New("market is closed")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrDataNotFound         = errors.New("data not found")
	ErrConnectionFailed     = errors.New("connection failed")
	ErrTimeout              = errors.New("operation timed out")
)

// TradeError represents a rejected buy or sell with the rule that blocked it.
type TradeError struct {
	Code   string
	Action string
	Reason string
	Err    error
}

func (e *TradeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("trade error [%s] %s: %s: %v", e.Code, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("trade error [%s] %s: %s", e.Code, e.Action, e.Reason)
}

func (e *TradeError) Unwrap() error {
	return e.Err
}

// NewTradeError creates a new TradeError.
func NewTradeError(code, action, reason string, err error) *TradeError {
	return &TradeError{
		Code:   code,
		Action: action,
		Reason: reason,
		Err:    err,
	}
}

// StoreError represents a snapshot persistence error.
type StoreError struct {
	Operation string
	Date      string
	Err       error
}

func (e *StoreError) Error() string {
	if e.Date != "" {
		return fmt.Sprintf("store error [%s] %s: %v", e.Operation, e.Date, e.Err)
	}
	return fmt.Sprintf("store error [%s]: %v", e.Operation, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(operation, date string, err error) *StoreError {
	return &StoreError{
		Operation: operation,
		Date:      date,
		Err:       err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// QuoteError represents a failed quote lookup for one instrument.
type QuoteError struct {
	Code    string
	Message string
	Err     error
}

func (e *QuoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("quote error [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("quote error [%s]: %s", e.Code, e.Message)
}

func (e *QuoteError) Unwrap() error {
	return e.Err
}

// NewQuoteError creates a new QuoteError.
func NewQuoteError(code, message string, err error) *QuoteError {
	return &QuoteError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
