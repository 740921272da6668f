package apperrors

import (
	"errors"
	"fmt"
)

// RetryableError indicates an error that might be resolved by retrying.
type RetryableError struct {
	Err error
}

// Error implements the error interface.
func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

// Unwrap returns the wrapped error.
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryable wraps the given error as a RetryableError, adding a message.
func NewRetryable(err error, message string, args ...interface{}) error {
	format := message + ": %w"
	allArgs := append(args, err)
	return &RetryableError{Err: fmt.Errorf(format, allArgs...)}
}

// FatalError indicates an error that is unlikely to be resolved by retrying.
type FatalError struct {
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

// Unwrap returns the wrapped error.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatal wraps the given error as a FatalError, adding a message.
func NewFatal(err error, message string, args ...interface{}) error {
	format := message + ": %w"
	allArgs := append(args, err)
	return &FatalError{Err: fmt.Errorf(format, allArgs...)}
}

// --- Standard Error Definitions ---

var (
	// ErrNotFound indicates a requested record was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation indicates failure during data validation.
	ErrValidation = errors.New("validation failed")
	// ErrDatabase indicates a general database interaction error.
	ErrDatabase = errors.New("database error")
	// ErrNATS indicates a general NATS communication error.
	ErrNATS = errors.New("nats communication error")
	// ErrDuplicate indicates a conflict due to duplicate data (e.g., unique constraint).
	ErrDuplicate = errors.New("duplicate resource")
	// ErrBadRequest indicates malformed or invalid input from the caller.
	ErrBadRequest = errors.New("bad request")
	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timeout")
	// ErrUnsupportedRule indicates an automation rule whose condition/action pairing has no handler.
	ErrUnsupportedRule = errors.New("unsupported rule combination")
)

// UnsupportedRuleError builds an ErrUnsupportedRule naming both halves of the dispatch key.
func UnsupportedRuleError(entity, actionType string) error {
	return fmt.Errorf("%w: entity=%q action=%q", ErrUnsupportedRule, entity, actionType)
}

// IsRetryable checks if the error is a RetryableError or wraps one.
func IsRetryable(err error) bool {
	var target *RetryableError
	return errors.As(err, &target)
}

// IsFatal checks if the error is a FatalError or wraps one.
func IsFatal(err error) bool {
	var target *FatalError
	return errors.As(err, &target)
}

// IsNotFoundError checks if the error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if the error is or wraps ErrValidation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsDatabaseError checks if the error is or wraps ErrDatabase.
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// IsNATSError checks if the error is or wraps ErrNATS.
func IsNATSError(err error) bool {
	return errors.Is(err, ErrNATS)
}

// IsDuplicateError checks if the error is or wraps ErrDuplicate.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsBadRequestError checks if the error is or wraps ErrBadRequest.
func IsBadRequestError(err error) bool {
	return errors.Is(err, ErrBadRequest)
}

// IsTimeoutError checks if the error is or wraps ErrTimeout.
func IsTimeoutError(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsUnsupportedRuleError checks if the error is or wraps ErrUnsupportedRule.
func IsUnsupportedRuleError(err error) bool {
	return errors.Is(err, ErrUnsupportedRule)
}
