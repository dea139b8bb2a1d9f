package ledgerdb

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingURL = errors.New("database url is required")

	// Connection errors
	ErrDatabaseClosed   = errors.New("database connection is closed")
	ErrConnectionFailed = errors.New("failed to connect to database")

	// Transaction errors
	ErrTransactionClosed = errors.New("transaction is closed")

	// Data errors
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// ErrorType categorizes storage errors.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeConfiguration
	ErrorTypeConnection
	ErrorTypeTransaction
	ErrorTypeQuery
	ErrorTypeSchema
)

// StoreError carries the failing operation alongside the cause.
type StoreError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

func (e *StoreError) Unwrap() error { return e.Cause }

func newError(t ErrorType, operation, message string, cause error) *StoreError {
	return &StoreError{Type: t, Operation: operation, Message: message, Cause: cause}
}

// NewConfigurationError wraps a configuration failure.
func NewConfigurationError(operation, message string, cause error) *StoreError {
	return newError(ErrorTypeConfiguration, operation, message, cause)
}

// NewConnectionError wraps a connection failure.
func NewConnectionError(operation, message string, cause error) *StoreError {
	return newError(ErrorTypeConnection, operation, message, cause)
}

// NewTransactionError wraps a begin/commit/rollback failure.
func NewTransactionError(operation, message string, cause error) *StoreError {
	return newError(ErrorTypeTransaction, operation, message, cause)
}

// NewQueryError wraps a query failure.
func NewQueryError(operation, message string, cause error) *StoreError {
	return newError(ErrorTypeQuery, operation, message, cause)
}

// NewSchemaError wraps a schema initialization failure.
func NewSchemaError(operation, message string, cause error) *StoreError {
	return newError(ErrorTypeSchema, operation, message, cause)
}
