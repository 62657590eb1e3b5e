package services

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorKind classifies order engine failures so the HTTP layer can pick a status code
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindForbidden
	KindNotFound
	KindBusiness
	KindRetryable
)

// Error codes returned to API clients
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeInvalidStatus         = "INVALID_STATUS"
	CodeForbidden             = "FORBIDDEN"
	CodeOrderNotFound         = "ORDER_NOT_FOUND"
	CodeProductNotFound       = "PRODUCT_NOT_FOUND"
	CodeInsufficientStock     = "INSUFFICIENT_STOCK"
	CodeCancellationClosed    = "CANCELLATION_CLOSED"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeOrderCancelled        = "ORDER_CANCELLED"
	CodeOrderNotCompleted     = "ORDER_NOT_COMPLETED"
	CodeOrderNotDelivered     = "ORDER_NOT_DELIVERED"
	CodeReturnExists          = "RETURN_ALREADY_REQUESTED"
	CodeReturnNotFound        = "RETURN_NOT_FOUND"
	CodeReturnResolved        = "RETURN_ALREADY_RESOLVED"
	CodeCancellationRequested = "CANCELLATION_ALREADY_REQUESTED"
	CodeLockTimeout           = "LOCK_TIMEOUT"
)

// OrderError is a classified failure raised by the order engine
type OrderError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *OrderError) Error() string {
	return e.Message
}

// AsOrderError unwraps err into an *OrderError when it is one
func AsOrderError(err error) (*OrderError, bool) {
	var oe *OrderError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}

func validationError(code, message string) *OrderError {
	return &OrderError{Kind: KindValidation, Code: code, Message: message}
}

func forbiddenError(message string) *OrderError {
	return &OrderError{Kind: KindForbidden, Code: CodeForbidden, Message: message}
}

func notFoundError(code, message string) *OrderError {
	return &OrderError{Kind: KindNotFound, Code: code, Message: message}
}

func businessError(code, message string) *OrderError {
	return &OrderError{Kind: KindBusiness, Code: code, Message: message}
}

var errLockTimeout = &OrderError{Kind: KindRetryable, Code: CodeLockTimeout, Message: "The order is busy, please try again"}

// PostgreSQL SQLSTATE codes that mean "try again later"
var retryablePgCodes = map[string]bool{
	"55P03": true, // lock_not_available (lock_timeout)
	"57014": true, // query_canceled (statement_timeout)
	"40P01": true, // deadlock_detected
	"40001": true, // serialization_failure
}

// classifyTxError turns lock waits and timeouts into retryable order errors.
// Order errors and unrelated persistence errors pass through unchanged.
func classifyTxError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsOrderError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errLockTimeout
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && retryablePgCodes[pgErr.Code] {
		return errLockTimeout
	}
	if strings.Contains(err.Error(), "database is locked") {
		return errLockTimeout
	}
	return err
}
