package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// CodeInvalidTransition rejects an action on a record that is not in the
	// expected source state. Messages name the current state.
	CodeInvalidTransition Code = "INVALID_STATE_TRANSITION"
	// CodeAmountMismatch rejects a money movement whose amount disagrees with
	// the ledger beyond tolerance. Details carry expected and given amounts.
	CodeAmountMismatch    Code = "AMOUNT_MISMATCH"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	// CodeTransactionAborted marks a unit of work that was rolled back.
	CodeTransactionAborted Code = "TRANSACTION_ABORTED"
)

// Metadata describes how a code surfaces over HTTP.
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
	// ShowMessage lets the message written at the error site replace
	// PublicMessage. Codes wrapping infrastructure failures keep it false.
	ShowMessage    bool
	DetailsAllowed bool
}

func clientError(status int, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, ShowMessage: true, DetailsAllowed: details}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:        clientError(http.StatusBadRequest, "validation failed", true),
	CodeUnauthorized:      clientError(http.StatusUnauthorized, "authentication required", false),
	CodeForbidden:         clientError(http.StatusForbidden, "access denied", false),
	CodeNotFound:          clientError(http.StatusNotFound, "resource not found", false),
	CodeConflict:          clientError(http.StatusConflict, "conflict detected", false),
	CodeStateConflict:     clientError(http.StatusUnprocessableEntity, "state transition disallowed", true),
	CodeIdempotency:       clientError(http.StatusConflict, "idempotency key reused", true),
	CodeInvalidTransition: clientError(http.StatusBadRequest, "invalid state transition", true),
	CodeAmountMismatch:    clientError(http.StatusBadRequest, "amount mismatch", true),
	CodeInsufficientFunds: clientError(http.StatusBadRequest, "insufficient balance", true),

	CodeTransactionAborted: {HTTPStatus: http.StatusConflict, Retryable: true, PublicMessage: "failed to process"},
	CodeInternal:           {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
	CodeDependency:         {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether err carries a typed error with the given code.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// InvalidTransition builds the error returned when an entity is not in the
// state an action requires.
func InvalidTransition(entity string, current any, action string) *Error {
	return New(CodeInvalidTransition, fmt.Sprintf("cannot %s %s in status %v", action, entity, current)).
		WithDetails(map[string]any{"entity": entity, "currentStatus": fmt.Sprint(current), "action": action})
}

// AmountMismatch rejects a money movement that disagrees with the ledger.
func AmountMismatch(message string, expected, given decimal.Decimal) *Error {
	return New(CodeAmountMismatch, message).WithDetails(map[string]any{
		"expected": expected.StringFixed(2),
		"given":    given.StringFixed(2),
	})
}

// InsufficientFunds rejects a debit larger than the available balance.
func InsufficientFunds(balance, requested decimal.Decimal) *Error {
	return New(CodeInsufficientFunds, "insufficient wallet balance").WithDetails(map[string]any{
		"balance":   balance.StringFixed(2),
		"requested": requested.StringFixed(2),
	})
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
