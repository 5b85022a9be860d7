// Package apperr defines the tagged error type shared by the appointment
// pipeline. The Kind discriminant decides whether an error is operational
// (expected, safe to log and drop) or critical (retried via redelivery).
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindMethodNotAllowed Kind = "method_not_allowed"
	KindInfrastructure   Kind = "infrastructure"
	KindInternal         Kind = "internal"
)

// Operational reports whether errors of this kind are expected business-rule
// rejections that will never succeed on retry.
func (k Kind) Operational() bool {
	switch k {
	case KindValidation, KindNotFound, KindConflict, KindMethodNotAllowed:
		return true
	default:
		return false
	}
}

// Error codes surfaced to clients and logs.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeMissingFields       = "MISSING_REQUIRED_FIELDS"
	CodeInvalidCountryCode  = "INVALID_COUNTRY_CODE"
	CodeInvalidInsuredID    = "INVALID_INSURED_ID"
	CodeInvalidRequestBody  = "INVALID_REQUEST_BODY"
	CodeNotFound            = "NOT_FOUND"
	CodeAppointmentNotFound = "APPOINTMENT_NOT_FOUND"
	CodeInvalidTransition   = "INVALID_STATUS_TRANSITION"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeTimeout             = "TIMEOUT"
	CodeUnavailable         = "SERVICE_UNAVAILABLE"
	CodeInvalidEnvelope     = "INVALID_ENVELOPE"
	CodeInternal            = "INTERNAL_ERROR"
)

// Details carries the structured payload used to build user-facing messages.
type Details map[string]any

// Error is the tagged error value. Err, when set, is the wrapped cause.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details Details
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Operational reports whether the error is an expected rejection.
func (e *Error) Operational() bool { return e != nil && e.Kind.Operational() }

// New builds an error without a cause.
func New(kind Kind, code, message string, details Details) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Details: details}
}

// Wrap builds an error around cause.
func Wrap(cause error, kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: cause}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsOperational reports whether err is a recognized operational error.
// Anything that is not an *Error is treated as critical.
func IsOperational(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.Operational()
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error kind to the status code used at the HTTP boundary.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindInfrastructure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
