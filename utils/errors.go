package utils

import (
	"errors"
	"net/http"
)

// ErrorKind classifies failures so the HTTP layer can map them to a status.
type ErrorKind string

const (
	KindUnauthorized        ErrorKind = "unauthorized"
	KindForbidden           ErrorKind = "forbidden"
	KindValidation          ErrorKind = "validation_error"
	KindNotFound            ErrorKind = "not_found"
	KindInvalidToken        ErrorKind = "invalid_token"
	KindTokenAlreadyUsed    ErrorKind = "token_already_used"
	KindTokenExpired        ErrorKind = "token_expired"
	KindInsufficientCredits ErrorKind = "insufficient_credits"
	KindConflict            ErrorKind = "conflict"
	KindUpstream            ErrorKind = "upstream_failure"
	KindInternal            ErrorKind = "internal"
)

// AppError is the error type returned by the service layer.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

var (
	ErrUnauthorized        = &AppError{Kind: KindUnauthorized, Message: "authentication required"}
	ErrInvalidToken        = &AppError{Kind: KindInvalidToken, Message: "invalid verification token"}
	ErrTokenAlreadyUsed    = &AppError{Kind: KindTokenAlreadyUsed, Message: "verification token has already been used"}
	ErrTokenExpired        = &AppError{Kind: KindTokenExpired, Message: "verification token has expired"}
	ErrInsufficientCredits = &AppError{Kind: KindInsufficientCredits, Message: "no session credits available for this professional and session type"}
)

func NewForbidden(msg string) *AppError  { return &AppError{Kind: KindForbidden, Message: msg} }
func NewValidation(msg string) *AppError { return &AppError{Kind: KindValidation, Message: msg} }
func NewNotFound(msg string) *AppError   { return &AppError{Kind: KindNotFound, Message: msg} }
func NewConflict(msg string) *AppError   { return &AppError{Kind: KindConflict, Message: msg} }

// NewUpstream wraps a failure reported by an external provider. The message
// is passed through to the caller.
func NewUpstream(msg string, err error) *AppError {
	return &AppError{Kind: KindUpstream, Message: msg, Err: err}
}

// NewInternal wraps an unexpected failure.
func NewInternal(err error) *AppError {
	return &AppError{Kind: KindInternal, Message: "internal server error", Err: err}
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// PublicMessage returns the message that is safe to show to the caller.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Kind == KindUpstream && appErr.Err != nil {
			return appErr.Message + ": " + appErr.Err.Error()
		}
		return appErr.Message
	}
	return "internal server error"
}

// HTTPStatus maps an error to its response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation, KindInvalidToken, KindTokenAlreadyUsed, KindTokenExpired:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInsufficientCredits, KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
