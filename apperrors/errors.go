package apperrors

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches any *AppError carrying the same code, so wrapped errors still
// satisfy errors.Is against the sentinels below.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInvalidArgument     = New(CodeInvalidArgument, "invalid argument")
	ErrInvalidPair         = New(CodeInvalidPair, "a user cannot be paired with themselves")
	ErrEmptyContent        = New(CodeEmptyContent, "message content is empty")
	ErrNotFound            = New(CodeNotFound, "not found")
	ErrUnauthorized        = New(CodeUnauthorized, "user is not a participant")
	ErrUnauthenticated     = New(CodeUnauthenticated, "missing or invalid credentials")
	ErrForbidden           = New(CodeForbidden, "forbidden")
	ErrRegistryUnavailable = New(CodeRegistryUnavailable, "match registry unavailable")
	ErrStorageUnavailable  = New(CodeStorageUnavailable, "storage unavailable")
	ErrScoringUnavailable  = New(CodeScoringUnavailable, "scoring unavailable")
)

// Constructors
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error {
	return New(CodeInvalidArgument, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func Unauthorized(msg string) error {
	return New(CodeUnauthorized, msg)
}

func Forbidden(msg string) error {
	return New(CodeForbidden, msg)
}

func Storage(msg string, cause error) error {
	return Wrap(CodeStorageUnavailable, msg, cause)
}

func Internal(msg string) error {
	return New(CodeInternal, msg)
}

// CodeOf returns the code of the outermost AppError in the chain.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// MessageOf returns a client-safe message for err.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}
