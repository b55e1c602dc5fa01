package http

import (
	"fmt"
	"net/http"
)

// AppError is an API error with its HTTP status. Err is logged but never serialised.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func newAppError(code string, status int, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithError attaches the cause.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return newAppError("ERR_NOT_FOUND", http.StatusNotFound, fmt.Sprintf(format, a...))
}

func InternalError(message string) *AppError {
	return newAppError("ERR_INTERNAL", http.StatusInternalServerError, message)
}

// ServiceUnavailableError marks a feature switched off in configuration.
func ServiceUnavailableError(message string) *AppError {
	return newAppError("ERR_UNAVAILABLE", http.StatusServiceUnavailable, message)
}
