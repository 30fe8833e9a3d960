package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// StoreErrorMessage describes backing store failures.
	StoreErrorMessage = "backing store operation failed"
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// BadRequest marks err as a caller mistake; err.Error() is used as the message.
func BadRequest(err error) *AppError {
	return New(err, http.StatusBadRequest, err.Error())
}

func NotFound(err error, message string) *AppError {
	return New(err, http.StatusNotFound, message)
}

func Unavailable(err error, message string) *AppError {
	return New(err, http.StatusServiceUnavailable, message)
}

// WrapStore maps persistence failures to 502 so callers can tell them from input errors.
func WrapStore(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, StoreErrorMessage)
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) (int, string) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Status, ae.Message
	}
	return http.StatusInternalServerError, SystemErrorMessage
}
