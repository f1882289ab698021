// Package apperror defines the error types the API maps to HTTP responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ValidationError carries per-field validation messages. It maps to a 400
// response whose body is the Fields map directly.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	for field, msgs := range e.Fields {
		if len(msgs) > 0 {
			return fmt.Sprintf("validation failed: %s: %s", field, msgs[0])
		}
	}
	return "validation failed"
}

// Add appends a message for a field and returns the receiver so calls chain.
func (e *ValidationError) Add(field, msg string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
	return e
}

// HasErrors reports whether any field message has been recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// NewValidation builds a single-field validation error.
func NewValidation(field, msg string) *ValidationError {
	return (&ValidationError{}).Add(field, msg)
}

// Validationf builds a single-field validation error with a formatted message.
func Validationf(field, format string, args ...interface{}) *ValidationError {
	return NewValidation(field, fmt.Sprintf(format, args...))
}

// ConflictError maps to a 409 response.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func NewConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// PermissionError maps to a 403 response.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string { return e.Message }

func NewPermission(format string, args ...interface{}) *PermissionError {
	return &PermissionError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError maps to a 404 response.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

func NewNotFound(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

// AsValidation unwraps err as a *ValidationError if possible.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// Respond writes the HTTP response for err. Domain errors become structured
// 4xx bodies; anything else is logged and answered with a generic 500 so
// internals never reach the client.
func Respond(c echo.Context, logger zerolog.Logger, err error) error {
	var (
		ve *ValidationError
		ce *ConflictError
		pe *PermissionError
		nf *NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, ve.Fields)
	case errors.As(err, &ce):
		return c.JSON(http.StatusConflict, map[string]string{"detail": ce.Message})
	case errors.As(err, &pe):
		return c.JSON(http.StatusForbidden, map[string]string{"detail": pe.Message})
	case errors.As(err, &nf):
		return c.JSON(http.StatusNotFound, map[string]string{"detail": nf.Error()})
	}

	rid, _ := c.Get("request_id").(string)
	logger.Error().Err(err).
		Str("request_id", rid).
		Str("path", c.Request().URL.Path).
		Msg("unhandled error")
	return c.JSON(http.StatusInternalServerError, map[string]string{"detail": "internal server error"})
}
