package model

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
)

// ServiceError pairs a failure with the HTTP status it maps to. Message
// is what clients see; Err holds the underlying cause for logs only.
type ServiceError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}

	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewValidationError flags malformed or insufficient input.
func NewValidationError(message string, err error) *ServiceError {
	return &ServiceError{
		Status:  http.StatusUnprocessableEntity,
		Code:    "validation_error",
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError flags a missing metadata row or artifact.
func NewNotFoundError(message string, err error) *ServiceError {
	return &ServiceError{
		Status:  http.StatusNotFound,
		Code:    "not_found",
		Message: message,
		Err:     err,
	}
}

// NewConflictError flags invalid request semantics, e.g. a blank id.
func NewConflictError(message string) *ServiceError {
	return &ServiceError{
		Status:  http.StatusBadRequest,
		Code:    "conflict",
		Message: message,
	}
}

// NewInternalError flags inconsistent state or unexpected failures. The
// cause is never shown to clients.
func NewInternalError(message string, err error) *ServiceError {
	return &ServiceError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: message,
		Err:     err,
	}
}

// NewUnavailableError flags exhausted pools or unreachable backing
// services. Retry-friendly.
func NewUnavailableError(message string, err error) *ServiceError {
	return &ServiceError{
		Status:  http.StatusServiceUnavailable,
		Code:    "unavailable",
		Message: message,
		Err:     err,
	}
}

var seriesIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateSeriesID rejects identifiers that are blank or unsafe to embed
// in artifact paths.
func ValidateSeriesID(seriesID string) error {
	if strings.TrimSpace(seriesID) == "" {
		return errors.New("series_id must be a non-empty string")
	}

	if !seriesIDPattern.MatchString(seriesID) {
		return errors.New("series_id must contain only letters, numbers, '.', '_' or '-'")
	}

	if strings.Contains(seriesID, "..") {
		return errors.New("series_id cannot contain consecutive dots")
	}

	return nil
}
