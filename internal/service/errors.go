package service

import (
	"errors"
	"fmt"
)

var (
	// ErrTenantNotFound means no tenant matches the public identifier
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrStoreUnavailable means the event store did not answer the connectivity probe
	ErrStoreUnavailable = errors.New("event store unavailable")

	// ErrArchiveDisabled means no analytics archive is configured
	ErrArchiveDisabled = errors.New("analytics archive is not configured")
)

// ValidationError reports a malformed request
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func required(field string) error {
	return &ValidationError{Field: field, Message: "is required"}
}
